// Package utils holds small generic helpers shared across packages.
package utils

// Ptr returns a pointer to v, for populating optional struct fields inline.
func Ptr[T any](v T) *T {
	return &v
}

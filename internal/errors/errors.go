package errors

import (
	"errors"
	"fmt"
)

// Failure taxonomy for the access subsystem. Every fallback chain and HTTP
// handler maps its outcome onto exactly one of these.
var (
	// ErrAuthenticationFailed means the presented credentials are wrong.
	// Surfaced to the user, never retried.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrAuthorizationDenied means the session is valid but the role lacks
	// the feature permission.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrSessionInvalidated means the session was superseded, expired or
	// explicitly invalidated. Distinguishable from a generic auth failure so
	// the client can force a re-login with an accurate message.
	ErrSessionInvalidated = errors.New("session invalidated")

	// ErrUpstreamUnreachable means a tenant API or the IP echo service could
	// not be reached. Triggers the documented fallback chains.
	ErrUpstreamUnreachable = errors.New("upstream unreachable")

	// ErrVerificationImpossible means the caller's IP could not be
	// determined. Treated as a denial, never as an implicit allow.
	ErrVerificationImpossible = errors.New("verification impossible")

	ErrNotFound = errors.New("not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

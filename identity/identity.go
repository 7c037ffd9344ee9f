// Package identity defines who a caller is: the subject, its kind and its
// internal role. External role names from a tenant's CMS never leave this
// package un-mapped.
package identity

import "strings"

// SubjectKind distinguishes the single operator account from users
// authenticated against a tenant's own credential store.
type SubjectKind string

const (
	KindPrivileged SubjectKind = "privileged"
	KindTenantUser SubjectKind = "tenant-user"
)

// Role is the closed set of internal roles. External strings are mapped once,
// on login, via MapExternalRole.
type Role string

const (
	RolePrivileged  Role = "privileged"
	RoleAdmin       Role = "admin"
	RoleSEOManager  Role = "seo_manager"
	RoleLeadManager Role = "lead_manager"
	RoleSalesPerson Role = "sales_person"
	RoleClient      Role = "client"
)

// Subject is an authenticated caller.
type Subject struct {
	ID       string      `json:"id"`
	Kind     SubjectKind `json:"kind"`
	Username string      `json:"username"`
	Role     Role        `json:"role"`
}

func (s Subject) IsPrivileged() bool {
	return s.Kind == KindPrivileged
}

// externalRoles maps a tenant CMS role name to the internal role.
var externalRoles = map[string]Role{
	"administrator": RoleAdmin,
	"editor":        RoleSEOManager,
	"author":        RoleLeadManager,
	"contributor":   RoleSalesPerson,
}

// MapExternalRole resolves a tenant-native role string. Unknown strings map to
// the least-privileged role.
func MapExternalRole(external string) Role {
	if role, ok := externalRoles[strings.ToLower(strings.TrimSpace(external))]; ok {
		return role
	}
	return RoleClient
}

// MapExternalRoles resolves a list of tenant-native roles to the most
// privileged internal role found. Tenant CMS users usually carry one role,
// but the API returns a list.
func MapExternalRoles(externals []string) Role {
	best := RoleClient
	for _, e := range externals {
		role := MapExternalRole(e)
		if rolePrecedence[role] > rolePrecedence[best] {
			best = role
		}
	}
	return best
}

var rolePrecedence = map[Role]int{
	RoleClient:      0,
	RoleSalesPerson: 1,
	RoleLeadManager: 2,
	RoleSEOManager:  3,
	RoleAdmin:       4,
	RolePrivileged:  5,
}

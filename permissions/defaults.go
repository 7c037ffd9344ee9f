package permissions

import "github.com/crmkit/access-server/identity"

// DefaultMatrix is the hardcoded fail-safe used when storage is unreachable.
// It is a pre-baked copy of sane least-privilege defaults, not a superset of
// the real matrix.
func DefaultMatrix() Matrix {
	rw := Flags{CanRead: true, CanWrite: true}
	ro := Flags{CanRead: true}

	matrix := Matrix{
		identity.RoleAdmin: {
			FeatureLeads:         rw,
			FeatureBlogs:         rw,
			FeatureSEOTags:       rw,
			FeatureSubscriptions: rw,
			FeatureUsers:         rw,
			FeatureSites:         ro,
			FeatureSettings:      rw,
		},
		identity.RoleSEOManager: {
			FeatureBlogs:   rw,
			FeatureSEOTags: rw,
			FeatureLeads:   ro,
		},
		identity.RoleLeadManager: {
			FeatureLeads:         rw,
			FeatureSubscriptions: ro,
		},
		identity.RoleSalesPerson: {
			FeatureLeads: ro,
		},
		identity.RoleClient: {},
	}
	matrix[identity.RolePrivileged] = fullAccess()
	return matrix
}

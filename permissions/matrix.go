// Package permissions holds the role × feature grid of read/write flags that
// gates feature-level operations. The privileged role never comes from
// storage; it is always full access. Absence of an entry means deny.
package permissions

import (
	"time"

	"github.com/crmkit/access-server/identity"
)

// Feature is a named capability area gated independently for read and write.
type Feature string

const (
	FeatureLeads         Feature = "leads"
	FeatureBlogs         Feature = "blogs"
	FeatureSEOTags       Feature = "seo_tags"
	FeatureSubscriptions Feature = "subscriptions"
	FeatureUsers         Feature = "users"
	FeatureSites         Feature = "sites"
	FeatureSettings      Feature = "settings"
)

// AllFeatures lists every gated capability area.
var AllFeatures = []Feature{
	FeatureLeads,
	FeatureBlogs,
	FeatureSEOTags,
	FeatureSubscriptions,
	FeatureUsers,
	FeatureSites,
	FeatureSettings,
}

// AccessType selects which flag Evaluate inspects.
type AccessType string

const (
	AccessRead  AccessType = "read"
	AccessWrite AccessType = "write"
)

// Flags are the stored read/write bits for one (role, feature) cell.
type Flags struct {
	CanRead  bool `json:"can_read"`
	CanWrite bool `json:"can_write"`
}

// Entry is one stored row, keyed by (role, feature).
type Entry struct {
	Role      identity.Role `json:"role"`
	Feature   Feature       `json:"feature"`
	CanRead   bool          `json:"can_read"`
	CanWrite  bool          `json:"can_write"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Matrix is the folded role -> feature -> flags view.
type Matrix map[identity.Role]map[Feature]Flags

// Evaluate answers whether a role may perform an access type on a feature.
// The privileged role is unconditionally allowed. A missing role, feature or
// entry denies.
func Evaluate(matrix Matrix, role identity.Role, feature Feature, access AccessType) bool {
	if role == identity.RolePrivileged {
		return true
	}
	features, ok := matrix[role]
	if !ok {
		return false
	}
	flags, ok := features[feature]
	if !ok {
		return false
	}
	switch access {
	case AccessRead:
		return flags.CanRead
	case AccessWrite:
		return flags.CanWrite
	}
	return false
}

// fullAccess is what the privileged role is forced to regardless of storage.
func fullAccess() map[Feature]Flags {
	features := make(map[Feature]Flags, len(AllFeatures))
	for _, feature := range AllFeatures {
		features[feature] = Flags{CanRead: true, CanWrite: true}
	}
	return features
}

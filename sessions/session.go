// Package sessions is the server-side registry of bearer sessions. Invariant:
// at most one active record exists per (subject id, subject kind) at any time.
// A new login supersedes the previous session; records are invalidated, never
// physically deleted.
package sessions

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/crmkit/access-server/identity"
)

// Record is one row of the registry. Only a one-way hash of the token is ever
// stored.
type Record struct {
	ID            string               `json:"id"`
	SubjectID     string               `json:"subject_id"`
	SubjectKind   identity.SubjectKind `json:"subject_kind"`
	TokenHash     string               `json:"-"`
	IsActive      bool                 `json:"is_active"`
	IPAddress     string               `json:"ip_address,omitempty"`
	UserAgent     string               `json:"user_agent,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	ExpiresAt     time.Time            `json:"expires_at"`
	InvalidatedAt *time.Time           `json:"invalidated_at,omitempty"`
}

// HashToken derives the stored digest of a raw bearer token.
func HashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

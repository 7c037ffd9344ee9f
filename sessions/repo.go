package sessions

import (
	"time"

	"github.com/crmkit/access-server/identity"
)

// Repo is the storage contract for session records.
type Repo interface {
	// CreateActive invalidates any active records for the record's subject
	// and inserts the new record as one atomic operation. Implementations
	// must not let two near-simultaneous logins both end up active.
	CreateActive(record *Record) error

	// GetByTokenHash returns the record with the given token hash, active or
	// not.
	GetByTokenHash(tokenHash string) (*Record, error)

	// InvalidateByTokenHash marks the matching record inactive. Invalidating
	// an already-inactive record is not an error.
	InvalidateByTokenHash(tokenHash string, at time.Time) error

	// InvalidateAll marks every active record for the subject inactive.
	InvalidateAll(subjectID string, kind identity.SubjectKind, at time.Time) error
}

package sessions

import (
	"time"

	"github.com/crmkit/access-server/identity"
	interrors "github.com/crmkit/access-server/internal/errors"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Registry enforces the single-active-session policy over a Repo.
type Registry struct {
	repo    Repo
	nowFunc func() time.Time
}

type RegistryOption func(*Registry)

func WithNowFunc(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.nowFunc = now
	}
}

func NewRegistry(repo Repo, options ...RegistryOption) *Registry {
	r := &Registry{
		repo:    repo,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Create supersedes any active session for the subject and registers a new
// one. Returns the new session id.
func (r *Registry) Create(subjectID string, kind identity.SubjectKind, rawToken, ip, userAgent string, ttl time.Duration) (string, error) {
	now := r.nowFunc()
	record := &Record{
		ID:          uuid.New().String(),
		SubjectID:   subjectID,
		SubjectKind: kind,
		TokenHash:   HashToken(rawToken),
		IsActive:    true,
		IPAddress:   ip,
		UserAgent:   userAgent,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if err := r.repo.CreateActive(record); err != nil {
		return "", errors.Wrap(err, "[Registry.Create] CreateActive")
	}
	return record.ID, nil
}

// IsActive reports whether the presented token maps to a live session: the
// hash must match a record that is active and not yet expired.
func (r *Registry) IsActive(rawToken string) (bool, error) {
	record, err := r.repo.GetByTokenHash(HashToken(rawToken))
	if err != nil {
		if errors.Is(err, interrors.ErrNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "[Registry.IsActive] GetByTokenHash")
	}
	return record.IsActive && record.ExpiresAt.After(r.nowFunc()), nil
}

// Lookup returns the record behind a presented token, active or not.
func (r *Registry) Lookup(rawToken string) (*Record, error) {
	record, err := r.repo.GetByTokenHash(HashToken(rawToken))
	if err != nil {
		return nil, errors.Wrap(err, "[Registry.Lookup] GetByTokenHash")
	}
	return record, nil
}

// Invalidate marks the session for the presented token as terminated.
// Idempotent: invalidating an unknown or already-dead token is not an error.
func (r *Registry) Invalidate(rawToken string) error {
	err := r.repo.InvalidateByTokenHash(HashToken(rawToken), r.nowFunc())
	if err != nil && !errors.Is(err, interrors.ErrNotFound) {
		return errors.Wrap(err, "[Registry.Invalidate] InvalidateByTokenHash")
	}
	return nil
}

// InvalidateAll bulk-terminates every session of a subject, used for forced
// logout.
func (r *Registry) InvalidateAll(subjectID string, kind identity.SubjectKind) error {
	if err := r.repo.InvalidateAll(subjectID, kind, r.nowFunc()); err != nil {
		return errors.Wrap(err, "[Registry.InvalidateAll] InvalidateAll")
	}
	return nil
}

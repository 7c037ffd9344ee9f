package permissions

import (
	"time"

	"github.com/crmkit/access-server/identity"
	"github.com/crmkit/access-server/internal/logging"
	"github.com/pkg/errors"
)

var ErrInvalidEntry = errors.New("invalid permission entry")

type Service struct {
	repo    Repo
	nowFunc func() time.Time
}

type ServiceOption func(*Service)

func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = now
	}
}

func NewService(repo Repo, options ...ServiceOption) *Service {
	s := &Service{
		repo:    repo,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Load folds all stored rows into a Matrix, then force-overwrites the
// privileged role with full access regardless of what was fetched.
func (s *Service) Load() (Matrix, error) {
	entries, err := s.repo.ListAll()
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Load] ListAll")
	}
	matrix := make(Matrix)
	for _, entry := range entries {
		features, ok := matrix[entry.Role]
		if !ok {
			features = make(map[Feature]Flags)
			matrix[entry.Role] = features
		}
		features[entry.Feature] = Flags{CanRead: entry.CanRead, CanWrite: entry.CanWrite}
	}
	matrix[identity.RolePrivileged] = fullAccess()
	return matrix, nil
}

// LoadOrDefault substitutes the hardcoded default matrix when storage is
// unreachable, so the console remains usable in a degraded mode.
func (s *Service) LoadOrDefault() Matrix {
	matrix, err := s.Load()
	if err != nil {
		logging.Degraded("permissions").Err(err).Msg("permission storage unreachable, serving hardcoded defaults")
		return DefaultMatrix()
	}
	return matrix
}

// Upsert creates or updates one (role, feature) entry. Idempotent.
func (s *Service) Upsert(role identity.Role, feature Feature, canRead, canWrite bool) error {
	entry := &Entry{
		Role:      role,
		Feature:   feature,
		CanRead:   canRead,
		CanWrite:  canWrite,
		UpdatedAt: s.nowFunc(),
	}
	if err := validateEntry(entry); err != nil {
		return err
	}
	if err := s.repo.Upsert(entry); err != nil {
		return errors.Wrap(err, "[Service.Upsert] Upsert")
	}
	return nil
}

// BulkUpsert validates every entry up front and applies them all-or-nothing.
// A single malformed entry rejects the whole batch before anything is
// written.
func (s *Service) BulkUpsert(entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}
	now := s.nowFunc()
	for i, entry := range entries {
		if err := validateEntry(entry); err != nil {
			return errors.Wrapf(err, "[Service.BulkUpsert] entry %d", i)
		}
		entry.UpdatedAt = now
	}
	if err := s.repo.BulkUpsert(entries); err != nil {
		return errors.Wrap(err, "[Service.BulkUpsert] BulkUpsert")
	}
	return nil
}

func validateEntry(entry *Entry) error {
	if entry == nil {
		return errors.Wrap(ErrInvalidEntry, "nil entry")
	}
	if entry.Role == "" || entry.Role == identity.RolePrivileged {
		return errors.Wrapf(ErrInvalidEntry, "role %q", entry.Role)
	}
	if !knownFeature(entry.Feature) {
		return errors.Wrapf(ErrInvalidEntry, "feature %q", entry.Feature)
	}
	return nil
}

func knownFeature(feature Feature) bool {
	for _, f := range AllFeatures {
		if f == feature {
			return true
		}
	}
	return false
}

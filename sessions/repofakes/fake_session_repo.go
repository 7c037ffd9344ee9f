package repofakes

import (
	"sync"
	"time"

	"github.com/crmkit/access-server/identity"
	interrors "github.com/crmkit/access-server/internal/errors"
	"github.com/crmkit/access-server/internal/utils"
	"github.com/crmkit/access-server/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

type FakeSessionRepo struct {
	records []*sessions.Record
	lock    sync.RWMutex
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{}
}

func (sr *FakeSessionRepo) CreateActive(record *sessions.Record) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	now := record.CreatedAt
	for _, existing := range sr.records {
		if existing.SubjectID == record.SubjectID && existing.SubjectKind == record.SubjectKind && existing.IsActive {
			existing.IsActive = false
			existing.InvalidatedAt = utils.Ptr(now)
		}
	}
	clone := *record
	sr.records = append(sr.records, &clone)
	return nil
}

func (sr *FakeSessionRepo) GetByTokenHash(tokenHash string) (*sessions.Record, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	for _, record := range sr.records {
		if record.TokenHash == tokenHash {
			clone := *record
			return &clone, nil
		}
	}
	return nil, interrors.ErrNotFound
}

func (sr *FakeSessionRepo) InvalidateByTokenHash(tokenHash string, at time.Time) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	for _, record := range sr.records {
		if record.TokenHash == tokenHash {
			if record.IsActive {
				record.IsActive = false
				record.InvalidatedAt = utils.Ptr(at)
			}
			return nil
		}
	}
	return interrors.ErrNotFound
}

func (sr *FakeSessionRepo) InvalidateAll(subjectID string, kind identity.SubjectKind, at time.Time) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	for _, record := range sr.records {
		if record.SubjectID == subjectID && record.SubjectKind == kind && record.IsActive {
			record.IsActive = false
			record.InvalidatedAt = utils.Ptr(at)
		}
	}
	return nil
}

// ActiveCount reports the number of active records for a subject. Test helper.
func (sr *FakeSessionRepo) ActiveCount(subjectID string, kind identity.SubjectKind) int {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	count := 0
	for _, record := range sr.records {
		if record.SubjectID == subjectID && record.SubjectKind == kind && record.IsActive {
			count++
		}
	}
	return count
}

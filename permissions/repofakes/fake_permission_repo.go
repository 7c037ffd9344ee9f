package repofakes

import (
	"sync"

	"github.com/crmkit/access-server/permissions"
	"github.com/pkg/errors"
)

var _ permissions.Repo = (*FakePermissionRepo)(nil)

type entryKey struct {
	role    string
	feature string
}

type FakePermissionRepo struct {
	entries map[entryKey]*permissions.Entry
	lock    sync.RWMutex

	// FailListAll simulates unreachable storage.
	FailListAll bool
	// FailOnFeature makes BulkUpsert fail when it reaches this feature,
	// exercising the all-or-nothing contract.
	FailOnFeature permissions.Feature
}

func NewFakePermissionRepo() *FakePermissionRepo {
	return &FakePermissionRepo{entries: make(map[entryKey]*permissions.Entry)}
}

func (pr *FakePermissionRepo) ListAll() ([]*permissions.Entry, error) {
	pr.lock.RLock()
	defer pr.lock.RUnlock()
	if pr.FailListAll {
		return nil, errors.New("storage unreachable")
	}
	list := make([]*permissions.Entry, 0, len(pr.entries))
	for _, entry := range pr.entries {
		clone := *entry
		list = append(list, &clone)
	}
	return list, nil
}

func (pr *FakePermissionRepo) Upsert(entry *permissions.Entry) error {
	pr.lock.Lock()
	defer pr.lock.Unlock()
	clone := *entry
	pr.entries[entryKey{string(entry.Role), string(entry.Feature)}] = &clone
	return nil
}

func (pr *FakePermissionRepo) BulkUpsert(entries []*permissions.Entry) error {
	pr.lock.Lock()
	defer pr.lock.Unlock()

	// Stage first so a mid-batch failure commits nothing.
	staged := make(map[entryKey]*permissions.Entry, len(entries))
	for _, entry := range entries {
		if pr.FailOnFeature != "" && entry.Feature == pr.FailOnFeature {
			return errors.Errorf("simulated failure on feature %s", entry.Feature)
		}
		clone := *entry
		staged[entryKey{string(entry.Role), string(entry.Feature)}] = &clone
	}
	for key, entry := range staged {
		pr.entries[key] = entry
	}
	return nil
}

// Len reports the number of stored entries. Test helper.
func (pr *FakePermissionRepo) Len() int {
	pr.lock.RLock()
	defer pr.lock.RUnlock()
	return len(pr.entries)
}

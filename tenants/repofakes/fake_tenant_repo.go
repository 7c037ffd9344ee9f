package repofakes

import (
	"sort"
	"sync"

	interrors "github.com/crmkit/access-server/internal/errors"
	"github.com/crmkit/access-server/tenants"
)

var _ tenants.Repo = (*FakeTenantRepo)(nil)

type FakeTenantRepo struct {
	sites map[string]*tenants.Site
	lock  sync.RWMutex
}

func NewFakeTenantRepo() *FakeTenantRepo {
	return &FakeTenantRepo{sites: make(map[string]*tenants.Site)}
}

func (tr *FakeTenantRepo) Upsert(site *tenants.Site) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	clone := *site
	tr.sites[site.ID] = &clone
	return nil
}

func (tr *FakeTenantRepo) Delete(siteID string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()
	if _, ok := tr.sites[siteID]; !ok {
		return interrors.ErrNotFound
	}
	delete(tr.sites, siteID)
	return nil
}

func (tr *FakeTenantRepo) Get(siteID string) (*tenants.Site, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	site, ok := tr.sites[siteID]
	if !ok {
		return nil, interrors.ErrNotFound
	}
	clone := *site
	return &clone, nil
}

func (tr *FakeTenantRepo) List(offset, limit int) ([]*tenants.Site, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	ids := make([]string, 0, len(tr.sites))
	for id := range tr.sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	list := make([]*tenants.Site, 0, limit)
	for i, id := range ids {
		if i < offset {
			continue
		}
		if len(list) >= limit {
			break
		}
		clone := *tr.sites[id]
		list = append(list, &clone)
	}
	return list, nil
}

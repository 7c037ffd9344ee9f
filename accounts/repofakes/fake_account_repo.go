package repofakes

import (
	"strings"
	"sync"
	"time"

	"github.com/crmkit/access-server/accounts"
	interrors "github.com/crmkit/access-server/internal/errors"
)

var _ accounts.Repo = (*FakeAccountRepo)(nil)

type FakeAccountRepo struct {
	byID map[string]*accounts.Account
	lock sync.RWMutex
}

func NewFakeAccountRepo() *FakeAccountRepo {
	return &FakeAccountRepo{byID: make(map[string]*accounts.Account)}
}

func (ar *FakeAccountRepo) Upsert(account *accounts.Account) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()
	clone := *account
	ar.byID[account.ID] = &clone
	return nil
}

func (ar *FakeAccountRepo) GetByUsername(username string) (*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()
	for _, account := range ar.byID {
		if strings.EqualFold(account.Username, username) {
			clone := *account
			return &clone, nil
		}
	}
	return nil, interrors.ErrNotFound
}

func (ar *FakeAccountRepo) GetByEmail(email string) (*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()
	for _, account := range ar.byID {
		if strings.EqualFold(account.Email, email) {
			clone := *account
			return &clone, nil
		}
	}
	return nil, interrors.ErrNotFound
}

func (ar *FakeAccountRepo) GetByID(id string) (*accounts.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()
	account, ok := ar.byID[id]
	if !ok {
		return nil, interrors.ErrNotFound
	}
	clone := *account
	return &clone, nil
}

func (ar *FakeAccountRepo) SetLastLogin(id string) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()
	account, ok := ar.byID[id]
	if !ok {
		return interrors.ErrNotFound
	}
	account.LastLogin = time.Now()
	return nil
}

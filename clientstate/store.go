// Package clientstate is a small file-backed key-value store holding the
// fallback caches: mirrored whitelist entries and audit events that could not
// be delivered. Everything in it is a cache, never the sole source of truth
// for an authorization decision.
package clientstate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Fixed namespaced keys.
const (
	KeyWhitelistPrefix = "crm_whitelist_" // + tenant id
	KeyAuditFallback   = "crm_audit_fallback"
)

// WhitelistKey returns the cache key for a tenant's mirrored whitelist.
func WhitelistKey(tenantID string) string {
	return KeyWhitelistPrefix + tenantID
}

type Store struct {
	path string
	mu   sync.Mutex
	data map[string]json.RawMessage
}

// Open loads the store file, creating parent directories as needed. A missing
// file yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path, data: make(map[string]json.RawMessage)}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, errors.Wrap(err, "[clientstate.Open] read")
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.data); err != nil {
			// A corrupt cache file is discarded rather than fatal; it holds
			// only degraded-mode data.
			s.data = make(map[string]json.RawMessage)
		}
	}
	return s, nil
}

// Get unmarshals the value under key into out. The boolean reports presence.
func (s *Store) Get(key string, out interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.data[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, errors.Wrapf(err, "[Store.Get] unmarshal %s", key)
	}
	return true, nil
}

// Put stores the value under key and persists the whole store.
func (s *Store) Put(key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "[Store.Put] marshal %s", key)
	}
	s.data[key] = raw
	return s.flush()
}

func (s *Store) flush() error {
	if s.path == "" {
		return nil // in-memory mode for tests
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "[Store.flush] mkdir")
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[Store.flush] marshal")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return errors.Wrap(err, "[Store.flush] write")
	}
	return errors.Wrap(os.Rename(tmp, s.path), "[Store.flush] rename")
}

// NewInMemory returns a store that never touches disk. Used by tests.
func NewInMemory() *Store {
	return &Store{data: make(map[string]json.RawMessage)}
}

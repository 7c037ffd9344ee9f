package clientstate_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crmkit/access-server/clientstate"
	"github.com/crmkit/access-server/tenantapi"
)

func TestPutGetSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "gate_cache.json")

	store, err := clientstate.Open(path)
	require.NoError(t, err)

	entries := []tenantapi.WhitelistEntry{{ID: "wl-1", IP: "203.0.113.5", SubjectID: "42"}}
	require.NoError(t, store.Put(clientstate.WhitelistKey("site-a"), entries))

	reopened, err := clientstate.Open(path)
	require.NoError(t, err)

	var got []tenantapi.WhitelistEntry
	ok, err := reopened.Get(clientstate.WhitelistKey("site-a"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entries, got)
}

func TestGetMissingKey(t *testing.T) {
	store := clientstate.NewInMemory()
	var out []tenantapi.WhitelistEntry
	ok, err := store.Get(clientstate.WhitelistKey("nope"), &out)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCorruptFileIsDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gate_cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store, err := clientstate.Open(path)
	require.NoError(t, err)

	var out []tenantapi.WhitelistEntry
	ok, err := store.Get(clientstate.WhitelistKey("site-a"), &out)
	require.NoError(t, err)
	require.False(t, ok)
}

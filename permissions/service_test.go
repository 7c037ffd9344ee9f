package permissions_test

import (
	"testing"

	"github.com/crmkit/access-server/identity"
	"github.com/crmkit/access-server/permissions"
	"github.com/crmkit/access-server/permissions/repofakes"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (*permissions.Service, *repofakes.FakePermissionRepo) {
	t.Helper()
	repo := repofakes.NewFakePermissionRepo()
	return permissions.NewService(repo), repo
}

func TestEvaluatePrivilegedAlwaysAllowed(t *testing.T) {
	service, _ := setupService(t)

	// No stored rows at all; the privileged role must still be full access.
	matrix, err := service.Load()
	require.NoError(t, err)

	for _, feature := range permissions.AllFeatures {
		require.True(t, permissions.Evaluate(matrix, identity.RolePrivileged, feature, permissions.AccessRead))
		require.True(t, permissions.Evaluate(matrix, identity.RolePrivileged, feature, permissions.AccessWrite))
	}
}

func TestEvaluateDenyByDefault(t *testing.T) {
	service, _ := setupService(t)
	require.NoError(t, service.Upsert(identity.RoleSEOManager, permissions.FeatureBlogs, true, false))

	matrix, err := service.Load()
	require.NoError(t, err)

	// Stored entry.
	require.True(t, permissions.Evaluate(matrix, identity.RoleSEOManager, permissions.FeatureBlogs, permissions.AccessRead))
	require.False(t, permissions.Evaluate(matrix, identity.RoleSEOManager, permissions.FeatureBlogs, permissions.AccessWrite))

	// Missing feature for a known role.
	require.False(t, permissions.Evaluate(matrix, identity.RoleSEOManager, permissions.FeatureLeads, permissions.AccessRead))
	// Missing role entirely.
	require.False(t, permissions.Evaluate(matrix, identity.RoleSalesPerson, permissions.FeatureBlogs, permissions.AccessRead))
	// Unknown access type.
	require.False(t, permissions.Evaluate(matrix, identity.RoleSEOManager, permissions.FeatureBlogs, permissions.AccessType("execute")))
}

func TestLoadOverwritesStoredPrivilegedRows(t *testing.T) {
	service, repo := setupService(t)

	// Storage somehow carries a row denying the privileged role. Load must
	// ignore it.
	require.NoError(t, repo.Upsert(&permissions.Entry{
		Role:    identity.RolePrivileged,
		Feature: permissions.FeatureLeads,
	}))

	matrix, err := service.Load()
	require.NoError(t, err)
	require.True(t, permissions.Evaluate(matrix, identity.RolePrivileged, permissions.FeatureLeads, permissions.AccessWrite))
}

func TestLoadOrDefaultSubstitutesOnStorageFailure(t *testing.T) {
	service, repo := setupService(t)
	repo.FailListAll = true

	matrix := service.LoadOrDefault()
	require.NotNil(t, matrix)

	// Defaults stay least-privilege.
	require.True(t, permissions.Evaluate(matrix, identity.RoleAdmin, permissions.FeatureLeads, permissions.AccessWrite))
	require.False(t, permissions.Evaluate(matrix, identity.RoleSalesPerson, permissions.FeatureLeads, permissions.AccessWrite))
	require.False(t, permissions.Evaluate(matrix, identity.RoleClient, permissions.FeatureSettings, permissions.AccessRead))
}

func TestUpsertIsIdempotent(t *testing.T) {
	service, repo := setupService(t)

	require.NoError(t, service.Upsert(identity.RoleAdmin, permissions.FeatureLeads, true, true))
	require.NoError(t, service.Upsert(identity.RoleAdmin, permissions.FeatureLeads, true, false))
	require.Equal(t, 1, repo.Len())

	matrix, err := service.Load()
	require.NoError(t, err)
	require.False(t, permissions.Evaluate(matrix, identity.RoleAdmin, permissions.FeatureLeads, permissions.AccessWrite))
}

func TestUpsertRejectsPrivilegedRole(t *testing.T) {
	service, _ := setupService(t)
	err := service.Upsert(identity.RolePrivileged, permissions.FeatureLeads, false, false)
	require.ErrorIs(t, err, permissions.ErrInvalidEntry)
}

func TestBulkUpsertAllOrNothing(t *testing.T) {
	service, repo := setupService(t)

	entries := []*permissions.Entry{
		{Role: identity.RoleAdmin, Feature: permissions.FeatureLeads, CanRead: true, CanWrite: true},
		{Role: identity.RoleAdmin, Feature: permissions.FeatureBlogs, CanRead: true},
		{Role: identity.RoleAdmin, Feature: "no-such-feature", CanRead: true},
		{Role: identity.RoleAdmin, Feature: permissions.FeatureUsers, CanRead: true},
		{Role: identity.RoleAdmin, Feature: permissions.FeatureSites, CanRead: true},
	}
	err := service.BulkUpsert(entries)
	require.ErrorIs(t, err, permissions.ErrInvalidEntry)
	require.Equal(t, 0, repo.Len())
}

func TestBulkUpsertRepoFailureCommitsNothing(t *testing.T) {
	service, repo := setupService(t)
	repo.FailOnFeature = permissions.FeatureUsers

	entries := []*permissions.Entry{
		{Role: identity.RoleAdmin, Feature: permissions.FeatureLeads, CanRead: true},
		{Role: identity.RoleAdmin, Feature: permissions.FeatureUsers, CanRead: true},
		{Role: identity.RoleAdmin, Feature: permissions.FeatureSites, CanRead: true},
	}
	require.Error(t, service.BulkUpsert(entries))
	require.Equal(t, 0, repo.Len())
}

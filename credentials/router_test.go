package credentials_test

import (
	"context"
	"testing"

	"github.com/crmkit/access-server/credentials"
	"github.com/crmkit/access-server/identity"
	"github.com/crmkit/access-server/tenantapi"
	"github.com/crmkit/access-server/tenantapi/clientfakes"
	"github.com/crmkit/access-server/tenants"
	"github.com/crmkit/access-server/tenants/repofakes"
	"github.com/stretchr/testify/require"
)

const (
	siteAURL = "https://a.example.com"
	siteBURL = "https://b.example.com"
	siteCURL = "https://c.example.com"
	siteDURL = "https://d.example.com"
)

type routerFixture struct {
	siteRepo *repofakes.FakeTenantRepo
	api      *clientfakes.FakeClient
	router   *credentials.Router
}

func setupRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		siteRepo: repofakes.NewFakeTenantRepo(),
		api:      clientfakes.NewFakeClient(),
	}
	require.NoError(t, f.siteRepo.Upsert(&tenants.Site{ID: "site-a", Name: "Site A", URL: siteAURL}))
	require.NoError(t, f.siteRepo.Upsert(&tenants.Site{
		ID: "site-b", Name: "Site B", URL: siteBURL,
		Username: "svc", Secret: "stored-secret",
	}))
	require.NoError(t, f.siteRepo.Upsert(&tenants.Site{ID: "site-c", Name: "Site C", URL: siteCURL}))
	f.router = credentials.NewRouter(f.siteRepo, f.api)
	return f
}

func privilegedContext() *credentials.SessionContext {
	return credentials.NewSessionContext(identity.Subject{
		ID:       "acct-1",
		Kind:     identity.KindPrivileged,
		Username: "admin",
		Role:     identity.RolePrivileged,
	})
}

func tenantUserContext() *credentials.SessionContext {
	return credentials.NewSessionContext(identity.Subject{
		ID:       "42",
		Kind:     identity.KindTenantUser,
		Username: "editor42",
		Role:     identity.RoleSEOManager,
	})
}

func TestResolveSessionCredentialWinsOverStored(t *testing.T) {
	f := setupRouterFixture(t)
	sc := privilegedContext()
	sc.SetCredential("site-b", credentials.Credential{Username: "me", Secret: "mine"})

	header, err := f.router.ResolveAuthHeader(sc, "site-b")
	require.NoError(t, err)
	require.Equal(t, tenantapi.BasicAuthHeader("me", "mine"), header)
}

func TestResolveStoredCredentialPrivilegedOnly(t *testing.T) {
	f := setupRouterFixture(t)

	header, err := f.router.ResolveAuthHeader(privilegedContext(), "site-b")
	require.NoError(t, err)
	require.Equal(t, tenantapi.BasicAuthHeader("svc", "stored-secret"), header)

	// A tenant user with no credentials at all never sees the site's stored
	// secret.
	header, err = f.router.ResolveAuthHeader(tenantUserContext(), "site-b")
	require.NoError(t, err)
	require.Empty(t, header)
}

func TestResolveLastGlobalFallback(t *testing.T) {
	f := setupRouterFixture(t)
	sc := tenantUserContext()
	sc.SetCredential("site-a", credentials.Credential{Username: "editor42", Secret: "pw"})

	// Site C has no session credential and no stored credential; the
	// caller's own last-login credential is the final fallback.
	header, err := f.router.ResolveAuthHeader(sc, "site-c")
	require.NoError(t, err)
	require.Equal(t, tenantapi.BasicAuthHeader("editor42", "pw"), header)
}

func TestResolveNoCredentialMeansEmptyHeader(t *testing.T) {
	f := setupRouterFixture(t)

	header, err := f.router.ResolveAuthHeader(tenantUserContext(), "site-a")
	require.NoError(t, err)
	require.Empty(t, header)
}

func TestLoginToSiteStopsAtFirstSuccess(t *testing.T) {
	f := setupRouterFixture(t)
	f.api.AddUser(siteBURL, "editor42", "pw", &tenantapi.ExternalUser{
		ID:    "42",
		Name:  "Editor",
		Roles: []string{"editor"},
	})

	sc := credentials.NewSessionContext(identity.Subject{})
	result, err := f.router.LoginToSite(context.Background(), sc, "editor42", "pw", "")
	require.NoError(t, err)
	require.Equal(t, "site-b", result.SiteID)
	require.Equal(t, identity.KindTenantUser, result.Subject.Kind)
	require.Equal(t, identity.RoleSEOManager, result.Subject.Role)

	// Valid only on the second site: the third is never probed.
	require.Equal(t, []string{siteAURL, siteBURL}, f.api.ProbedURLs)

	// The session credential is recorded for the matched tenant only.
	_, ok := sc.Credential("site-b")
	require.True(t, ok)
	_, ok = sc.Credential("site-a")
	require.False(t, ok)
	require.Equal(t, "site-b", sc.ActiveTenantID())
}

func TestLoginToSiteExplicitSiteOnly(t *testing.T) {
	f := setupRouterFixture(t)
	f.api.AddUser(siteCURL, "editor42", "pw", &tenantapi.ExternalUser{ID: "42", Roles: []string{"author"}})

	sc := credentials.NewSessionContext(identity.Subject{})
	result, err := f.router.LoginToSite(context.Background(), sc, "editor42", "pw", "site-c")
	require.NoError(t, err)
	require.Equal(t, "site-c", result.SiteID)
	require.Equal(t, []string{siteCURL}, f.api.ProbedURLs)
}

func TestLoginToSiteReturnsLastError(t *testing.T) {
	f := setupRouterFixture(t)
	// All sites reject; last error is invalid credentials.
	sc := credentials.NewSessionContext(identity.Subject{})
	_, err := f.router.LoginToSite(context.Background(), sc, "nobody", "wrong", "")
	require.ErrorIs(t, err, tenantapi.ErrInvalidCredentials)

	// Last probed site is down; the caller learns it was unreachable, not
	// that the credentials were bad.
	f.api.SetDown(siteCURL, true)
	f.api.ProbedURLs = nil
	_, err = f.router.LoginToSite(context.Background(), sc, "nobody", "wrong", "site-c")
	require.Error(t, err)
	require.NotErrorIs(t, err, tenantapi.ErrInvalidCredentials)
}

func TestLoginToSiteUnknownRoleMapsToClient(t *testing.T) {
	f := setupRouterFixture(t)
	f.api.AddUser(siteAURL, "visitor", "pw", &tenantapi.ExternalUser{ID: "7", Roles: []string{"subscriber"}})

	sc := credentials.NewSessionContext(identity.Subject{})
	result, err := f.router.LoginToSite(context.Background(), sc, "visitor", "pw", "site-a")
	require.NoError(t, err)
	require.Equal(t, identity.RoleClient, result.Subject.Role)
}

func TestLoginToSiteHonoursAssignments(t *testing.T) {
	f := setupRouterFixture(t)
	require.NoError(t, f.siteRepo.Upsert(&tenants.Site{
		ID: "site-d", Name: "Site D", URL: siteDURL,
		AssignedSubjectIDs: []string{"99"},
	}))
	f.api.AddUser(siteDURL, "editor42", "pw", &tenantapi.ExternalUser{ID: "42", Roles: []string{"editor"}})

	// The tenant accepts the credential, but the site is assigned elsewhere.
	sc := credentials.NewSessionContext(identity.Subject{})
	_, err := f.router.LoginToSite(context.Background(), sc, "editor42", "pw", "site-d")
	require.ErrorIs(t, err, credentials.ErrSiteNotAssigned)
	_, ok := sc.Credential("site-d")
	require.False(t, ok)

	require.NoError(t, f.siteRepo.Upsert(&tenants.Site{
		ID: "site-d", Name: "Site D", URL: siteDURL,
		AssignedSubjectIDs: []string{"42", "99"},
	}))
	result, err := f.router.LoginToSite(context.Background(), sc, "editor42", "pw", "site-d")
	require.NoError(t, err)
	require.Equal(t, "site-d", result.SiteID)
}

func TestSwitchTenantHonoursAssignments(t *testing.T) {
	f := setupRouterFixture(t)
	require.NoError(t, f.siteRepo.Upsert(&tenants.Site{
		ID: "site-d", Name: "Site D", URL: siteDURL,
		AssignedSubjectIDs: []string{"99"},
	}))

	// Even a held session credential does not override the assignment list.
	sc := tenantUserContext()
	sc.SetCredential("site-d", credentials.Credential{Username: "editor42", Secret: "pw"})
	require.ErrorIs(t, f.router.SwitchTenant(sc, "site-d"), credentials.ErrSiteNotAssigned)

	// Privileged subjects are not subject to assignment filtering.
	require.NoError(t, f.router.SwitchTenant(privilegedContext(), "site-d"))
}

func TestSwitchTenantRequiresReauthentication(t *testing.T) {
	f := setupRouterFixture(t)
	sc := tenantUserContext()
	sc.SetCredential("site-a", credentials.Credential{Username: "editor42", Secret: "pw"})
	require.NoError(t, f.router.SwitchTenant(sc, "site-a"))

	err := f.router.SwitchTenant(sc, "site-c")
	require.ErrorIs(t, err, credentials.ErrReauthenticationRequired)
	require.Equal(t, "site-a", sc.ActiveTenantID())

	// Privileged subjects switch freely.
	require.NoError(t, f.router.SwitchTenant(privilegedContext(), "site-c"))
}

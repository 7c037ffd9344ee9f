package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/crmkit/access-server/accounts"
	accountfakes "github.com/crmkit/access-server/accounts/repofakes"
	"github.com/crmkit/access-server/clientstate"
	"github.com/crmkit/access-server/credentials"
	"github.com/crmkit/access-server/internal/config"
	"github.com/crmkit/access-server/ipgate"
	"github.com/crmkit/access-server/permissions"
	permissionfakes "github.com/crmkit/access-server/permissions/repofakes"
	"github.com/crmkit/access-server/server"
	"github.com/crmkit/access-server/sessions"
	sessionfakes "github.com/crmkit/access-server/sessions/repofakes"
	"github.com/crmkit/access-server/tenantapi"
	"github.com/crmkit/access-server/tenantapi/clientfakes"
	"github.com/crmkit/access-server/tenants"
	tenantfakes "github.com/crmkit/access-server/tenants/repofakes"
	"github.com/crmkit/access-server/token"
)

const (
	testAdminPassword = "correct-horse-battery"
	testSiteURL       = "https://a.example.com"
	testSiteID        = "site-a"
	testEchoIP        = "203.0.113.5"
)

type testConfig struct {
	config.Cors
	rateLimiting bool
}

func (testConfig) GetPort() string                   { return ":0" }
func (testConfig) GetAppName() string                { return "access server" }
func (testConfig) GetDataFolder() string             { return "" }
func (testConfig) GetBaseURL() string                { return "http://localhost:8080" }
func (testConfig) GetSmtpHost() string               { return "" }
func (testConfig) GetSmtpPort() int                  { return 0 }
func (testConfig) GetSmtpPassword() string           { return "" }
func (testConfig) GetSmtpAccount() string            { return "" }
func (testConfig) GetSmtpRecipient() string          { return "" }
func (testConfig) GetEnv() string                    { return "TEST" }
func (testConfig) GetTokenSecret() string            { return "test-token-secret" }
func (testConfig) GetTokenExpiry() time.Duration     { return time.Hour }
func (testConfig) GetSessionExpiry() time.Duration   { return time.Hour }
func (c testConfig) GetEnableRateLimiting() bool     { return c.rateLimiting }
func (testConfig) GetLoginRatePerMinute() int        { return 1 }
func (testConfig) GetLoginBurst() int                { return 2 }
func (testConfig) GetGateBypassIP() string           { return "" }
func (testConfig) GetIPEchoURL() string              { return "" }
func (testConfig) GetGateCacheFile() string          { return "" }
func (testConfig) GetAuditRingLimit() int            { return 100 }
func (testConfig) GetOidcIssuer() string             { return "" }
func (testConfig) GetOidcClientID() string           { return "" }
func (testConfig) GetOidcClientSecret() string       { return "" }
func (testConfig) GetOidcRedirectURL() string        { return "" }

type fakeEcho struct {
	ip  string
	err error
}

func (f *fakeEcho) PublicIP(context.Context) (string, error) { return f.ip, f.err }

type testFixture struct {
	t        *testing.T
	server   *server.Server
	accounts *accountfakes.FakeAccountRepo
	perms    *permissionfakes.FakePermissionRepo
	sites    *tenantfakes.FakeTenantRepo
	api      *clientfakes.FakeClient
	echo     *fakeEcho
	contexts *credentials.ContextRegistry
}

func setupTestFixture(t *testing.T, cfg testConfig) *testFixture {
	t.Helper()

	accountRepo := accountfakes.NewFakeAccountRepo()
	hash, err := accounts.HashPassword(testAdminPassword)
	require.NoError(t, err)
	require.NoError(t, accountRepo.Upsert(&accounts.Account{
		ID:           "admin-1",
		Username:     "admin",
		Email:        "admin@example.com",
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}))

	siteRepo := tenantfakes.NewFakeTenantRepo()
	require.NoError(t, siteRepo.Upsert(&tenants.Site{
		ID:        testSiteID,
		Name:      "Site A",
		URL:       testSiteURL,
		IsDefault: true,
	}))

	api := clientfakes.NewFakeClient()
	api.AddUser(testSiteURL, "jane", "tenant-secret", &tenantapi.ExternalUser{
		ID:    "42",
		Name:  "Jane",
		Roles: []string{"editor"},
	})
	api.SetWhitelist(testSiteURL, []tenantapi.WhitelistEntry{
		{ID: "wl-1", IP: testEchoIP, SubjectID: "42"},
	})

	echo := &fakeEcho{ip: testEchoIP}
	router := credentials.NewRouter(siteRepo, api)
	cache := clientstate.NewInMemory()
	gate := ipgate.New(echo, api, router, siteRepo, cache, ipgate.NewRingLog(cache, 100))

	permRepo := permissionfakes.NewFakePermissionRepo()
	contexts := credentials.NewContextRegistry()

	deps := server.Deps{
		Accounts: accountRepo,
		Sessions: sessions.NewRegistry(sessionfakes.NewFakeSessionRepo()),
		Tokens:   token.New(cfg.GetTokenSecret(), token.WithExpiry(cfg.GetTokenExpiry())),
		Perms:    permissions.NewService(permRepo),
		Sites:    siteRepo,
		API:      api,
		Router:   router,
		Contexts: contexts,
		Gate:     gate,
	}

	srv, err := server.New(context.Background(), cfg, deps)
	require.NoError(t, err)

	return &testFixture{
		t:        t,
		server:   srv,
		accounts: accountRepo,
		perms:    permRepo,
		sites:    siteRepo,
		api:      api,
		echo:     echo,
		contexts: contexts,
	}
}

func (f *testFixture) do(method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func (f *testFixture) decode(rec *httptest.ResponseRecorder, out interface{}) {
	f.t.Helper()
	require.NoError(f.t, json.NewDecoder(rec.Body).Decode(out))
}

func (f *testFixture) loginAdmin() string {
	f.t.Helper()
	rec := f.do(http.MethodPost, server.RouteAPILogin, "", map[string]string{
		"username": "admin",
		"password": testAdminPassword,
	})
	require.Equal(f.t, http.StatusOK, rec.Code)
	var resp struct {
		Token string `json:"token"`
	}
	f.decode(rec, &resp)
	require.NotEmpty(f.t, resp.Token)
	return resp.Token
}

func TestPrivilegedLoginAndSession(t *testing.T) {
	f := setupTestFixture(t, testConfig{})
	bearer := f.loginAdmin()

	rec := f.do(http.MethodGet, server.RouteAPISession, bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Subject struct {
			Kind string `json:"kind"`
			Role string `json:"role"`
		} `json:"subject"`
	}
	f.decode(rec, &resp)
	require.Equal(t, "privileged", resp.Subject.Kind)
	require.Equal(t, "privileged", resp.Subject.Role)
}

func TestPrivilegedLoginWrongPassword(t *testing.T) {
	f := setupTestFixture(t, testConfig{})
	rec := f.do(http.MethodPost, server.RouteAPILogin, "", map[string]string{
		"username": "admin",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp struct {
		Code string `json:"code"`
	}
	f.decode(rec, &resp)
	require.Equal(t, "INVALID_CREDENTIALS", resp.Code)
}

func TestSecondLoginSupersedesFirst(t *testing.T) {
	f := setupTestFixture(t, testConfig{})
	first := f.loginAdmin()
	second := f.loginAdmin()

	rec := f.do(http.MethodGet, server.RouteAPISession, first, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var resp struct {
		Code string `json:"code"`
	}
	f.decode(rec, &resp)
	require.Equal(t, "SESSION_INVALIDATED", resp.Code)

	rec = f.do(http.MethodGet, server.RouteAPISession, second, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSupersededLoginDropsSessionContext(t *testing.T) {
	f := setupTestFixture(t, testConfig{})
	first := f.loginAdmin()
	second := f.loginAdmin()

	// The superseded session's credential-bearing context must not linger in
	// memory once its session is dead.
	_, ok := f.contexts.Get(first)
	require.False(t, ok)
	_, ok = f.contexts.Get(second)
	require.True(t, ok)
}

func TestTotpSetupEnforcedAtNextLogin(t *testing.T) {
	f := setupTestFixture(t, testConfig{})
	bearer := f.loginAdmin()

	rec := f.do(http.MethodPost, server.RouteAPITotpSetup, bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var setup struct {
		Secret string `json:"secret"`
	}
	f.decode(rec, &setup)
	require.NotEmpty(t, setup.Secret)

	// Password alone no longer signs in.
	rec = f.do(http.MethodPost, server.RouteAPILogin, "", map[string]string{
		"username": "admin",
		"password": testAdminPassword,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var errResp struct {
		Code string `json:"code"`
	}
	f.decode(rec, &errResp)
	require.Equal(t, "INVALID_TOTP", errResp.Code)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	rec = f.do(http.MethodPost, server.RouteAPILogin, "", map[string]string{
		"username":  "admin",
		"password":  testAdminPassword,
		"totp_code": code,
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := setupTestFixture(t, testConfig{})
	bearer := f.loginAdmin()

	require.Equal(t, http.StatusNoContent, f.do(http.MethodPost, server.RouteAPILogout, bearer, nil).Code)
	require.Equal(t, http.StatusNoContent, f.do(http.MethodPost, server.RouteAPILogout, bearer, nil).Code)
	require.Equal(t, http.StatusNoContent, f.do(http.MethodPost, server.RouteAPILogout, "", nil).Code)

	rec := f.do(http.MethodGet, server.RouteAPISession, bearer, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSiteLoginRunsGate(t *testing.T) {
	f := setupTestFixture(t, testConfig{})
	rec := f.do(http.MethodPost, server.RouteAPISiteLogin, "", map[string]string{
		"username": "jane",
		"secret":   "tenant-secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token   string `json:"token"`
		SiteID  string `json:"site_id"`
		Subject struct {
			Kind string `json:"kind"`
			Role string `json:"role"`
		} `json:"subject"`
		Gate struct {
			State  string `json:"state"`
			Reason string `json:"reason"`
		} `json:"gate"`
	}
	f.decode(rec, &resp)
	require.NotEmpty(t, resp.Token)
	require.Equal(t, testSiteID, resp.SiteID)
	require.Equal(t, "tenant-user", resp.Subject.Kind)
	require.Equal(t, "seo_manager", resp.Subject.Role)
	require.Equal(t, "allowed", resp.Gate.State)
	require.Equal(t, "whitelisted", resp.Gate.Reason)
}

func TestSiteLoginInvalidCredentials(t *testing.T) {
	f := setupTestFixture(t, testConfig{})
	rec := f.do(http.MethodPost, server.RouteAPISiteLogin, "", map[string]string{
		"username": "jane",
		"secret":   "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp struct {
		Code string `json:"code"`
	}
	f.decode(rec, &resp)
	require.Equal(t, "INVALID_CREDENTIALS", resp.Code)
}

func TestSiteLoginUpstreamUnreachable(t *testing.T) {
	f := setupTestFixture(t, testConfig{})
	f.api.SetDown(testSiteURL, true)

	rec := f.do(http.MethodPost, server.RouteAPISiteLogin, "", map[string]string{
		"username": "jane",
		"secret":   "tenant-secret",
	})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var resp struct {
		Code string `json:"code"`
	}
	f.decode(rec, &resp)
	require.Equal(t, "UPSTREAM_UNREACHABLE", resp.Code)
}

func TestPermissionsPublicReadAndPrivilegedWrite(t *testing.T) {
	f := setupTestFixture(t, testConfig{})

	// Public read works without a token and includes the seeded defaults.
	rec := f.do(http.MethodGet, server.RouteAPIPermissions, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp struct {
		Matrix   permissions.Matrix `json:"matrix"`
		Degraded bool               `json:"degraded"`
	}
	f.decode(rec, &listResp)
	require.False(t, listResp.Degraded)
	require.NotEmpty(t, listResp.Matrix)

	// Writes demand a privileged bearer.
	update := map[string]interface{}{
		"role": "seo_manager", "feature": "blogs", "can_read": true, "can_write": true,
	}
	require.Equal(t, http.StatusUnauthorized, f.do(http.MethodPut, server.RouteAPIPermissions, "", update).Code)

	bearer := f.loginAdmin()
	require.Equal(t, http.StatusNoContent, f.do(http.MethodPut, server.RouteAPIPermissions, bearer, update).Code)

	rec = f.do(http.MethodGet, server.RouteAPIPermissions, "", nil)
	f.decode(rec, &listResp)
	require.True(t, listResp.Matrix["seo_manager"]["blogs"].CanWrite)
}

func TestPermissionWriteForbiddenForTenantUser(t *testing.T) {
	f := setupTestFixture(t, testConfig{})
	rec := f.do(http.MethodPost, server.RouteAPISiteLogin, "", map[string]string{
		"username": "jane",
		"secret":   "tenant-secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	f.decode(rec, &login)

	update := map[string]interface{}{
		"role": "client", "feature": "leads", "can_read": true, "can_write": false,
	}
	require.Equal(t, http.StatusForbidden, f.do(http.MethodPut, server.RouteAPIPermissions, login.Token, update).Code)
}

func TestPermissionBulkRejectsMalformedBatch(t *testing.T) {
	f := setupTestFixture(t, testConfig{})
	bearer := f.loginAdmin()
	before := f.perms.Len()

	body := map[string]interface{}{
		"entries": []map[string]interface{}{
			{"role": "client", "feature": "leads", "can_read": true},
			{"role": "privileged", "feature": "leads", "can_read": true},
		},
	}
	rec := f.do(http.MethodPut, server.RouteAPIPermissionsBulk, bearer, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, before, f.perms.Len())
}

func TestSitesCRUDNeverReturnsSecret(t *testing.T) {
	f := setupTestFixture(t, testConfig{})
	bearer := f.loginAdmin()

	rec := f.do(http.MethodPost, server.RouteAPISites, bearer, map[string]interface{}{
		"name":     "Site B",
		"url":      "https://b.example.com",
		"username": "svc",
		"secret":   "stored-secret",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotContains(t, rec.Body.String(), "stored-secret")

	var created struct {
		ID string `json:"id"`
	}
	f.decode(rec, &created)
	require.NotEmpty(t, created.ID)

	stored, err := f.sites.Get(created.ID)
	require.NoError(t, err)
	require.Equal(t, "stored-secret", stored.Secret)

	// Update without a secret keeps the stored one.
	rec = f.do(http.MethodPut, "/api/sites/"+created.ID, bearer, map[string]interface{}{
		"name": "Site B renamed",
		"url":  "https://b.example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	stored, err = f.sites.Get(created.ID)
	require.NoError(t, err)
	require.Equal(t, "Site B renamed", stored.Name)
	require.Equal(t, "stored-secret", stored.Secret)

	require.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/sites/"+created.ID, bearer, nil).Code)
	require.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/sites/"+created.ID, bearer, nil).Code)
}

func TestGateEndpointRestrictsUnknownIP(t *testing.T) {
	f := setupTestFixture(t, testConfig{})
	rec := f.do(http.MethodPost, server.RouteAPISiteLogin, "", map[string]string{
		"username": "jane",
		"secret":   "tenant-secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	f.decode(rec, &login)

	f.echo.ip = "198.51.100.99" // address no longer whitelisted
	rec = f.do(http.MethodGet, server.RouteAPIGate, login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var decision struct {
		State  string `json:"state"`
		Reason string `json:"reason"`
	}
	f.decode(rec, &decision)
	require.Equal(t, "restricted", decision.State)
	require.Equal(t, "not_whitelisted", decision.Reason)
}

func TestGateRequestFilesAuditEvent(t *testing.T) {
	f := setupTestFixture(t, testConfig{})
	rec := f.do(http.MethodPost, server.RouteAPISiteLogin, "", map[string]string{
		"username": "jane",
		"secret":   "tenant-secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	f.decode(rec, &login)

	rec = f.do(http.MethodPost, server.RouteAPIGateRequest, login.Token, map[string]string{"site_id": testSiteID})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, f.api.AuditLog[testSiteURL], 1)
	require.Equal(t, tenantapi.AuditPermissionRequest, f.api.AuditLog[testSiteURL][0].Kind)
}

func TestSwitchTenantRequiresReauthForTenantUser(t *testing.T) {
	f := setupTestFixture(t, testConfig{})
	require.NoError(t, f.sites.Upsert(&tenants.Site{ID: "site-b", Name: "Site B", URL: "https://b.example.com"}))

	rec := f.do(http.MethodPost, server.RouteAPISiteLogin, "", map[string]string{
		"username": "jane",
		"secret":   "tenant-secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	f.decode(rec, &login)

	rec = f.do(http.MethodPost, server.RouteAPISwitchTenant, login.Token, map[string]string{"site_id": "site-b"})
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		Code string `json:"code"`
	}
	f.decode(rec, &resp)
	require.Equal(t, "REAUTH_REQUIRED", resp.Code)

	// Switching back to the tenant they authenticated against is fine.
	rec = f.do(http.MethodPost, server.RouteAPISwitchTenant, login.Token, map[string]string{"site_id": testSiteID})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginRateLimiting(t *testing.T) {
	f := setupTestFixture(t, testConfig{rateLimiting: true})

	body := map[string]string{"username": "admin", "password": "wrong"}
	require.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, server.RouteAPILogin, "", body).Code)
	require.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, server.RouteAPILogin, "", body).Code)

	rec := f.do(http.MethodPost, server.RouteAPILogin, "", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp struct {
		Code string `json:"code"`
	}
	f.decode(rec, &resp)
	require.Equal(t, "RATE_LIMITED", resp.Code)
}

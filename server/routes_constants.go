package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteAPILogin        = "/api/auth/login"
	RouteAPISiteLogin    = "/api/auth/site-login"
	RouteAPISession      = "/api/auth/session"
	RouteAPILogout       = "/api/auth/logout"
	RouteAPISwitchTenant = "/api/auth/switch-tenant"
	RouteAPITotpSetup    = "/api/auth/totp/setup"

	// IP Gate Routes
	RouteAPIGate        = "/api/auth/gate"
	RouteAPIGateRequest = "/api/auth/gate/request"

	// Permission Matrix Routes
	RouteAPIPermissions     = "/api/permissions"
	RouteAPIPermissionsBulk = "/api/permissions/bulk"

	// Tenant Site Routes
	RouteAPISites    = "/api/sites"
	RouteAPISiteByID = "/api/sites/{id}"

	// Federated privileged sign-in (registered only when an issuer is configured)
	RouteOidcLogin    = "/auth/oidc/login"
	RouteOidcCallback = "/auth/oidc/callback"
)

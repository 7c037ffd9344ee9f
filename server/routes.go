package server

import "net/http"

func (s *Server) initRoutes() {
	// Sign-in routes carry the login rate limiter in front of everything else.
	s.RegisterRouteHandler("POST "+RouteAPILogin, ChainMiddleware(s.LoginHandler(), s.LoginMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPISiteLogin, ChainMiddleware(s.SiteLoginHandler(), s.LoginMiddleware()...))

	// Session lifecycle. Logout is deliberately not behind RequireAuth: an
	// expired or superseded token must still be able to log out cleanly.
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionHandler(), s.authAPIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPILogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPISwitchTenant, ChainMiddleware(s.SwitchTenantHandler(), s.authAPIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPITotpSetup, ChainMiddleware(s.TotpSetupHandler(), s.privilegedAPIMiddleware()...))

	// IP gate
	s.RegisterRouteHandler("GET "+RouteAPIGate, ChainMiddleware(s.GateHandler(), s.authAPIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPIGateRequest, ChainMiddleware(s.GateRequestHandler(), s.authAPIMiddleware()...))

	// Permission matrix: the read is public so the console can render before
	// sign-in; writes are privileged-only.
	s.RegisterRouteHandler("GET "+RouteAPIPermissions, ChainMiddleware(s.PermissionsListHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("PUT "+RouteAPIPermissions, ChainMiddleware(s.PermissionUpsertHandler(), s.privilegedAPIMiddleware()...))
	s.RegisterRouteHandler("PUT "+RouteAPIPermissionsBulk, ChainMiddleware(s.PermissionBulkUpsertHandler(), s.privilegedAPIMiddleware()...))

	// Tenant site management
	s.RegisterRouteHandler("GET "+RouteAPISites, ChainMiddleware(s.SitesListHandler(), s.privilegedAPIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPISites, ChainMiddleware(s.SiteUpsertHandler(), s.privilegedAPIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPISiteByID, ChainMiddleware(s.SiteGetHandler(), s.privilegedAPIMiddleware()...))
	s.RegisterRouteHandler("PUT "+RouteAPISiteByID, ChainMiddleware(s.SiteUpsertHandler(), s.privilegedAPIMiddleware()...))
	s.RegisterRouteHandler("DELETE "+RouteAPISiteByID, ChainMiddleware(s.SiteDeleteHandler(), s.privilegedAPIMiddleware()...))

	if s.oidc != nil {
		s.RegisterRouteFunc("GET "+RouteOidcLogin, s.OidcLoginHandler())
		s.RegisterRouteFunc("GET "+RouteOidcCallback, s.OidcCallbackHandler())
	}
}

func (s *Server) authAPIMiddleware() []func(http.HandlerFunc) http.HandlerFunc {
	return append(s.APIMiddleware(), s.RequireAuth())
}

func (s *Server) privilegedAPIMiddleware() []func(http.HandlerFunc) http.HandlerFunc {
	return append(s.authAPIMiddleware(), s.RequirePrivileged())
}

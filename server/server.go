// Package server wires the HTTP surface of the access console: privileged and
// tenant-user sign-in, session checks, the permission matrix admin API, tenant
// site management and the IP gate endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/crmkit/access-server/accounts"
	"github.com/crmkit/access-server/credentials"
	"github.com/crmkit/access-server/internal/config"
	"github.com/crmkit/access-server/ipgate"
	"github.com/crmkit/access-server/permissions"
	"github.com/crmkit/access-server/sessions"
	"github.com/crmkit/access-server/tenantapi"
	"github.com/crmkit/access-server/tenants"
	"github.com/crmkit/access-server/token"
)

// Deps collects everything the handlers need. Repos are interfaces so tests
// can swap in fakes.
type Deps struct {
	Accounts accounts.Repo
	Sessions *sessions.Registry
	Tokens   *token.Issuer
	Perms    *permissions.Service
	Sites    tenants.Repo
	API      tenantapi.Client
	Router   *credentials.Router
	Contexts *credentials.ContextRegistry
	Gate     *ipgate.Gate
}

type oidcState struct {
	provider *oidc.Provider
	oauth2   *oauth2.Config

	mu     sync.Mutex
	nonces map[string]string // state -> nonce
}

type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	config config.Config
	deps   Deps

	oidc *oidcState
}

func New(ctx context.Context, cfg config.Config, deps Deps) (*Server, error) {
	s := &Server{
		mux:    http.NewServeMux(),
		config: cfg,
		deps:   deps,
	}
	s.env = cfg.GetEnv()

	if err := s.InitialiseSystem(ctx, cfg); err != nil {
		return nil, fmt.Errorf("[Server New] failed to initialise the system: %w", err)
	}

	if cfg.GetOidcIssuer() != "" {
		if err := s.initOidc(ctx, cfg); err != nil {
			return nil, fmt.Errorf("[Server New] failed to configure oidc: %w", err)
		}
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) initOidc(ctx context.Context, cfg config.Config) error {
	provider, err := oidc.NewProvider(ctx, cfg.GetOidcIssuer())
	if err != nil {
		return fmt.Errorf("[Server initOidc] provider discovery: %w", err)
	}
	s.oidc = &oidcState{
		provider: provider,
		oauth2: &oauth2.Config{
			ClientID:     cfg.GetOidcClientID(),
			ClientSecret: cfg.GetOidcClientSecret(),
			RedirectURL:  cfg.GetOidcRedirectURL(),
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		nonces: make(map[string]string),
	}
	return nil
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

// clientIP prefers the proxy-provided address and falls back to the socket.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}

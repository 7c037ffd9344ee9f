package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/crmkit/access-server/credentials"
	"github.com/crmkit/access-server/identity"
	"github.com/crmkit/access-server/token"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySessionContext stores the caller's *credentials.SessionContext
const ContextKeySessionContext ContextKey = "session_context"

// RequireAuth validates a Bearer token cryptographically and then against the
// session registry. A well-signed token whose session has been superseded or
// terminated is rejected with the SESSION_INVALIDATED code so the console can
// tell the user why they were signed out.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rawToken, ok := bearerToken(r)
			if !ok {
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or malformed Authorization header")
				return
			}

			claims, err := s.deps.Tokens.Verify(rawToken)
			if err != nil {
				if errors.Is(err, token.ErrTokenExpired) {
					respondError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "token expired")
					return
				}
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
				return
			}

			active, err := s.deps.Sessions.IsActive(rawToken)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "INTERNAL", "session lookup failed")
				return
			}
			if !active {
				respondError(w, http.StatusUnauthorized, "SESSION_INVALIDATED", "session has been invalidated")
				return
			}

			sc, ok := s.deps.Contexts.Get(rawToken)
			if !ok {
				// The in-memory context does not survive a restart; rebuild a
				// minimal one from the session record. Tenant credentials are
				// gone and the subject must site-login again to get them back.
				sc = s.rebuildContext(rawToken, claims)
				s.deps.Contexts.Put(rawToken, sc)
			}

			ctx := context.WithValue(r.Context(), ContextKeySessionContext, sc)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequirePrivileged rejects non-privileged subjects. Chain after RequireAuth.
func (s *Server) RequirePrivileged() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			sc := sessionContext(r)
			if sc == nil || !sc.Subject().IsPrivileged() {
				respondError(w, http.StatusForbidden, "FORBIDDEN", "privileged access required")
				return
			}
			next(w, r)
		}
	}
}

func (s *Server) rebuildContext(rawToken string, claims *token.Claims) *credentials.SessionContext {
	subject := identity.Subject{
		ID:       claims.ID,
		Kind:     identity.KindTenantUser,
		Username: claims.Username,
		Role:     identity.RoleClient,
	}
	record, err := s.deps.Sessions.Lookup(rawToken)
	if err == nil && record.SubjectKind == identity.KindPrivileged {
		subject.Kind = identity.KindPrivileged
		subject.Role = identity.RolePrivileged
	}
	return credentials.NewSessionContext(subject)
}

func sessionContext(r *http.Request) *credentials.SessionContext {
	sc, _ := r.Context().Value(ContextKeySessionContext).(*credentials.SessionContext)
	return sc
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

package server

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/crmkit/access-server/accounts"
	"github.com/crmkit/access-server/credentials"
	"github.com/crmkit/access-server/identity"
	interrors "github.com/crmkit/access-server/internal/errors"
	"github.com/crmkit/access-server/ipgate"
	"github.com/crmkit/access-server/tenantapi"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TotpCode string `json:"totp_code,omitempty"`
}

type siteLoginRequest struct {
	Username string `json:"username"`
	Secret   string `json:"secret"`
	SiteID   string `json:"site_id,omitempty"`
}

type loginResponse struct {
	Token   string           `json:"token"`
	Subject identity.Subject `json:"subject"`
	SiteID  string           `json:"site_id,omitempty"`
	Gate    *ipgate.Decision `json:"gate,omitempty"`
}

// LoginHandler signs in the privileged operator against the local credential
// store. Failures are reported uniformly so the response does not reveal
// whether the username exists.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil || req.Username == "" || req.Password == "" {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "username and password are required")
			return
		}

		account, err := s.deps.Accounts.GetByUsername(req.Username)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "login failed")
			return
		}
		if !accounts.CheckPasswordHash(req.Password, account.PasswordHash) {
			respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "login failed")
			return
		}
		if account.HasTOTP() && !accounts.VerifyTOTP(account.TOTPSecret, req.TotpCode) {
			respondError(w, http.StatusUnauthorized, "INVALID_TOTP", "invalid one-time code")
			return
		}

		subject := identity.Subject{
			ID:       account.ID,
			Kind:     identity.KindPrivileged,
			Username: account.Username,
			Role:     identity.RolePrivileged,
		}
		resp, err := s.establishSession(r, subject)
		if err != nil {
			log.Error().Err(err).Msg("privileged login failed to establish session")
			respondError(w, http.StatusInternalServerError, "INTERNAL", "login failed")
			return
		}
		if err := s.deps.Accounts.SetLastLogin(account.ID); err != nil {
			log.Warn().Err(err).Msg("failed to record last login")
		}

		respondJSON(w, http.StatusOK, resp)
	}
}

// SiteLoginHandler signs a tenant user in by probing their credential against
// the configured tenants, then runs the IP gate for the matched tenant.
func (s *Server) SiteLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req siteLoginRequest
		if err := decodeJSON(r, &req); err != nil || req.Username == "" || req.Secret == "" {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "username and secret are required")
			return
		}

		sc := credentials.NewSessionContext(identity.Subject{})
		login, err := s.deps.Router.LoginToSite(r.Context(), sc, req.Username, req.Secret, req.SiteID)
		if err != nil {
			switch {
			case errors.Is(err, tenantapi.ErrInvalidCredentials):
				respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "no tenant accepted the credential")
			case errors.Is(err, credentials.ErrSiteNotAssigned):
				respondError(w, http.StatusForbidden, "NOT_ASSIGNED", "no assigned tenant accepted the credential")
			case errors.Is(err, interrors.ErrUpstreamUnreachable):
				respondError(w, http.StatusBadGateway, "UPSTREAM_UNREACHABLE", "tenant could not be reached")
			case errors.Is(err, credentials.ErrNoCandidateSites), errors.Is(err, interrors.ErrNotFound):
				respondError(w, http.StatusNotFound, "NO_CANDIDATE_SITES", "no tenant sites configured")
			default:
				respondError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "login failed")
			}
			return
		}

		resp, err := s.establishSessionWithContext(r, login.Subject, sc)
		if err != nil {
			log.Error().Err(err).Msg("site login failed to establish session")
			respondError(w, http.StatusInternalServerError, "INTERNAL", "login failed")
			return
		}
		resp.SiteID = login.SiteID

		gate := s.deps.Gate.Evaluate(r.Context(), sc, login.SiteID)
		resp.Gate = &gate

		respondJSON(w, http.StatusOK, resp)
	}
}

// SessionHandler reports on the caller's live session.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc := sessionContext(r)
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"subject":          sc.Subject(),
			"active_tenant_id": sc.ActiveTenantID(),
		})
	}
}

// LogoutHandler terminates the caller's session. Idempotent: a missing,
// expired or already-invalidated token still yields success.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err := s.deps.Sessions.Invalidate(raw); err != nil {
			log.Warn().Err(err).Msg("logout invalidation failed")
			respondError(w, http.StatusInternalServerError, "INTERNAL", "logout failed")
			return
		}
		s.deps.Contexts.Drop(raw)
		w.WriteHeader(http.StatusNoContent)
	}
}

type switchTenantRequest struct {
	SiteID string `json:"site_id"`
}

// SwitchTenantHandler changes the caller's active tenant. Tenant users without
// a session credential for the target are told to re-authenticate.
func (s *Server) SwitchTenantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req switchTenantRequest
		if err := decodeJSON(r, &req); err != nil || req.SiteID == "" {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "site_id is required")
			return
		}
		sc := sessionContext(r)
		if err := s.deps.Router.SwitchTenant(sc, req.SiteID); err != nil {
			switch {
			case errors.Is(err, credentials.ErrReauthenticationRequired):
				respondError(w, http.StatusConflict, "REAUTH_REQUIRED", "re-authenticate against the target tenant")
			case errors.Is(err, credentials.ErrSiteNotAssigned):
				respondError(w, http.StatusForbidden, "NOT_ASSIGNED", "tenant is not assigned to this user")
			case errors.Is(err, interrors.ErrNotFound):
				respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown tenant site")
			default:
				respondError(w, http.StatusInternalServerError, "INTERNAL", "tenant switch failed")
			}
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"active_tenant_id": req.SiteID})
	}
}

// TotpSetupHandler provisions the second factor for the calling privileged
// account. The shared secret is returned exactly once, for the operator to
// load into an authenticator app; every later login must carry a one-time
// code.
func (s *Server) TotpSetupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc := sessionContext(r)
		account, err := s.deps.Accounts.GetByID(sc.Subject().ID)
		if err != nil {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown account")
			return
		}

		secret, err := accounts.GenerateTOTPSecret(s.config.GetAppName(), account.Username)
		if err != nil {
			log.Error().Err(err).Msg("totp secret generation failed")
			respondError(w, http.StatusInternalServerError, "INTERNAL", "could not provision second factor")
			return
		}
		account.TOTPSecret = secret
		if err := s.deps.Accounts.Upsert(account); err != nil {
			log.Error().Err(err).Msg("totp secret store failed")
			respondError(w, http.StatusInternalServerError, "INTERNAL", "could not provision second factor")
			return
		}

		respondJSON(w, http.StatusOK, map[string]string{"secret": secret})
	}
}

// establishSession mints a token, registers the session (superseding any
// previous one for the subject) and binds a fresh session context.
func (s *Server) establishSession(r *http.Request, subject identity.Subject) (*loginResponse, error) {
	return s.establishSessionWithContext(r, subject, credentials.NewSessionContext(subject))
}

func (s *Server) establishSessionWithContext(r *http.Request, subject identity.Subject, sc *credentials.SessionContext) (*loginResponse, error) {
	signed, err := s.deps.Tokens.Issue(subject.ID, subject.Username)
	if err != nil {
		return nil, errors.Wrap(err, "[Server establishSession] Issue")
	}
	_, err = s.deps.Sessions.Create(subject.ID, subject.Kind, signed, clientIP(r), r.UserAgent(), s.config.GetSessionExpiry())
	if err != nil {
		return nil, errors.Wrap(err, "[Server establishSession] Create")
	}
	s.deps.Contexts.Put(signed, sc)
	return &loginResponse{Token: signed, Subject: subject}, nil
}

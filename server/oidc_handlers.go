package server

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/crmkit/access-server/identity"
)

// OidcLoginHandler starts the federated privileged sign-in: it stores a
// state/nonce pair and redirects to the configured identity provider.
func (s *Server) OidcLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := generateRandomString(32)
		nonce := generateRandomString(32)

		s.oidc.mu.Lock()
		s.oidc.nonces[state] = nonce
		s.oidc.mu.Unlock()

		http.Redirect(w, r, s.oidc.oauth2.AuthCodeURL(state, oidc.Nonce(nonce)), http.StatusFound)
	}
}

// OidcCallbackHandler finishes the flow: exchanges the code, verifies the ID
// token including the nonce, and maps the federated identity onto an existing
// privileged account by email. Unknown identities are rejected; federated
// sign-in never creates accounts.
func (s *Server) OidcCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.FormValue("state")
		code := r.FormValue("code")
		if errorParam := r.FormValue("error"); errorParam != "" {
			http.Error(w, fmt.Sprintf("Authorization failed: %s - %s", errorParam, r.FormValue("error_description")), http.StatusBadRequest)
			return
		}
		if code == "" || state == "" {
			http.Error(w, "Missing code or state parameter", http.StatusBadRequest)
			return
		}

		s.oidc.mu.Lock()
		nonce, ok := s.oidc.nonces[state]
		delete(s.oidc.nonces, state) // one shot
		s.oidc.mu.Unlock()
		if !ok {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		oauth2Token, err := s.oidc.oauth2.Exchange(r.Context(), code)
		if err != nil {
			http.Error(w, fmt.Sprintf("Token exchange failed: %v", err), http.StatusInternalServerError)
			return
		}

		rawIDToken, ok := oauth2Token.Extra("id_token").(string)
		if !ok {
			http.Error(w, "No ID token in response", http.StatusInternalServerError)
			return
		}

		idToken, err := s.oidc.provider.Verifier(&oidc.Config{
			ClientID: s.oidc.oauth2.ClientID,
		}).Verify(r.Context(), rawIDToken)
		if err != nil {
			http.Error(w, fmt.Sprintf("ID token verification failed: %v", err), http.StatusInternalServerError)
			return
		}

		var claims struct {
			Nonce string `json:"nonce"`
			Email string `json:"email"`
		}
		if err := idToken.Claims(&claims); err != nil {
			http.Error(w, fmt.Sprintf("Failed to extract claims: %v", err), http.StatusInternalServerError)
			return
		}
		if claims.Nonce != nonce {
			http.Error(w, "Invalid nonce", http.StatusUnauthorized)
			return
		}

		account, err := s.deps.Accounts.GetByEmail(claims.Email)
		if err != nil {
			http.Error(w, "No privileged account for this identity", http.StatusForbidden)
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
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}

		// Hand the token to the console via the URL fragment so it never hits
		// server logs as a query parameter.
		redirectSuccess(w, r, s.config.GetBaseURL()+"/#token="+resp.Token)
	}
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func generateRandomString(length int) string {
	b := make([]byte, length)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}

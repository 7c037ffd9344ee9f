package server

import (
	"net/http"
)

// GateHandler re-runs the IP gate for the caller's session against a tenant.
// The target defaults to the session's active tenant.
func (s *Server) GateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc := sessionContext(r)
		siteID := r.URL.Query().Get("site_id")
		if siteID == "" {
			siteID = sc.ActiveTenantID()
		}
		if siteID == "" {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "no tenant in scope, pass site_id")
			return
		}
		decision := s.deps.Gate.Evaluate(r.Context(), sc, siteID)
		respondJSON(w, http.StatusOK, decision)
	}
}

type gateRequestBody struct {
	SiteID string `json:"site_id,omitempty"`
}

// GateRequestHandler files a permission request from the Restricted state.
// The request is audited and the operator notified; access only changes when
// an operator adds a whitelist entry.
func (s *Server) GateRequestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc := sessionContext(r)
		var req gateRequestBody
		_ = decodeJSON(r, &req) // body is optional
		siteID := req.SiteID
		if siteID == "" {
			siteID = sc.ActiveTenantID()
		}
		if siteID == "" {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "no tenant in scope, pass site_id")
			return
		}
		event, err := s.deps.Gate.RequestAccess(r.Context(), sc, siteID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "INTERNAL", "request could not be recorded")
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]interface{}{
			"status": "pending",
			"event":  event,
		})
	}
}

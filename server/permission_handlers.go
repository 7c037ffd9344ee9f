package server

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/crmkit/access-server/identity"
	"github.com/crmkit/access-server/permissions"
)

// PermissionsListHandler serves the folded matrix. It is public so the console
// can render feature visibility before anyone signs in; when storage is down
// the hardcoded defaults are served instead and flagged as degraded.
func (s *Server) PermissionsListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matrix, err := s.deps.Perms.Load()
		degraded := false
		if err != nil {
			matrix = s.deps.Perms.LoadOrDefault()
			degraded = true
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"matrix":   matrix,
			"degraded": degraded,
		})
	}
}

type permissionUpsertRequest struct {
	Role     string `json:"role"`
	Feature  string `json:"feature"`
	CanRead  bool   `json:"can_read"`
	CanWrite bool   `json:"can_write"`
}

// PermissionUpsertHandler creates or updates one matrix cell. Idempotent.
func (s *Server) PermissionUpsertHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req permissionUpsertRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed body")
			return
		}
		err := s.deps.Perms.Upsert(identity.Role(req.Role), permissions.Feature(req.Feature), req.CanRead, req.CanWrite)
		if err != nil {
			if errors.Is(err, permissions.ErrInvalidEntry) {
				respondError(w, http.StatusBadRequest, "INVALID_ENTRY", err.Error())
				return
			}
			respondError(w, http.StatusInternalServerError, "INTERNAL", "permission update failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type permissionBulkRequest struct {
	Entries []permissionUpsertRequest `json:"entries"`
}

// PermissionBulkUpsertHandler applies a whole batch all-or-nothing: one
// malformed entry rejects the request and nothing is written.
func (s *Server) PermissionBulkUpsertHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req permissionBulkRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "malformed body")
			return
		}
		entries := make([]*permissions.Entry, 0, len(req.Entries))
		for _, e := range req.Entries {
			entries = append(entries, &permissions.Entry{
				Role:     identity.Role(e.Role),
				Feature:  permissions.Feature(e.Feature),
				CanRead:  e.CanRead,
				CanWrite: e.CanWrite,
			})
		}
		if err := s.deps.Perms.BulkUpsert(entries); err != nil {
			if errors.Is(err, permissions.ErrInvalidEntry) {
				respondError(w, http.StatusBadRequest, "INVALID_ENTRY", err.Error())
				return
			}
			respondError(w, http.StatusInternalServerError, "INTERNAL", "bulk permission update failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

package server

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	interrors "github.com/crmkit/access-server/internal/errors"
	"github.com/crmkit/access-server/tenants"
)

const defaultSitePageSize = 50

// siteRequest is the write shape for a tenant site. The stored secret is
// write-only: it never appears in responses (Site marshals it out) and an
// empty secret on update means "keep the current one".
type siteRequest struct {
	Name               string   `json:"name"`
	URL                string   `json:"url"`
	Username           string   `json:"username,omitempty"`
	Secret             string   `json:"secret,omitempty"`
	IsDefault          bool     `json:"is_default"`
	AssignedSubjectIDs []string `json:"assigned_subject_ids,omitempty"`
}

func (s *Server) SitesListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset := queryInt(r, "offset", 0)
		limit := queryInt(r, "limit", defaultSitePageSize)
		sites, err := s.deps.Sites.List(offset, limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "INTERNAL", "site listing failed")
			return
		}
		if sites == nil {
			sites = []*tenants.Site{}
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{"sites": sites})
	}
}

func (s *Server) SiteGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		site, err := s.deps.Sites.Get(r.PathValue("id"))
		if err != nil {
			if errors.Is(err, interrors.ErrNotFound) {
				respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown tenant site")
				return
			}
			respondError(w, http.StatusInternalServerError, "INTERNAL", "site lookup failed")
			return
		}
		respondJSON(w, http.StatusOK, site)
	}
}

// SiteUpsertHandler serves both POST /api/sites (create) and
// PUT /api/sites/{id} (update).
func (s *Server) SiteUpsertHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req siteRequest
		if err := decodeJSON(r, &req); err != nil || req.Name == "" || req.URL == "" {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "name and url are required")
			return
		}

		id := r.PathValue("id")
		status := http.StatusOK
		site := &tenants.Site{
			Name:               req.Name,
			URL:                req.URL,
			Username:           req.Username,
			Secret:             req.Secret,
			IsDefault:          req.IsDefault,
			AssignedSubjectIDs: req.AssignedSubjectIDs,
		}

		if id == "" {
			site.ID = uuid.New().String()
			status = http.StatusCreated
		} else {
			existing, err := s.deps.Sites.Get(id)
			if err != nil {
				if errors.Is(err, interrors.ErrNotFound) {
					respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown tenant site")
					return
				}
				respondError(w, http.StatusInternalServerError, "INTERNAL", "site lookup failed")
				return
			}
			site.ID = existing.ID
			site.CreatedAt = existing.CreatedAt
			if site.Secret == "" {
				site.Username = existing.Username
				site.Secret = existing.Secret
			}
		}

		if err := s.deps.Sites.Upsert(site); err != nil {
			respondError(w, http.StatusInternalServerError, "INTERNAL", "site save failed")
			return
		}
		respondJSON(w, status, site)
	}
}

func (s *Server) SiteDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.deps.Sites.Delete(r.PathValue("id"))
		if err != nil {
			if errors.Is(err, interrors.ErrNotFound) {
				respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown tenant site")
				return
			}
			respondError(w, http.StatusInternalServerError, "INTERNAL", "site delete failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

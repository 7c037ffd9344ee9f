// Package tenantapi is the HTTP client for a tenant site's CMS REST API. The
// console never proxies content through it; the access subsystem only needs
// three calls: the "who am I" credential probe, the IP whitelist, and the
// audit log.
package tenantapi

import (
	"context"
	"encoding/base64"
	"time"
)

// ExternalUser is the tenant's answer to a successful credential probe.
type ExternalUser struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// WhitelistEntry mirrors one row of the tenant's IP whitelist. SubjectID may
// be a bare id or the historical composite "<tenantId>_<externalUserId>".
type WhitelistEntry struct {
	ID        string    `json:"id"`
	IP        string    `json:"ip"`
	SubjectID string    `json:"subject_id"`
	Label     string    `json:"label,omitempty"`
	AddedBy   string    `json:"added_by,omitempty"`
	AddedAt   time.Time `json:"added_at,omitempty"`
}

// AuditEvent is one access-control event written to the tenant's audit log.
type AuditEvent struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	SubjectID string    `json:"subject_id"`
	IP        string    `json:"ip"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

const (
	AuditUnauthorizedAttempt = "unauthorized_attempt"
	AuditPermissionRequest   = "permission_request"
)

// Client is the outbound surface the router and the IP gate depend on. Site
// is addressed by base URL so callers resolve credentials first.
type Client interface {
	// WhoAmI probes the credential against the tenant. Returns
	// ErrInvalidCredentials on a 401/403 and ErrUpstreamUnreachable when the
	// tenant cannot be reached, so callers can tell the two apart.
	WhoAmI(ctx context.Context, siteURL, username, secret string) (*ExternalUser, error)

	// FetchWhitelist reads the tenant's IP whitelist using a pre-resolved
	// authorization header.
	FetchWhitelist(ctx context.Context, siteURL, authHeader string) ([]WhitelistEntry, error)

	// AppendAudit writes one event to the tenant's audit log.
	AppendAudit(ctx context.Context, siteURL, authHeader string, event AuditEvent) error
}

// BasicAuthHeader builds the Basic-style authorization header value carried
// on every outbound tenant call.
func BasicAuthHeader(username, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+secret))
}

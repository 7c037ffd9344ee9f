// Package ipgate decides, once per session bootstrap, whether the calling
// network address is authorized for a subject. The chain is: privileged
// bypass, IP echo (fail-closed), bypass address, remote whitelist, local
// cache fallback, deny plus audit. "Cannot verify" is always a denial, never
// an implicit allow.
package ipgate

import (
	"context"
	"strings"
	"time"

	"github.com/crmkit/access-server/clientstate"
	"github.com/crmkit/access-server/credentials"
	"github.com/crmkit/access-server/identity"
	"github.com/crmkit/access-server/internal/logging"
	"github.com/crmkit/access-server/tenantapi"
	"github.com/crmkit/access-server/tenants"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// State of a gate evaluation. Terminal for the bootstrap that produced it;
// re-evaluated on the next one.
type State string

const (
	Allowed    State = "allowed"
	Restricted State = "restricted"
)

// Decision explains a gate outcome.
type Decision struct {
	State  State  `json:"state"`
	Reason string `json:"reason"`
	IP     string `json:"ip,omitempty"`
}

const (
	ReasonPrivilegedBypass       = "privileged_bypass"
	ReasonBypassIP               = "bypass_ip"
	ReasonWhitelisted            = "whitelisted"
	ReasonWhitelistedFromCache   = "whitelisted_from_cache"
	ReasonVerificationImpossible = "verification_impossible"
	ReasonNotWhitelisted         = "not_whitelisted"
)

// Notifier is told about permission requests so an operator can act on them.
type Notifier interface {
	PermissionRequested(subject identity.Subject, tenantID, ip string) error
}

type Gate struct {
	echo     EchoClient
	api      tenantapi.Client
	router   *credentials.Router
	sites    tenants.Repo
	cache    *clientstate.Store
	ring     *RingLog
	bypassIP string
	notifier Notifier
	nowFunc  func() time.Time
}

type GateOption func(*Gate)

func WithBypassIP(ip string) GateOption {
	return func(g *Gate) {
		g.bypassIP = ip
	}
}

func WithNotifier(notifier Notifier) GateOption {
	return func(g *Gate) {
		g.notifier = notifier
	}
}

func WithNowFunc(now func() time.Time) GateOption {
	return func(g *Gate) {
		g.nowFunc = now
	}
}

func New(echo EchoClient, api tenantapi.Client, router *credentials.Router, sites tenants.Repo, cache *clientstate.Store, ring *RingLog, options ...GateOption) *Gate {
	g := &Gate{
		echo:    echo,
		api:     api,
		router:  router,
		sites:   sites,
		cache:   cache,
		ring:    ring,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Evaluate runs the gate for the subject bound to sc against a tenant.
func (g *Gate) Evaluate(ctx context.Context, sc *credentials.SessionContext, tenantID string) Decision {
	subject := sc.Subject()
	if subject.IsPrivileged() {
		return Decision{State: Allowed, Reason: ReasonPrivilegedBypass}
	}

	ip, err := g.echo.PublicIP(ctx)
	if err != nil {
		// Inability to verify identity is denial, not default-allow. The
		// bypass address and whitelists are deliberately never consulted.
		log.Warn().Err(err).Str("subject", subject.ID).Msg("ip echo lookup failed, restricting")
		return Decision{State: Restricted, Reason: ReasonVerificationImpossible}
	}

	if g.bypassIP != "" && ip == g.bypassIP {
		return Decision{State: Allowed, Reason: ReasonBypassIP, IP: ip}
	}

	site, err := g.sites.Get(tenantID)
	if err != nil {
		log.Warn().Err(err).Str("tenant", tenantID).Msg("gate cannot load tenant, restricting")
		return g.restrict(ctx, nil, subject, tenantID, ip, "")
	}

	header, err := g.router.ResolveAuthHeader(sc, tenantID)
	if err != nil {
		header = ""
	}

	entries, err := g.api.FetchWhitelist(ctx, site.URL, header)
	if err != nil {
		// Remote unreachable (not merely "no match"): previously granted
		// access must not be revoked purely by an external outage.
		logging.Degraded("ipgate").Err(err).Str("tenant", tenantID).
			Msg("remote whitelist unreachable, consulting local cache")
		if g.matchCached(tenantID, ip, subject.ID) {
			return Decision{State: Allowed, Reason: ReasonWhitelistedFromCache, IP: ip}
		}
		return g.restrict(ctx, site, subject, tenantID, ip, header)
	}

	if matchWhitelist(entries, ip, subject.ID) {
		g.mirrorWhitelist(tenantID, entries)
		return Decision{State: Allowed, Reason: ReasonWhitelisted, IP: ip}
	}
	g.mirrorWhitelist(tenantID, entries)
	return g.restrict(ctx, site, subject, tenantID, ip, header)
}

// RequestAccess files a permission request from the Restricted state. It is
// logged remote-then-local like any other audit event and surfaces a pending
// indicator; access itself only changes when an operator adds a whitelist
// entry.
func (g *Gate) RequestAccess(ctx context.Context, sc *credentials.SessionContext, tenantID string) (*tenantapi.AuditEvent, error) {
	subject := sc.Subject()
	ip, err := g.echo.PublicIP(ctx)
	if err != nil {
		ip = "" // the request is still recorded, without a verified address
	}

	event := tenantapi.AuditEvent{
		ID:        uuid.New().String(),
		Kind:      tenantapi.AuditPermissionRequest,
		SubjectID: subject.ID,
		IP:        ip,
		Detail:    "access request from restricted subject " + subject.Username,
		At:        g.nowFunc(),
	}
	g.appendAudit(ctx, sc, tenantID, event)

	if g.notifier != nil {
		if err := g.notifier.PermissionRequested(subject, tenantID, ip); err != nil {
			log.Warn().Err(err).Msg("permission request notification failed")
		}
	}
	return &event, nil
}

// LocalAuditEvents exposes the fallback ring buffer, oldest first.
func (g *Gate) LocalAuditEvents() []tenantapi.AuditEvent {
	return g.ring.Events()
}

func (g *Gate) restrict(ctx context.Context, site *tenants.Site, subject identity.Subject, tenantID, ip, header string) Decision {
	event := tenantapi.AuditEvent{
		ID:        uuid.New().String(),
		Kind:      tenantapi.AuditUnauthorizedAttempt,
		SubjectID: subject.ID,
		IP:        ip,
		At:        g.nowFunc(),
	}
	if site != nil {
		if err := g.api.AppendAudit(ctx, site.URL, header, event); err == nil {
			return Decision{State: Restricted, Reason: ReasonNotWhitelisted, IP: ip}
		}
	}
	logging.Degraded("ipgate").Str("tenant", tenantID).
		Msg("remote audit write failed, appending to local ring buffer")
	g.ring.Append(event)
	return Decision{State: Restricted, Reason: ReasonNotWhitelisted, IP: ip}
}

func (g *Gate) appendAudit(ctx context.Context, sc *credentials.SessionContext, tenantID string, event tenantapi.AuditEvent) {
	site, err := g.sites.Get(tenantID)
	if err == nil {
		header, _ := g.router.ResolveAuthHeader(sc, tenantID)
		if err := g.api.AppendAudit(ctx, site.URL, header, event); err == nil {
			return
		}
	}
	logging.Degraded("ipgate").Str("tenant", tenantID).
		Msg("remote audit write failed, appending to local ring buffer")
	g.ring.Append(event)
}

func (g *Gate) mirrorWhitelist(tenantID string, entries []tenantapi.WhitelistEntry) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Put(clientstate.WhitelistKey(tenantID), entries); err != nil {
		log.Warn().Err(err).Str("tenant", tenantID).Msg("whitelist cache write failed")
	}
}

func (g *Gate) matchCached(tenantID, ip, subjectID string) bool {
	if g.cache == nil {
		return false
	}
	var entries []tenantapi.WhitelistEntry
	ok, err := g.cache.Get(clientstate.WhitelistKey(tenantID), &entries)
	if err != nil || !ok {
		return false
	}
	return matchWhitelist(entries, ip, subjectID)
}

func matchWhitelist(entries []tenantapi.WhitelistEntry, ip, subjectID string) bool {
	for _, entry := range entries {
		if entry.IP == ip && subjectMatches(entry.SubjectID, subjectID) {
			return true
		}
	}
	return false
}

// subjectMatches tolerates the two historical identifier formats: a bare id,
// or the composite "<tenantId>_<externalUserId>" compared by the suffix after
// the last underscore.
func subjectMatches(stored, callerID string) bool {
	if stored == callerID {
		return true
	}
	if idx := strings.LastIndex(stored, "_"); idx >= 0 {
		return stored[idx+1:] == callerID
	}
	return false
}

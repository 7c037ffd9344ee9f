package credentials

import (
	"context"

	"github.com/crmkit/access-server/identity"
	interrors "github.com/crmkit/access-server/internal/errors"
	"github.com/crmkit/access-server/tenantapi"
	"github.com/crmkit/access-server/tenants"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoCandidateSites         = errors.New("no candidate sites to probe")
	ErrReauthenticationRequired = errors.New("re-authentication required for tenant")
	ErrSiteNotAssigned          = errors.New("site is not assigned to the subject")
)

const listPageSize = 100

// resolver is one strategy in the credential priority chain. It returns the
// authorization header and true when it can serve the request.
type resolver struct {
	name    string
	resolve func(sc *SessionContext, site *tenants.Site) (string, bool)
}

// Router picks the right credential for a (caller, tenant) pair and performs
// the tenant-user login probe.
type Router struct {
	sites     tenants.Repo
	api       tenantapi.Client
	resolvers []resolver
}

func NewRouter(sites tenants.Repo, api tenantapi.Client) *Router {
	r := &Router{
		sites: sites,
		api:   api,
	}
	// The priority order is the policy: session credential first, then the
	// site's stored credential (privileged callers only), then the last-used
	// global credential, then nothing.
	r.resolvers = []resolver{
		{name: "session-credential", resolve: resolveSessionCredential},
		{name: "site-stored-credential", resolve: resolveSiteStoredCredential},
		{name: "last-global-credential", resolve: resolveLastGlobalCredential},
	}
	return r
}

func resolveSessionCredential(sc *SessionContext, site *tenants.Site) (string, bool) {
	cred, ok := sc.Credential(site.ID)
	if !ok {
		return "", false
	}
	return tenantapi.BasicAuthHeader(cred.Username, cred.Secret), true
}

func resolveSiteStoredCredential(sc *SessionContext, site *tenants.Site) (string, bool) {
	if !sc.Subject().IsPrivileged() || !site.HasStoredCredential() {
		return "", false
	}
	return tenantapi.BasicAuthHeader(site.Username, site.Secret), true
}

func resolveLastGlobalCredential(sc *SessionContext, _ *tenants.Site) (string, bool) {
	cred, ok := sc.LastGlobal()
	if !ok {
		return "", false
	}
	return tenantapi.BasicAuthHeader(cred.Username, cred.Secret), true
}

// ResolveAuthHeader walks the strategy chain for the target tenant. An empty
// header means the caller must be prompted to authenticate against that
// tenant.
func (r *Router) ResolveAuthHeader(sc *SessionContext, siteID string) (string, error) {
	site, err := r.sites.Get(siteID)
	if err != nil {
		return "", errors.Wrap(err, "[Router.ResolveAuthHeader] sites.Get")
	}
	for _, strategy := range r.resolvers {
		if header, ok := strategy.resolve(sc, site); ok {
			log.Debug().Str("site", siteID).Str("strategy", strategy.name).Msg("resolved outbound credential")
			return header, nil
		}
	}
	return "", nil
}

// SiteLogin is the outcome of a successful tenant-user probe.
type SiteLogin struct {
	Subject identity.Subject
	SiteID  string
}

// LoginToSite probes the credential against candidate tenants sequentially —
// the explicit site when given, otherwise every configured tenant — stopping
// at the first success. Sequential probing keeps "first successful tenant
// wins" deterministic and the last error meaningful. On success the session
// credential for that tenant is recorded on sc and sc's subject is set.
func (r *Router) LoginToSite(ctx context.Context, sc *SessionContext, username, secret, explicitSiteID string) (*SiteLogin, error) {
	candidates, err := r.candidateSites(explicitSiteID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidateSites
	}

	var lastErr error
	for _, site := range candidates {
		user, err := r.api.WhoAmI(ctx, site.URL, username, secret)
		if err != nil {
			lastErr = err
			if errors.Is(err, interrors.ErrUpstreamUnreachable) {
				log.Warn().Str("site", site.ID).Msg("tenant unreachable during login probe")
			}
			continue
		}
		if !site.IsAssignedTo(user.ID) {
			// The tenant accepted the credential, but the console does not
			// offer this site to that subject.
			lastErr = ErrSiteNotAssigned
			continue
		}

		subject := identity.Subject{
			ID:       user.ID,
			Kind:     identity.KindTenantUser,
			Username: username,
			Role:     identity.MapExternalRoles(user.Roles),
		}
		sc.mu.Lock()
		sc.subject = subject
		sc.mu.Unlock()
		sc.SetCredential(site.ID, Credential{Username: username, Secret: secret})
		sc.setActiveTenant(site.ID)

		return &SiteLogin{Subject: subject, SiteID: site.ID}, nil
	}

	// Exhausted all candidates: surface the last observed error so the
	// caller can distinguish bad credentials from an unreachable tenant.
	return nil, lastErr
}

// SwitchTenant changes the active tenant. A tenant-user may only target sites
// assigned to them, and with no session credential for the target they must
// re-authenticate rather than silently reuse an unrelated tenant's
// credential; that friction is the price of tenant isolation. Privileged
// subjects may always switch, with resolution falling back to the site's
// stored credential.
func (r *Router) SwitchTenant(sc *SessionContext, siteID string) error {
	site, err := r.sites.Get(siteID)
	if err != nil {
		return errors.Wrap(err, "[Router.SwitchTenant] sites.Get")
	}
	if !sc.Subject().IsPrivileged() {
		if !site.IsAssignedTo(sc.Subject().ID) {
			return ErrSiteNotAssigned
		}
		if _, ok := sc.Credential(siteID); !ok {
			return ErrReauthenticationRequired
		}
	}
	sc.setActiveTenant(siteID)
	return nil
}

func (r *Router) candidateSites(explicitSiteID string) ([]*tenants.Site, error) {
	if explicitSiteID != "" {
		site, err := r.sites.Get(explicitSiteID)
		if err != nil {
			return nil, errors.Wrap(err, "[Router.candidateSites] sites.Get")
		}
		return []*tenants.Site{site}, nil
	}

	var all []*tenants.Site
	offset := 0
	for {
		page, err := r.sites.List(offset, listPageSize)
		if err != nil {
			return nil, errors.Wrap(err, "[Router.candidateSites] sites.List")
		}
		all = append(all, page...)
		if len(page) < listPageSize {
			break
		}
		offset += listPageSize
	}
	return all, nil
}

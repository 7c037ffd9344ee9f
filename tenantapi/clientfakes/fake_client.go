package clientfakes

import (
	"context"
	"sync"

	interrors "github.com/crmkit/access-server/internal/errors"
	"github.com/crmkit/access-server/tenantapi"
	"github.com/pkg/errors"
)

var _ tenantapi.Client = (*FakeClient)(nil)

type siteState struct {
	users      map[string]*tenantapi.ExternalUser // "username:secret" -> user
	whitelist  []tenantapi.WhitelistEntry
	down       bool
	auditFails bool
}

// FakeClient simulates a set of tenant sites keyed by base URL.
type FakeClient struct {
	sites map[string]*siteState
	lock  sync.Mutex

	// ProbedURLs records every WhoAmI target in call order.
	ProbedURLs []string
	// AuditLog captures successfully appended events per site URL.
	AuditLog map[string][]tenantapi.AuditEvent
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		sites:    make(map[string]*siteState),
		AuditLog: make(map[string][]tenantapi.AuditEvent),
	}
}

func (fc *FakeClient) site(url string) *siteState {
	state, ok := fc.sites[url]
	if !ok {
		state = &siteState{users: make(map[string]*tenantapi.ExternalUser)}
		fc.sites[url] = state
	}
	return state
}

// AddUser registers a valid credential on a site.
func (fc *FakeClient) AddUser(siteURL, username, secret string, user *tenantapi.ExternalUser) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.site(siteURL).users[username+":"+secret] = user
}

// SetWhitelist replaces a site's whitelist.
func (fc *FakeClient) SetWhitelist(siteURL string, entries []tenantapi.WhitelistEntry) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.site(siteURL).whitelist = entries
}

// SetDown marks a site as unreachable.
func (fc *FakeClient) SetDown(siteURL string, down bool) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.site(siteURL).down = down
}

// SetAuditFails makes audit writes to a site fail while leaving reads up.
func (fc *FakeClient) SetAuditFails(siteURL string, fails bool) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.site(siteURL).auditFails = fails
}

func (fc *FakeClient) WhoAmI(_ context.Context, siteURL, username, secret string) (*tenantapi.ExternalUser, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.ProbedURLs = append(fc.ProbedURLs, siteURL)

	state := fc.site(siteURL)
	if state.down {
		return nil, errors.Wrap(interrors.ErrUpstreamUnreachable, "fake site down")
	}
	user, ok := state.users[username+":"+secret]
	if !ok {
		return nil, tenantapi.ErrInvalidCredentials
	}
	clone := *user
	return &clone, nil
}

func (fc *FakeClient) FetchWhitelist(_ context.Context, siteURL, _ string) ([]tenantapi.WhitelistEntry, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	state := fc.site(siteURL)
	if state.down {
		return nil, errors.Wrap(interrors.ErrUpstreamUnreachable, "fake site down")
	}
	return append([]tenantapi.WhitelistEntry(nil), state.whitelist...), nil
}

func (fc *FakeClient) AppendAudit(_ context.Context, siteURL, _ string, event tenantapi.AuditEvent) error {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	state := fc.site(siteURL)
	if state.down || state.auditFails {
		return errors.Wrap(interrors.ErrUpstreamUnreachable, "fake audit endpoint down")
	}
	fc.AuditLog[siteURL] = append(fc.AuditLog[siteURL], event)
	return nil
}

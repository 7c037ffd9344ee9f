// Package credentials decides which credential an outbound tenant call
// carries. Session-scoped credentials live in an explicit SessionContext with
// an init/teardown lifecycle; they are held in memory only and never
// persisted server-side.
package credentials

import (
	"sync"

	"github.com/crmkit/access-server/identity"
	"github.com/crmkit/access-server/sessions"
)

// Credential is a username/secret pair usable against a tenant's API.
type Credential struct {
	Username string
	Secret   string
}

// SessionContext is the per-session state: the authenticated subject, the
// active tenant, the per-tenant credential map populated as the subject
// authenticates against tenants, and the last-used global credential from the
// most recent successful login.
type SessionContext struct {
	mu             sync.RWMutex
	subject        identity.Subject
	activeTenantID string
	creds          map[string]Credential
	lastGlobal     *Credential
}

func NewSessionContext(subject identity.Subject) *SessionContext {
	return &SessionContext{
		subject: subject,
		creds:   make(map[string]Credential),
	}
}

func (sc *SessionContext) Subject() identity.Subject {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.subject
}

func (sc *SessionContext) ActiveTenantID() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.activeTenantID
}

func (sc *SessionContext) setActiveTenant(siteID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.activeTenantID = siteID
}

// SetCredential records that the subject authenticated against a tenant.
func (sc *SessionContext) SetCredential(siteID string, cred Credential) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.creds[siteID] = cred
	sc.lastGlobal = &cred
}

// Credential returns the session credential recorded for a tenant, if any.
func (sc *SessionContext) Credential(siteID string) (Credential, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	cred, ok := sc.creds[siteID]
	return cred, ok
}

// LastGlobal returns the credential used at the most recent successful login.
func (sc *SessionContext) LastGlobal() (Credential, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	if sc.lastGlobal == nil {
		return Credential{}, false
	}
	return *sc.lastGlobal, true
}

// ContextRegistry maps live bearer tokens to their session contexts. Entries
// are created at login and dropped at logout; a new login for the same
// subject evicts the superseded session's context, mirroring the registry's
// single-active-session rule so stale credential-bearing contexts never
// accumulate. Nothing here survives a restart, by the never-persisted rule
// for session credentials.
type ContextRegistry struct {
	mu        sync.RWMutex
	contexts  map[string]*SessionContext // keyed by token hash
	bySubject map[string]string          // subject key to current token hash
}

func NewContextRegistry() *ContextRegistry {
	return &ContextRegistry{
		contexts:  make(map[string]*SessionContext),
		bySubject: make(map[string]string),
	}
}

func (cr *ContextRegistry) Put(rawToken string, sc *SessionContext) {
	hash := sessions.HashToken(rawToken)
	key := subjectKey(sc.Subject())
	cr.mu.Lock()
	defer cr.mu.Unlock()
	if prior, ok := cr.bySubject[key]; ok && prior != hash {
		delete(cr.contexts, prior)
	}
	cr.contexts[hash] = sc
	cr.bySubject[key] = hash
}

func (cr *ContextRegistry) Get(rawToken string) (*SessionContext, bool) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	sc, ok := cr.contexts[sessions.HashToken(rawToken)]
	return sc, ok
}

func (cr *ContextRegistry) Drop(rawToken string) {
	hash := sessions.HashToken(rawToken)
	cr.mu.Lock()
	defer cr.mu.Unlock()
	sc, ok := cr.contexts[hash]
	if !ok {
		return
	}
	delete(cr.contexts, hash)
	key := subjectKey(sc.Subject())
	if cr.bySubject[key] == hash {
		delete(cr.bySubject, key)
	}
}

func subjectKey(subject identity.Subject) string {
	return subject.ID + "|" + string(subject.Kind)
}

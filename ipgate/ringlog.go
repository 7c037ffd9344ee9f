package ipgate

import (
	"sync"

	"github.com/crmkit/access-server/clientstate"
	"github.com/crmkit/access-server/tenantapi"
)

// RingLog is the local fallback audit log: a ring buffer capped at a fixed
// number of entries, oldest dropped first, mirrored into the clientstate
// store so it survives restarts.
type RingLog struct {
	mu    sync.Mutex
	limit int
	store *clientstate.Store
	items []tenantapi.AuditEvent
}

func NewRingLog(store *clientstate.Store, limit int) *RingLog {
	if limit <= 0 {
		limit = 100
	}
	r := &RingLog{limit: limit, store: store}
	if store != nil {
		_, _ = store.Get(clientstate.KeyAuditFallback, &r.items)
		if len(r.items) > limit {
			r.items = r.items[len(r.items)-limit:]
		}
	}
	return r
}

// Append adds an event, dropping the oldest entry once the cap is reached.
func (r *RingLog) Append(event tenantapi.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, event)
	if len(r.items) > r.limit {
		r.items = r.items[len(r.items)-r.limit:]
	}
	if r.store != nil {
		_ = r.store.Put(clientstate.KeyAuditFallback, r.items)
	}
}

// Events returns a copy of the buffered events, oldest first.
func (r *RingLog) Events() []tenantapi.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tenantapi.AuditEvent(nil), r.items...)
}

package sessions

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Checker reports whether a token is still live. Usually Registry.IsActive,
// or an HTTP call to the session-check endpoint from an embedding client.
type Checker func(rawToken string) (bool, error)

// Watcher polls the registry for the current token on a fixed interval and
// fires a callback once the session stops being live. Polling is the only
// cancellation path for an active session; there is no push-based revocation.
type Watcher struct {
	check     Checker
	interval  time.Duration
	onInvalid func()
}

func NewWatcher(check Checker, interval time.Duration, onInvalid func()) *Watcher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Watcher{check: check, interval: interval, onInvalid: onInvalid}
}

// Run blocks until the context is cancelled or the session goes invalid. A
// check error is logged and retried on the next tick; only a definitive
// negative answer triggers the callback.
func (w *Watcher) Run(ctx context.Context, rawToken string) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			active, err := w.check(rawToken)
			if err != nil {
				log.Warn().Err(err).Msg("session check failed, retrying next tick")
				continue
			}
			if !active {
				w.onInvalid()
				return
			}
		}
	}
}

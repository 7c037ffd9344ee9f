// Package logging configures the global zerolog logger. Services use the
// zerolog/log global directly; degraded-mode fallbacks log at WARN with a
// "degraded" field so operators can tell stale cached trust data from a
// healthy system.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Setup(env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if env == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// Degraded returns a WARN event pre-tagged for fallback paths.
func Degraded(component string) *zerolog.Event {
	return log.Warn().Bool("degraded", true).Str("component", component)
}

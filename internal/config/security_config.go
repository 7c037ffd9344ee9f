package config

import (
	"os"
	"time"
)

type SecurityConfig interface {
	GetTokenSecret() string
	GetTokenExpiry() time.Duration
	GetSessionExpiry() time.Duration
	GetEnableRateLimiting() bool
	GetLoginRatePerMinute() int
	GetLoginBurst() int
}

type Security struct {
	file File
}

var _ SecurityConfig = Security{}

func (s Security) GetTokenSecret() string {
	return GetEnv("TOKEN_SECRET", s.file.Auth.TokenSecret)
}

// GetTokenExpiry returns the bearer token lifetime. Tokens are signed for a
// fixed 24h window; revocation before then is the session registry's job.
func (s Security) GetTokenExpiry() time.Duration {
	return s.duration(os.Getenv("TOKEN_EXPIRY"), s.file.Auth.TokenExpiry, 24*time.Hour)
}

func (s Security) GetSessionExpiry() time.Duration {
	return s.duration(os.Getenv("SESSION_EXPIRY"), s.file.Auth.SessionExpiry, 24*time.Hour)
}

func (s Security) GetEnableRateLimiting() bool {
	return GetEnv("LOGIN_RATE_LIMITING", "true") != "false"
}

func (s Security) GetLoginRatePerMinute() int {
	return 10
}

func (s Security) GetLoginBurst() int {
	return 5
}

func (Security) duration(envValue, fileValue string, def time.Duration) time.Duration {
	for _, v := range []string{envValue, fileValue} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

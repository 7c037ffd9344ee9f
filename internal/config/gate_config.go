package config

import "path/filepath"

type GateConfig interface {
	GetGateBypassIP() string
	GetIPEchoURL() string
	GetGateCacheFile() string
	GetAuditRingLimit() int
}

type Gate struct {
	file File
}

var _ GateConfig = Gate{}

func (g Gate) GetGateBypassIP() string {
	return GetEnv("GATE_BYPASS_IP", g.file.Gate.BypassIP)
}

func (g Gate) GetIPEchoURL() string {
	return GetEnv("IP_ECHO_URL", pick(g.file.Gate.EchoURL, "https://api.ipify.org?format=json"))
}

// GetGateCacheFile is the local fallback store for mirrored whitelist entries
// and audit events that could not be delivered to the tenant.
func (g Gate) GetGateCacheFile() string {
	if v := GetEnv("GATE_CACHE_FILE", g.file.Gate.CacheFile); v != "" {
		return v
	}
	return filepath.Join(EnvVars{file: g.file}.GetDataFolder(), "gate_cache.json")
}

func (g Gate) GetAuditRingLimit() int {
	if g.file.Gate.AuditRingLimit > 0 {
		return g.file.Gate.AuditRingLimit
	}
	return 100
}

package config

import (
	"log"
	"os"

	"github.com/BurntSushi/toml"
)

const configFileEnvVar = "CONFIG_FILE"

// File is the optional TOML configuration file. All fields are defaults that
// environment variables may override.
type File struct {
	Server struct {
		Port    string `toml:"port"`
		AppName string `toml:"app_name"`
		BaseURL string `toml:"base_url"`
		Folder  string `toml:"data_folder"`
	} `toml:"server"`

	Auth struct {
		TokenSecret   string `toml:"token_secret"`
		TokenExpiry   string `toml:"token_expiry"`
		SessionExpiry string `toml:"session_expiry"`
	} `toml:"auth"`

	Gate struct {
		BypassIP       string `toml:"bypass_ip"`
		EchoURL        string `toml:"echo_url"`
		CacheFile      string `toml:"cache_file"`
		AuditRingLimit int    `toml:"audit_ring_limit"`
	} `toml:"gate"`

	Smtp struct {
		Host      string `toml:"host"`
		Port      int    `toml:"port"`
		Account   string `toml:"account"`
		Password  string `toml:"password"`
		Recipient string `toml:"recipient"`
	} `toml:"smtp"`

	Oidc struct {
		Issuer       string `toml:"issuer"`
		ClientID     string `toml:"client_id"`
		ClientSecret string `toml:"client_secret"`
		RedirectURL  string `toml:"redirect_url"`
	} `toml:"oidc"`
}

// LoadFile reads the TOML file named by CONFIG_FILE, falling back to
// ./config.toml. A missing file is not an error; config is read once at boot.
func LoadFile() File {
	var f File
	path := os.Getenv(configFileEnvVar)
	if path == "" {
		path = "config.toml"
	}
	if _, err := os.Stat(path); err != nil {
		return f
	}
	if _, err := toml.DecodeFile(path, &f); err != nil {
		log.Printf("[config LoadFile] ignoring unreadable config file %s: %v", path, err)
		return File{}
	}
	return f
}

package config

type Config interface {
	EnvConfig
	CorsConfig
	SecurityConfig
	GateConfig
	OidcConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetBaseURL() string
	GetSmtpHost() string
	GetSmtpPort() int
	GetSmtpPassword() string
	GetSmtpAccount() string
	GetSmtpRecipient() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Security
	Gate
	Oidc
}

// New loads the optional TOML config file and layers environment variables on
// top of it. Environment always wins; file values fill the gaps.
func New() Config {
	file := LoadFile()
	return mainConfig{
		EnvVars:  EnvVars{file: file},
		Security: Security{file: file},
		Gate:     Gate{file: file},
		Oidc:     Oidc{file: file},
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	portEnvVar   = "PORT"
	appNameVar   = "APP_NAME"
	folderEnvVar = "FOLDER"
	baseURLVar   = "BASE_URL"
)

type EnvVars struct {
	file File
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, pick(e.file.Server.Port, "8080"))
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return GetEnv(appNameVar, pick(e.file.Server.AppName, "CRM Access Server"))
}

func (e EnvVars) GetSmtpPassword() string {
	return GetEnv("SMTP_PASSWORD", e.file.Smtp.Password)
}

func (e EnvVars) GetSmtpAccount() string {
	return GetEnv("SMTP_ACCOUNT", e.file.Smtp.Account)
}

func (e EnvVars) GetSmtpHost() string {
	return GetEnv("SMTP_HOST", pick(e.file.Smtp.Host, "smtp.gmail.com"))
}

func (e EnvVars) GetSmtpPort() int {
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			return port
		}
	}
	if e.file.Smtp.Port > 0 {
		return e.file.Smtp.Port
	}
	return 587
}

func (e EnvVars) GetSmtpRecipient() string {
	return GetEnv("EMAIL_RECIPIENT", e.file.Smtp.Recipient)
}

func (e EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, pick(e.file.Server.Folder, "./data"))
}

func (e EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetBaseURL returns the externally visible base URL of this server, used for
// the OIDC redirect URL default.
func (e EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, pick(e.file.Server.BaseURL, "http://localhost:8080"))
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func pick(fileValue, defaultValue string) string {
	if fileValue != "" {
		return fileValue
	}
	return defaultValue
}

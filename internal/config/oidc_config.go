package config

type OidcConfig interface {
	GetOidcIssuer() string
	GetOidcClientID() string
	GetOidcClientSecret() string
	GetOidcRedirectURL() string
}

// Oidc configures the optional federated sign-in for the privileged operator.
// When the issuer is empty the OIDC routes are not registered.
type Oidc struct {
	file File
}

var _ OidcConfig = Oidc{}

func (o Oidc) GetOidcIssuer() string {
	return GetEnv("OIDC_ISSUER", o.file.Oidc.Issuer)
}

func (o Oidc) GetOidcClientID() string {
	return GetEnv("OIDC_CLIENT_ID", o.file.Oidc.ClientID)
}

func (o Oidc) GetOidcClientSecret() string {
	return GetEnv("OIDC_CLIENT_SECRET", o.file.Oidc.ClientSecret)
}

func (o Oidc) GetOidcRedirectURL() string {
	if v := GetEnv("OIDC_REDIRECT_URL", o.file.Oidc.RedirectURL); v != "" {
		return v
	}
	return EnvVars{file: o.file}.GetBaseURL() + "/auth/oidc/callback"
}

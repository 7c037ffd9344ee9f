package accounts

import (
	"github.com/pquerna/otp/totp"
)

// GenerateTOTPSecret provisions a new shared secret for the operator's
// authenticator app.
func GenerateTOTPSecret(issuer, accountName string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
	})
	if err != nil {
		return "", err
	}
	return key.Secret(), nil
}

// VerifyTOTP validates a one-time code against the account's shared secret.
func VerifyTOTP(secret, code string) bool {
	return totp.Validate(code, secret)
}

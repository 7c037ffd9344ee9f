package token_test

import (
	"testing"
	"time"

	"github.com/crmkit/access-server/token"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-1234"

func TestIssueAndVerify(t *testing.T) {
	issuer := token.New(testSecret)

	raw, err := issuer.Issue("acct-1", "admin")
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	claims, err := issuer.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "acct-1", claims.ID)
	require.Equal(t, "admin", claims.Username)
}

func TestVerifyExpiredToken(t *testing.T) {
	now := time.Now()
	issuer := token.New(testSecret,
		token.WithExpiry(time.Hour),
		token.WithNowFunc(func() time.Time { return now }),
	)

	raw, err := issuer.Issue("acct-1", "admin")
	require.NoError(t, err)

	// Move verification time past the expiry window.
	late := token.New(testSecret,
		token.WithNowFunc(func() time.Time { return now.Add(2 * time.Hour) }),
	)
	_, err = late.Verify(raw)
	require.ErrorIs(t, err, token.ErrTokenExpired)
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := token.New(testSecret)
	raw, err := issuer.Issue("acct-1", "admin")
	require.NoError(t, err)

	other := token.New("a-different-secret")
	_, err = other.Verify(raw)
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

func TestVerifyGarbage(t *testing.T) {
	issuer := token.New(testSecret)
	_, err := issuer.Verify("not-a-token")
	require.ErrorIs(t, err, token.ErrInvalidToken)
}

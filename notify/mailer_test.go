package notify_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/crmkit/access-server/identity"
	"github.com/crmkit/access-server/notify"
)

type stubSettings struct {
	host, account, password, recipient string
	port                               int
}

func (s stubSettings) GetSmtpHost() string      { return s.host }
func (s stubSettings) GetSmtpPort() int         { return s.port }
func (s stubSettings) GetSmtpAccount() string   { return s.account }
func (s stubSettings) GetSmtpPassword() string  { return s.password }
func (s stubSettings) GetSmtpRecipient() string { return s.recipient }

func TestPermissionRequestedSendsToOperator(t *testing.T) {
	var sent *gomail.Message
	mailer := notify.NewMailer(
		stubSettings{host: "smtp.example.com", port: 587, account: "ops@example.com", recipient: "admin@example.com"},
		notify.WithSendFunc(func(m *gomail.Message) error {
			sent = m
			return nil
		}),
	)

	subject := identity.Subject{ID: "42", Kind: identity.KindTenantUser, Username: "jane", Role: identity.RoleClient}
	require.NoError(t, mailer.PermissionRequested(subject, "site-a", "203.0.113.9"))

	require.NotNil(t, sent)
	require.Equal(t, []string{"admin@example.com"}, sent.GetHeader("To"))
	require.Contains(t, sent.GetHeader("Subject")[0], "jane")
}

func TestPermissionRequestedUnconfigured(t *testing.T) {
	mailer := notify.NewMailer(stubSettings{}, notify.WithSendFunc(func(*gomail.Message) error {
		t.Fatal("send should not be called")
		return nil
	}))
	require.False(t, mailer.Configured())
	require.Error(t, mailer.PermissionRequested(identity.Subject{}, "site-a", ""))
}

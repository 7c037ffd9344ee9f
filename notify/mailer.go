// Package notify delivers operator notifications over SMTP.
package notify

import (
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"

	"github.com/crmkit/access-server/identity"
)

// SmtpSettings is the slice of configuration the mailer needs.
type SmtpSettings interface {
	GetSmtpHost() string
	GetSmtpPort() int
	GetSmtpAccount() string
	GetSmtpPassword() string
	GetSmtpRecipient() string
}

// Mailer sends permission-request notifications to the configured operator
// address. It satisfies ipgate.Notifier.
type Mailer struct {
	cfg  SmtpSettings
	send func(*gomail.Message) error
}

type MailerOption func(*Mailer)

// WithSendFunc replaces the SMTP dial-and-send step, used in tests.
func WithSendFunc(send func(*gomail.Message) error) MailerOption {
	return func(m *Mailer) {
		m.send = send
	}
}

func NewMailer(cfg SmtpSettings, opts ...MailerOption) *Mailer {
	mailer := &Mailer{cfg: cfg}
	mailer.send = func(msg *gomail.Message) error {
		d := gomail.NewDialer(cfg.GetSmtpHost(), cfg.GetSmtpPort(), cfg.GetSmtpAccount(), cfg.GetSmtpPassword())
		return d.DialAndSend(msg)
	}
	for _, opt := range opts {
		opt(mailer)
	}
	return mailer
}

// Configured reports whether enough SMTP settings are present to send mail.
func (m *Mailer) Configured() bool {
	return m.cfg.GetSmtpHost() != "" && m.cfg.GetSmtpAccount() != "" && m.cfg.GetSmtpRecipient() != ""
}

func (m *Mailer) PermissionRequested(subject identity.Subject, tenantID, ip string) error {
	if !m.Configured() {
		return errors.New("[Mailer.PermissionRequested] smtp not configured")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.GetSmtpAccount())
	msg.SetHeader("To", m.cfg.GetSmtpRecipient())
	msg.SetHeader("Subject", fmt.Sprintf("Access request from %s", subject.Username))
	msg.SetBody("text/html", permissionRequestBody(subject, tenantID, ip))

	return errors.Wrap(m.send(msg), "[Mailer.PermissionRequested] send")
}

func permissionRequestBody(subject identity.Subject, tenantID, ip string) string {
	shownIP := ip
	if shownIP == "" {
		shownIP = "unknown"
	}
	return fmt.Sprintf(
		"<p><strong>%s</strong> (%s, role %s) requested access to tenant <strong>%s</strong> from IP %s.</p>"+
			"<p>Add the IP to the tenant whitelist to grant access.</p>",
		subject.Username, subject.ID, subject.Role, tenantID, shownIP)
}

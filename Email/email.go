package Email

import (
	"errors"
	"fmt"

	"github.com/mertgercek/AffiliateSystemForClinichub/Config"
	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var ErrNotConfigured = errors.New("SMTP is not configured")

type Sender interface {
	Send(to, subject, html string) error
}

type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(host string, port int, user, pass, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
	}
}

func (s *SMTPSender) message(to, subject, html string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, "ClinicHub")
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)
	return m
}

func (s *SMTPSender) Send(to, subject, html string) error {
	if err := s.dialer.DialAndSend(s.message(to, subject, html)); err != nil {
		Logging.Logger.Error("Failed to send email", zap.String("to", to), zap.String("subject", subject), zap.Error(err))
		return err
	}
	Logging.Logger.Info("Email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

type unconfigured struct{}

func (unconfigured) Send(to, subject, _ string) error {
	Logging.Logger.Warn("Email not sent, SMTP is not configured", zap.String("to", to), zap.String("subject", subject))
	return ErrNotConfigured
}

// Mailer sends every transactional email. It refuses to send until Setup
// configures an SMTP host.
var Mailer Sender = unconfigured{}

func Setup(cfg *Config.Config) {
	if cfg.SMTPHost == "" {
		Logging.Logger.Warn("SMTP_HOST not set, transactional email disabled")
		Mailer = unconfigured{}
		return
	}
	Mailer = NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPSender)
}

func SendVerificationEmail(to, verificationURL string) error {
	body := fmt.Sprintf(`<p>Please click the following link to verify your email:</p>
<p><a href="%[1]s">%[1]s</a></p>
<p>If you did not register for ClinicHub, please ignore this email.</p>`, verificationURL)
	return Mailer.Send(to, "Verify your email", body)
}

func SendApprovalNotification(to string) error {
	return Mailer.Send(to, "Account Approved", `<p>Your affiliate account has been approved!</p>
<p>You can now log in and start referring patients.</p>`)
}

func SendWelcomeEmail(to, username, landingURL string) error {
	body := fmt.Sprintf(`<p>Welcome to ClinicHub, %s!</p>
<p>Your email is verified. Share your referral link to start earning commissions:</p>
<p><a href="%[2]s">%[2]s</a></p>`, username, landingURL)
	return Mailer.Send(to, "Welcome to ClinicHub", body)
}

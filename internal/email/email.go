// Package email sends the account-link confirmation mails over SMTP.
package email

import (
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"
	"github.com/rs/zerolog/log"

	"github.com/GoLTI-Tool/GoLTI-Tool/internal/config"
)

// Sender delivers a mail to one recipient.
type Sender interface {
	Send(to, subject, textBody, htmlBody string) error
}

// SMTPSender sends mail through a configured SMTP relay.
type SMTPSender struct {
	cfg config.Email
}

// NewSMTPSender creates a sender from the Email config section.
func NewSMTPSender(cfg config.Email) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send delivers a multipart text+html mail. Failures are returned to the
// caller for surfacing but must not corrupt any pending binding state.
func (s *SMTPSender) Send(to, subject, textBody, htmlBody string) error {
	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)

	if textBody != "" {
		m.SetBody("text/plain", textBody)
	}

	if htmlBody != "" {
		if textBody == "" {
			m.SetBody("text/html", htmlBody)
		} else {
			m.AddAlternative("text/html", htmlBody)
		}
	}

	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.User, s.cfg.Pass)
	d.TLSConfig = &tls.Config{ServerName: s.cfg.Host}

	if err := d.DialAndSend(m); err != nil {
		log.Error().Err(err).Str("to", to).Msg("failed to send confirmation mail")
		return fmt.Errorf("smtp send: %w", err)
	}

	log.Info().Str("to", to).Str("subject", subject).Msg("confirmation mail sent")

	return nil
}

// LogSender logs mails instead of delivering them. Used in dev mode and when
// no SMTP relay is configured.
type LogSender struct{}

// Send logs the mail at info level.
func (LogSender) Send(to, subject, textBody, _ string) error {
	log.Info().Str("to", to).Str("subject", subject).Str("body", textBody).Msg("mail delivery disabled, logging instead")
	return nil
}

// NewSender picks the SMTP sender when mail is enabled, the log sender
// otherwise.
func NewSender(cfg config.Email) Sender {
	if cfg.Enabled {
		return NewSMTPSender(cfg)
	}

	return LogSender{}
}

// Package mail delivers transactional email (password reset, email
// verification) over SMTP.
package mail

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/inner-byte/i2bt-v1/internal/config"
	"github.com/inner-byte/i2bt-v1/internal/middleware"
)

const sendTimeout = 15 * time.Second

// Mailer sends transactional mail. Implementations must respect context
// cancellation; callers surface failures as upstream errors.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
	SendVerification(ctx context.Context, to, link string) error
}

// SMTPMailer sends mail through a configured SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer builds a mailer from SMTP settings.
func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.SMTPFrom,
	}
}

// SendPasswordReset emails a single-use reset link.
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	err := m.send(ctx, to, "Reset your password", passwordResetHTML(link))
	m.record(ctx, "password_reset", err)
	return err
}

// SendVerification emails a single-use email-verification link.
func (m *SMTPMailer) SendVerification(ctx context.Context, to, link string) error {
	err := m.send(ctx, to, "Verify your email", verificationHTML(link))
	m.record(ctx, "verification", err)
	return err
}

// send delivers the message with a bounded timeout. gomail has no context
// support, so the dial-and-send runs in a goroutine raced against the
// deadline; an abandoned send finishes in the background.
func (m *SMTPMailer) send(ctx context.Context, to, subject, html string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

func (m *SMTPMailer) record(ctx context.Context, kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		middleware.Logger.ErrorContext(ctx, "email delivery failed", "kind", kind, "error", err.Error())
	}
	middleware.EmailsSent.WithLabelValues(kind, outcome).Inc()
}

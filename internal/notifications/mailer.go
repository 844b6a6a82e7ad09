package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/christlifeministries/portal/internal/config"
	"github.com/christlifeministries/portal/internal/outbox"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Mailer delivers one email.
type Mailer interface {
	Send(ctx context.Context, email outbox.Email) error
}

// NewMailer picks the SMTP mailer or the log mailer from cfg.Driver.
func NewMailer(cfg config.EmailConfig, logger *zap.Logger) (Mailer, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "log":
		return NewLogMailer(logger), nil
	case "smtp":
		return NewSMTPMailer(cfg), nil
	default:
		return nil, fmt.Errorf("notifications: unsupported email driver %q", cfg.Driver)
	}
}

// SMTPMailer sends through an SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	name   string
}

func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password),
		from:   cfg.FromEmail,
		name:   cfg.FromName,
	}
}

func (m *SMTPMailer) message(email outbox.Email) *gomail.Message {
	message := gomail.NewMessage()
	if m.name != "" {
		message.SetAddressHeader("From", m.from, m.name)
	} else {
		message.SetHeader("From", m.from)
	}
	message.SetHeader("To", email.To)
	message.SetHeader("Subject", email.Subject)
	message.SetBody("text/plain", email.Body)
	return message
}

func (m *SMTPMailer) Send(ctx context.Context, email outbox.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(email.To) == "" {
		return fmt.Errorf("notifications: email recipient is required")
	}
	if err := m.dialer.DialAndSend(m.message(email)); err != nil {
		return fmt.Errorf("notifications: smtp send: %w", err)
	}
	return nil
}

// LogMailer records emails in the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, email outbox.Email) error {
	m.logger.Info("email not sent, log driver active",
		zap.String("to", email.To),
		zap.String("subject", email.Subject))
	return nil
}

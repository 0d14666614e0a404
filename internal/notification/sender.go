package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"
)

// Sender delivers role-templated emails. The approval engine treats delivery
// failure as non-fatal: it is logged and surfaced as a warning, never rolled
// into the triggering transaction.
type Sender interface {
	Send(ctx context.Context, recipients []string, subject, htmlBody string) error
}

// SMTPConfig holds mail transport configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends mail through the corporate SMTP relay.
type SMTPSender struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
	logger *zap.Logger
}

// NewSMTPSender creates a new SMTP sender.
func NewSMTPSender(cfg SMTPConfig, logger *zap.Logger) *SMTPSender {
	return &SMTPSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: logger,
	}
}

// Send delivers one HTML email to the given recipients.
func (s *SMTPSender) Send(ctx context.Context, recipients []string, subject, htmlBody string) error {
	if len(recipients) == 0 {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.cfg.From)
	msg.SetHeader("To", recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(msg); err != nil {
		s.logger.Error("Failed to send email",
			zap.Strings("recipients", recipients),
			zap.String("subject", subject),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("Email sent",
		zap.Strings("recipients", recipients),
		zap.String("subject", subject))
	return nil
}

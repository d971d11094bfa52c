// Package mail sends transactional account mail over SMTP.
package mail

import (
	"context"

	gomail "gopkg.in/gomail.v2"

	"github.com/kbukum/base-api/logger"
)

// Sender delivers one message to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender sends mail through a configured SMTP relay.
type SMTPSender struct {
	cfg    Config
	dialer *gomail.Dialer
	log    *logger.Logger
}

var _ Sender = (*SMTPSender)(nil)

// NewSender builds a sender from config. A disabled config yields a sender
// that logs and drops messages, so callers never branch on mail being
// configured.
func NewSender(cfg *Config) (Sender, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return &nopSender{log: logger.WithComponent("mail")}, nil
	}
	return &SMTPSender{
		cfg:    *cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		log:    logger.WithComponent("mail"),
	}, nil
}

// Send delivers a plain-text message. The context is honored between
// queueing and dialing; gomail itself does not support cancellation
// mid-delivery.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(msg); err != nil {
		s.log.Error("Mail delivery failed", logger.Fields(
			logger.FieldEmail, to,
			logger.FieldError, err.Error(),
		))
		return err
	}
	s.log.Debug("Mail delivered", logger.Fields(logger.FieldEmail, to))
	return nil
}

// nopSender satisfies Sender when mail is disabled.
type nopSender struct {
	log *logger.Logger
}

func (s *nopSender) Send(_ context.Context, to, subject, _ string) error {
	s.log.Debug("Mail disabled, dropping message", logger.Fields(
		logger.FieldEmail, to,
		"subject", subject,
	))
	return nil
}

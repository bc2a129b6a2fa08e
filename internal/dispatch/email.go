package dispatch

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// EmailConfig holds SMTP settings for the email channel.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// ReplyTo is the mailbox users send their translations back to.
	ReplyTo string
}

// EmailChannel sends portions over SMTP.
type EmailChannel struct {
	cfg    EmailConfig
	dialer *gomail.Dialer
}

func NewEmailChannel(cfg EmailConfig) *EmailChannel {
	return &EmailChannel{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (c *EmailChannel) Send(ctx context.Context, contact string, msg Message) error {
	// gomail carries no context; honor cancellation before dialing
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", c.cfg.From)
	m.SetHeader("To", contact)
	if c.cfg.ReplyTo != "" {
		m.SetHeader("Reply-To", c.cfg.ReplyTo)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := c.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email to %s: %w", contact, err)
	}
	return nil
}

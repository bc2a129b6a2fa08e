package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SMSConfig holds settings for a Twilio-compatible SMS gateway.
type SMSConfig struct {
	// BaseURL of the gateway API, e.g. https://api.twilio.com/2010-04-01
	BaseURL    string
	AccountSID string
	AuthToken  string
	FromNumber string
	Timeout    time.Duration
}

// SMSChannel sends portions as text messages through an HTTP gateway.
type SMSChannel struct {
	cfg    SMSConfig
	client *http.Client
}

func NewSMSChannel(cfg SMSConfig) *SMSChannel {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SMSChannel{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *SMSChannel) Send(ctx context.Context, contact string, msg Message) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json",
		strings.TrimSuffix(c.cfg.BaseURL, "/"), c.cfg.AccountSID)

	form := url.Values{}
	form.Set("To", contact)
	form.Set("From", c.cfg.FromNumber)
	// SMS has no subject line; prepend it to the body
	form.Set("Body", msg.Subject+"\n"+msg.Body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms to %s: %w", contact, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

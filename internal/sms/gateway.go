// Package sms is the outbound/inbound SMS boundary: a gateway interface for
// sending, a client for a Twilio-compatible messages API, and the parser for
// inbound RSVP replies.
package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Outbound numbers must be +1 followed by exactly ten digits; anything else
// is rejected before the provider is contacted.
var outboundPhone = regexp.MustCompile(`^\+1\d{10}$`)

// ValidOutbound reports whether phoneNumber is sendable.
func ValidOutbound(phoneNumber string) bool {
	return outboundPhone.MatchString(phoneNumber)
}

// Gateway sends one SMS to one recipient.
type Gateway interface {
	Send(ctx context.Context, to, body string) error
}

// Client talks to a Twilio-compatible REST API.
type Client struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpc      *http.Client
}

func NewClient(accountSID, authToken, from, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.twilio.com"
	}
	return &Client{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpc:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Send(ctx context.Context, to, body string) error {
	if !ValidOutbound(to) {
		return fmt.Errorf("invalid phone number: %s", to)
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("sending sms to %s: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	log.WithField("to", to).Info("sms sent")
	return nil
}

// LogGateway records sends without contacting a provider. Used when no
// credentials are configured and in tests.
type LogGateway struct{}

func (LogGateway) Send(_ context.Context, to, body string) error {
	log.WithField("to", to).WithField("len", len(body)).Info("sms send skipped (no gateway configured)")
	return nil
}

// Package notify delivers service events to an external webhook.
// Delivery is best-effort: callers log failures and move on, an
// unreachable webhook never fails an API request.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	HTTP      *http.Client
	UserAgent string

	url    string
	secret string
}

func NewClient(url, secret string) *Client {
	return &Client{
		HTTP:      &http.Client{Timeout: 10 * time.Second},
		UserAgent: "face-api-webhook",
		url:       url,
		secret:    secret,
	}
}

// Envelope wraps every delivered event with its subject so one endpoint
// can receive all event kinds.
type Envelope struct {
	Subject string `json:"subject"`
	Event   any    `json:"event"`
}

// Send POSTs the enveloped event as JSON. When a secret is configured
// the body is signed with HMAC-SHA256 and the hex digest sent in
// X-Signature-256, "sha256=" prefixed.
func (c *Client) Send(ctx context.Context, subject string, event any) error {
	body, err := json.Marshal(Envelope{Subject: subject, Event: event})
	if err != nil {
		return fmt.Errorf("notify: marshal %s: %w", subject, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if strings.TrimSpace(c.secret) != "" {
		req.Header.Set("X-Signature-256", "sha256="+signBody(c.secret, body))
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook delivery failed: status %d", resp.StatusCode)
	}
	return nil
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Package mail sends transactional email through the Mailtrap sending API.
// All sends in this application are best-effort side channels; callers log
// failures and never fail the primary request on them.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Message is a single outbound email.
type Message struct {
	To       string
	Subject  string
	Text     string
	HTML     string
	Category string
}

// Sender delivers outbound email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds mail provider settings.
type Config struct {
	APIToken  string
	BaseURL   string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

// Client sends email through the provider REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New constructs a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIToken) == "" {
		return nil, errors.New("mail api token not configured")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://send.api.mailtrap.io"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type sendRequest struct {
	From struct {
		Email string `json:"email"`
		Name  string `json:"name,omitempty"`
	} `json:"from"`
	To []struct {
		Email string `json:"email"`
	} `json:"to"`
	Subject  string `json:"subject"`
	Text     string `json:"text,omitempty"`
	HTML     string `json:"html,omitempty"`
	Category string `json:"category,omitempty"`
}

// Send delivers one email through the provider.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("mail: empty recipient")
	}

	var body sendRequest
	body.From.Email = c.cfg.FromEmail
	body.From.Name = c.cfg.FromName
	body.To = append(body.To, struct {
		Email string `json:"email"`
	}{Email: msg.To})
	body.Subject = msg.Subject
	body.Text = msg.Text
	body.HTML = msg.HTML
	body.Category = msg.Category

	var buf bytes.Buffer
	if errEncode := json.NewEncoder(&buf).Encode(body); errEncode != nil {
		return fmt.Errorf("mail: encode request: %w", errEncode)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/send", &buf)
	if errReq != nil {
		return fmt.Errorf("mail: build request: %w", errReq)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return fmt.Errorf("mail: send: %w", errDo)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mail: provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}

// NopSender drops all email. Used when the provider is not configured.
type NopSender struct{}

// Send logs and discards the message.
func (NopSender) Send(_ context.Context, msg Message) error {
	log.WithFields(log.Fields{"to": msg.To, "subject": msg.Subject}).
		Warn("mail provider not configured; dropping email")
	return nil
}

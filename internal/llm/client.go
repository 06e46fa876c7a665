// Package llm provides the OpenRouter chat-completion client used by the
// chat endpoint, including bounded retries for rate-limited requests.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Chat roles understood by the completion API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat-completion turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config holds client settings.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxRetries   int
	Timeout      time.Duration
	RetryBackoff time.Duration
}

// Client talks to the OpenRouter chat-completion endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
}

// ErrNotConfigured indicates the API key is missing.
var ErrNotConfigured = errors.New("openrouter api key not configured")

// New constructs a Client. The API key may be empty; calls will then fail
// with ErrNotConfigured.
func New(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://openrouter.ai"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 1 * time.Second
	}
	return &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// HTTPError carries a non-2xx upstream response.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("openrouter http %d: %s", e.StatusCode, e.Message)
}

// StatusCode extracts the upstream status from an error, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

func isRetryableHTTP(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

func isRetryableErr(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return isRetryableHTTP(httpErr.StatusCode)
	}
	return false
}

// jitterSleep applies +/- 20% jitter to the backoff duration.
func jitterSleep(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delta := base.Seconds() * 0.2
	low := base.Seconds() - delta
	v := low + rand.Float64()*(2*delta)
	return time.Duration(v * float64(time.Second))
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// Complete sends the conversation to the chat-completion endpoint and
// returns the assistant reply text.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	body := chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   800,
		Temperature: 0.7,
	}

	raw, err := c.do(ctx, body)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if errDecode := json.Unmarshal(raw, &parsed); errDecode != nil {
		return "", fmt.Errorf("decode completion response: %w", errDecode)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("no completion choices in response")
	}
	content := parsed.Choices[0].Message.Content
	if content == "" {
		content = parsed.Choices[0].Text
	}
	if content == "" {
		return "", errors.New("empty completion content")
	}
	return content, nil
}

// do performs the request with exponential backoff on retryable failures.
func (c *Client) do(ctx context.Context, body chatRequest) ([]byte, error) {
	backoff := c.backoff

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		raw, retryAfter, err := c.doOnce(ctx, body)
		if err == nil {
			return raw, nil
		}
		if !isRetryableErr(err) || attempt == c.maxRetries {
			return nil, err
		}

		sleepFor := backoff
		if retryAfter > 0 {
			sleepFor = retryAfter
		}
		if sleepFor > 10*time.Second {
			sleepFor = 10 * time.Second
		}
		sleepFor = jitterSleep(sleepFor)

		log.WithFields(log.Fields{
			"attempt":     attempt + 1,
			"max_retries": c.maxRetries,
			"sleep":       sleepFor.String(),
		}).WithError(err).Warn("retrying chat completion request")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}
}

func (c *Client) doOnce(ctx context.Context, body chatRequest) ([]byte, time.Duration, error) {
	var buf bytes.Buffer
	if errEncode := json.NewEncoder(&buf).Encode(body); errEncode != nil {
		return nil, 0, errEncode
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/chat/completions", &buf)
	if errReq != nil {
		return nil, 0, errReq
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return nil, 0, errDo
	}
	defer resp.Body.Close()

	raw, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return nil, 0, errRead
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var parsed errorResponse
		_ = json.Unmarshal(raw, &parsed)
		message := parsed.Error.Message
		if message == "" {
			message = parsed.Message
		}
		if message == "" {
			message = strings.TrimSpace(string(raw))
		}
		var retryAfter time.Duration
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, errParse := strconv.Atoi(ra); errParse == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, retryAfter, &HTTPError{StatusCode: resp.StatusCode, Message: message}
	}
	return raw, 0, nil
}

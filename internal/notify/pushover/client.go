// Package pushover implements notification delivery through the Pushover
// message API.
package pushover

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/inetmon/inetmon/internal/resilience"
)

const (
	// ProviderName identifies this transport.
	ProviderName = "pushover"

	// DefaultEndpoint is the Pushover message API.
	DefaultEndpoint = "https://api.pushover.net/1/messages.json"

	// maxResponseSize bounds how much of a response body is read.
	maxResponseSize = 64 * 1024
)

// Errors returned by Send.
var (
	// ErrMissingCredentials is returned by NewClient without token or user.
	ErrMissingCredentials = errors.New("pushover: token and user are required")

	// ErrRejected is returned when the API answers with status != 1.
	ErrRejected = errors.New("pushover: message rejected")

	// ErrMalformedResponse is returned when the response body cannot be decoded.
	ErrMalformedResponse = errors.New("pushover: malformed response")
)

// ClientConfig holds configuration for the Pushover client.
type ClientConfig struct {
	// Token is the application API token (required).
	Token string

	// User is the user or group key (required).
	User string

	// Device restricts delivery to one device (optional).
	Device string

	// Priority is the message priority, -2..1. Zero is normal.
	Priority int

	// Endpoint is the API URL (optional, defaults to DefaultEndpoint).
	Endpoint string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Deadline bounds a whole Send, retries included. Zero leaves only the
	// HTTP client's per-attempt timeout.
	Deadline time.Duration

	Logger zerolog.Logger
}

// Client sends messages to Pushover.
type Client struct {
	token      string
	user       string
	device     string
	priority   int
	endpoint   string
	httpClient *resilience.Client
	deadline   time.Duration
	logger     zerolog.Logger
}

// NewClient creates a Pushover client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" || cfg.User == "" {
		return nil, ErrMissingCredentials
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		token:      cfg.Token,
		user:       cfg.User,
		device:     cfg.Device,
		priority:   cfg.Priority,
		endpoint:   endpoint,
		httpClient: httpClient,
		deadline:   cfg.Deadline,
		logger:     cfg.Logger,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Health returns the delivery health of the underlying HTTP client.
func (c *Client) Health() resilience.Health {
	return c.httpClient.Health()
}

// Send posts a message. Delivery succeeded only if the API answered 200
// with status 1.
func (c *Client) Send(ctx context.Context, title, body string) error {
	if c.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.deadline)
		defer cancel()
	}

	form := url.Values{}
	form.Set("token", c.token)
	form.Set("user", c.user)
	form.Set("title", title)
	form.Set("message", body)
	if c.device != "" {
		form.Set("device", c.device)
	}
	if c.priority != 0 {
		form.Set("priority", strconv.Itoa(c.priority))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, summarize(data))
	}

	var msgResp messageResponse
	if err := json.Unmarshal(data, &msgResp); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if msgResp.Status != 1 {
		return fmt.Errorf("%w: %s", ErrRejected, strings.Join(msgResp.Errors, "; "))
	}

	c.logger.Debug().
		Str("request", msgResp.Request).
		Str("title", title).
		Msg("pushover message accepted")

	return nil
}

func summarize(data []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(data))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}

// Pushover API response structure.
type messageResponse struct {
	Status  int      `json:"status"`
	Request string   `json:"request"`
	Errors  []string `json:"errors"`
}

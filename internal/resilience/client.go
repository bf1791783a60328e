package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without contacting the server while the
// breaker is open or its half-open probe slots are taken.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ServerError marks a 5xx response. It counts against the breaker and is
// retried.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ClientConfig configures a Client. Zero durations take the values from
// DefaultClientConfig.
type ClientConfig struct {
	// Name labels the breaker and log lines.
	Name string

	// Timeout bounds each attempt.
	Timeout time.Duration

	// Retries is the number of attempts after the first. Zero or less
	// means a single attempt.
	Retries int

	// MinBackoff and MaxBackoff bound the exponential wait between attempts.
	MinBackoff time.Duration
	MaxBackoff time.Duration

	Breaker BreakerConfig

	// Transport replaces http.DefaultTransport.
	Transport http.RoundTripper

	// Clock stamps the health timestamps.
	Clock clock.Clock

	Logger zerolog.Logger
}

// DefaultClientConfig returns the settings used for notification delivery:
// a 10 second timeout and one retry.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{
		Name:       name,
		Timeout:    10 * time.Second,
		Retries:    1,
		MinBackoff: 100 * time.Millisecond,
		MaxBackoff: 5 * time.Second,
		Breaker:    DefaultBreakerConfig(),
	}
}

// Client sends HTTP requests through a circuit breaker, retrying network
// errors and 5xx responses. It is safe for concurrent use.
type Client struct {
	name       string
	http       *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	retries    uint64
	minBackoff time.Duration
	maxBackoff time.Duration
	clock      clock.Clock
	log        zerolog.Logger

	mu          sync.RWMutex
	lastSuccess time.Time
	lastFailure time.Time
	lastErr     string
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) *Client {
	def := DefaultClientConfig(cfg.Name)
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = def.MinBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	log := cfg.Logger.With().Str("client", cfg.Name).Logger()

	return &Client{
		name:       cfg.Name,
		http:       &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		breaker:    newBreaker[*http.Response](cfg.Name, cfg.Breaker, log), //nolint:bodyclose // type parameter
		retries:    uint64(cfg.Retries),
		minBackoff: cfg.MinBackoff,
		maxBackoff: cfg.MaxBackoff,
		clock:      cfg.Clock,
		log:        log,
	}
}

// Do sends req, retrying with exponential backoff. Requests with a body
// must set GetBody so it can be replayed. When every attempt ends in a 5xx
// the last response is returned with a nil error; the caller closes it.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var resp *http.Response
	attempt := func() error {
		discard(resp)
		resp = nil

		r, err := c.breaker.Execute(func() (*http.Response, error) {
			return c.send(ctx, req)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		resp = r
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.log.Debug().Err(err).Dur("backoff", wait).Msg("retrying request")
	}

	err := backoff.RetryNotify(attempt, c.policy(ctx), notify)
	switch {
	case err == nil:
		c.recordSuccess()
		return resp, nil
	case resp != nil:
		c.recordFailure(&ServerError{StatusCode: resp.StatusCode})
		return resp, nil
	default:
		c.recordFailure(err)
		return nil, err
	}
}

func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	out := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("rewinding request body: %w", err))
		}
		out.Body = body
	}

	resp, err := c.http.Do(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return resp, &ServerError{StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func (c *Client) policy(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.minBackoff
	bo.MaxInterval = c.maxBackoff
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, c.retries), ctx)
}

func discard(resp *http.Response) {
	if resp == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

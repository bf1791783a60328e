package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// Health describes a client's recent delivery outcomes.
type Health struct {
	Name          string          `json:"name"`
	CircuitState  gobreaker.State `json:"-"`
	State         string          `json:"state"`
	LastSuccessAt *time.Time      `json:"last_success_at,omitempty"`
	LastFailureAt *time.Time      `json:"last_failure_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
}

// IsHealthy reports a closed breaker.
func (h Health) IsHealthy() bool { return h.CircuitState == gobreaker.StateClosed }

// IsDegraded reports a half-open breaker.
func (h Health) IsDegraded() bool { return h.CircuitState == gobreaker.StateHalfOpen }

// IsUnhealthy reports an open breaker.
func (h Health) IsUnhealthy() bool { return h.CircuitState == gobreaker.StateOpen }

// Health returns the current breaker state and the last outcomes.
func (c *Client) Health() Health {
	state := c.breaker.State()

	c.mu.RLock()
	defer c.mu.RUnlock()
	return Health{
		Name:          c.name,
		CircuitState:  state,
		State:         state.String(),
		LastSuccessAt: timePtr(c.lastSuccess),
		LastFailureAt: timePtr(c.lastFailure),
		LastError:     c.lastErr,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (c *Client) recordSuccess() {
	now := c.clock.Now()
	c.mu.Lock()
	c.lastSuccess = now
	c.mu.Unlock()
}

func (c *Client) recordFailure(err error) {
	now := c.clock.Now()
	c.mu.Lock()
	c.lastFailure = now
	c.lastErr = err.Error()
	c.mu.Unlock()
}

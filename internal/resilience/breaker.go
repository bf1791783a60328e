// Package resilience wraps outbound notification requests with a request
// timeout, bounded exponential retries and a circuit breaker, and tracks
// delivery health for the liveness endpoint.
package resilience

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker guarding a Client. Zero fields
// take the values from DefaultBreakerConfig.
type BreakerConfig struct {
	// TripAfter is the number of consecutive failed attempts that opens
	// the breaker.
	TripAfter uint32

	// OpenFor is how long the breaker rejects requests before letting a
	// probe through.
	OpenFor time.Duration

	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32

	// OnStateChange replaces the default transition log line.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig opens after five consecutive failures and stays open
// for 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		TripAfter:        5,
		OpenFor:          30 * time.Second,
		HalfOpenRequests: 1,
	}
}

func (b BreakerConfig) withDefaults() BreakerConfig {
	d := DefaultBreakerConfig()
	if b.TripAfter == 0 {
		b.TripAfter = d.TripAfter
	}
	if b.OpenFor <= 0 {
		b.OpenFor = d.OpenFor
	}
	if b.HalfOpenRequests == 0 {
		b.HalfOpenRequests = d.HalfOpenRequests
	}
	return b
}

// Trips reports whether counts would open a breaker configured with b.
func (b BreakerConfig) Trips(counts gobreaker.Counts) bool {
	return counts.ConsecutiveFailures >= b.withDefaults().TripAfter
}

func newBreaker[T any](name string, cfg BreakerConfig, log zerolog.Logger) *gobreaker.CircuitBreaker[T] {
	cfg = cfg.withDefaults()

	onChange := cfg.OnStateChange
	if onChange == nil {
		onChange = func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Stringer("from", from).
				Stringer("to", to).
				Msg("circuit breaker state changed")
		}
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          name,
		MaxRequests:   cfg.HalfOpenRequests,
		Timeout:       cfg.OpenFor,
		ReadyToTrip:   cfg.Trips,
		OnStateChange: onChange,
	})
}

package monitor

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/inetmon/inetmon/internal/resilience"
)

// staleCycles is how many intervals may pass without a completed cycle
// before the loop is reported unhealthy.
const staleCycles = 3

// Health statuses reported by the liveness endpoint.
const (
	HealthStatusOK       = "ok"
	HealthStatusStarting = "starting"
	HealthStatusStale    = "stale"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string     `json:"status"`
	Version     string     `json:"version"`
	Time        time.Time  `json:"time"`
	LastCycleAt *time.Time `json:"last_cycle_at,omitempty"`
	Reachable   bool       `json:"reachable"`
	QueueDepth  int        `json:"queue_depth"`
	Cycles      int64      `json:"cycles"`

	// Notifications is the transport health. It does not affect Status.
	Notifications *resilience.Health `json:"notifications,omitempty"`
}

// Health evaluates loop liveness at the current clock time.
func (m *Monitor) Health(version string) (HealthResponse, bool) {
	now := m.clock.Now()
	stats := m.Stats()
	limit := staleCycles * m.interval

	resp := HealthResponse{
		Version:    version,
		Time:       now.UTC(),
		Reachable:  stats.Reachable,
		QueueDepth: stats.QueueDepth,
		Cycles:     stats.Cycles,
	}
	if m.transport != nil {
		th := m.transport.Health()
		resp.Notifications = &th
	}

	if stats.LastCycleAt.IsZero() {
		if now.Sub(stats.StartedAt) <= limit {
			resp.Status = HealthStatusStarting
			return resp, true
		}
		resp.Status = HealthStatusStale
		return resp, false
	}

	last := stats.LastCycleAt
	resp.LastCycleAt = &last
	if now.Sub(last) > limit {
		resp.Status = HealthStatusStale
		return resp, false
	}
	resp.Status = HealthStatusOK
	return resp, true
}

// HealthHandler serves the liveness endpoint.
func (m *Monitor) HealthHandler(version string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		resp, healthy := m.Health(version)
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	})

	return r
}

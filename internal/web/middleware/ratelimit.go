package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/inetmon/inetmon/internal/web/problem"
)

// RateLimitConfig is a fixed request budget per client IP and window.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

var (
	// StandardRateLimit covers the page, the JSON endpoints and the websocket.
	StandardRateLimit = RateLimitConfig{RequestLimit: 120, WindowLength: time.Minute}

	// MutatingRateLimit covers log truncation.
	MutatingRateLimit = RateLimitConfig{RequestLimit: 10, WindowLength: time.Minute}
)

// RateLimitByIP limits requests per client IP, preferring proxy headers
// when present. Rejections are written as 429 problems with Retry-After
// set to the window length.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(cfg.WindowLength / time.Second))

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", retryAfter)
			problem.For(http.StatusTooManyRequests, GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.").
				WithInstance(r.URL.Path).
				Write(w)
		}),
	)
}

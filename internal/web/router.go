// Package web provides the HTTP surface of the log viewer.
package web

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/inetmon/inetmon/internal/web/handler"
	"github.com/inetmon/inetmon/internal/web/middleware"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// AllowedHosts restricts clients by IP or CIDR. Empty allows everyone.
	AllowedHosts []string

	Viewer *handler.ViewerHandler
}

// NewRouter creates a new chi router with all viewer routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "inetmon-viewer"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	// Checked against the socket address, before RealIP rewrites it.
	r.Use(middleware.AllowHosts(cfg.AllowedHosts, cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)
	mutatingRateLimit := middleware.RateLimitByIP(middleware.MutatingRateLimit)

	v := cfg.Viewer

	r.Get("/health", v.Health)

	r.Group(func(r chi.Router) {
		r.Use(standardRateLimit)
		r.Get("/", v.Index)
		r.Get("/ws", v.Live)

		r.Route("/api", func(r chi.Router) {
			r.Get("/status", v.Status)
			r.Get("/log", v.Log)
		})
	})

	r.With(mutatingRateLimit).Post("/clear-log", v.ClearLog)

	return r
}

// Package main provides the entrypoint for the connection log viewer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/inetmon/inetmon/internal/config"
	"github.com/inetmon/inetmon/internal/telemetry"
	"github.com/inetmon/inetmon/internal/web"
	"github.com/inetmon/inetmon/internal/web/handler"
	"github.com/inetmon/inetmon/internal/web/middleware"
	"github.com/inetmon/inetmon/internal/web/tail"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "inetmon-viewer"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the YAML config file (default $"+config.EnvPath+" or "+config.DefaultPath+")")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("inetmon viewer %s (built %s)\n", Version, BuildTime)
		return 0
	}

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	path := config.ResolvePath(*configPath)
	cfg, warnings, err := config.Load(path)
	switch {
	case errors.Is(err, config.ErrNotFound):
		log.Warn().Str("path", path).Msg("config file not found, using defaults")
	case err != nil:
		log.Error().Err(err).Str("path", path).Msg("failed to load config")
		return 1
	}
	if warnings != nil {
		log.Warn().Err(warnings).Msg("config values replaced")
	}

	if !cfg.Debug {
		log = log.Level(zerolog.InfoLevel)
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("log_path", cfg.LogPath).
		Msg("starting log viewer")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Telemetry.Environment,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize telemetry")
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		return 1
	}

	hub := tail.NewHub(log)
	follower := tail.NewFollower(tail.FollowerConfig{
		Path:    cfg.LogPath,
		OnLines: hub.BroadcastLines,
		OnReset: hub.BroadcastReset,
		Logger:  log,
	})

	viewer := handler.NewViewerHandler(handler.ViewerConfig{
		Title:           cfg.Web.Title,
		LogPath:         cfg.LogPath,
		StatusPath:      cfg.ResolvedStatusPath(),
		LogLines:        cfg.Web.LogLines,
		RefreshInterval: cfg.IntervalDuration(),
		StatusMaxAge:    cfg.Web.StatusMaxAgeDuration(),
		Hub:             hub,
		Logger:          log,
	})

	router := web.NewRouter(web.RouterConfig{
		Logger:       log,
		ServiceName:  serviceName,
		Metrics:      metrics,
		AllowedHosts: cfg.Web.AllowedHosts,
		Viewer:       viewer,
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Web.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return follower.Run(gctx)
	})
	g.Go(func() error {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("viewer stopped with error")
		return 1
	}

	log.Info().Msg("server stopped")
	return 0
}

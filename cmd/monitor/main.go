// Package main provides the entrypoint for the internet connection monitor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/inetmon/inetmon/internal/config"
	"github.com/inetmon/inetmon/internal/eventlog"
	"github.com/inetmon/inetmon/internal/monitor"
	"github.com/inetmon/inetmon/internal/notify"
	"github.com/inetmon/inetmon/internal/notify/pushover"
	"github.com/inetmon/inetmon/internal/probe"
	"github.com/inetmon/inetmon/internal/resilience"
	"github.com/inetmon/inetmon/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "inetmon-monitor"

// Exit codes.
const (
	exitOK          = 0
	exitStartup     = 1
	exitToolMissing = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the YAML config file (default $"+config.EnvPath+" or "+config.DefaultPath+")")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("inetmon monitor %s (built %s)\n", Version, BuildTime)
		return exitOK
	}

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	path := config.ResolvePath(*configPath)
	cfg, warnings, err := config.Load(path)
	missing := errors.Is(err, config.ErrNotFound)
	switch {
	case missing:
		log.Warn().Str("path", path).Msg("config file not found, using defaults")
	case err != nil:
		log.Error().Err(err).Str("path", path).Msg("failed to load config")
		return exitStartup
	}

	if cfg.Debug {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("config", path).
		Msg("starting internet monitor")

	sink := eventlog.New(eventlog.Config{Path: cfg.LogPath, Logger: &log})
	if missing {
		sink.Record(false, fmt.Sprintf("Config file %s not found, using defaults", path))
	}
	for _, w := range multierr.Errors(warnings) {
		log.Warn().Err(w).Msg("config value replaced")
		sink.Record(false, "Config warning: "+w.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Telemetry.Environment,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		ExportInterval: cfg.IntervalDuration(),
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize telemetry")
		return exitStartup
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.Endpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := telemetry.NewMonitorMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		return exitStartup
	}

	var (
		transport       notify.Transport
		transportHealth monitor.TransportHealth
	)
	if cfg.NotificationsEnabled() {
		clientCfg := resilience.DefaultClientConfig(pushover.ProviderName)
		clientCfg.Timeout = time.Duration(cfg.Pushover.Timeout) * time.Second
		clientCfg.Retries = cfg.Pushover.Retries
		clientCfg.Logger = log

		client, err := pushover.NewClient(pushover.ClientConfig{
			Token:      cfg.Pushover.Token,
			User:       cfg.Pushover.User,
			Device:     cfg.Pushover.Device,
			Priority:   cfg.Pushover.Priority,
			HTTPClient: resilience.NewClient(clientCfg),
			Deadline:   clientCfg.Timeout,
			Logger:     log,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to create pushover client")
			return exitStartup
		}
		transport = client
		transportHealth = client
		log.Info().Msg("pushover notifications enabled")
	} else {
		log.Warn().Msg("pushover credentials not configured, notifications are logged only")
	}

	notifier := notify.New(notify.Config{
		Transport: transport,
		Recorder:  sink,
		Debug:     cfg.Debug,
		Metrics:   metrics,
		Logger:    log,
	})

	mon, err := monitor.New(monitor.Config{
		Interval:          cfg.IntervalDuration(),
		Trigger:           cfg.Trigger,
		DNSFailureTrigger: cfg.DNSFailureTrigger,
		HighLatencyMs:     cfg.HighLatencyMs,
		DNSHost:           cfg.DNSHost,
		Location:          cfg.Location(),
		Debug:             cfg.Debug,
		StatusPath:        cfg.ResolvedStatusPath(),
		Prober: probe.NewReachability(probe.ReachabilityConfig{
			Host:   cfg.PingHost,
			Count:  cfg.Pings,
			Logger: log,
		}),
		Resolver: probe.NewDNS(probe.DNSConfig{
			Host:   cfg.DNSHost,
			Server: cfg.DNSServer,
			Logger: log,
		}),
		Notifier:  notifier,
		Recorder:  sink,
		Transport: transportHealth,
		Metrics:   metrics,
		Tracer:    tp.Tracer,
		Logger:    log,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create monitor")
		return exitStartup
	}

	sink.Record(true, "Starting Internet Monitor Service")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mon.Run(gctx)
	})

	if cfg.HealthAddr != "" {
		server := &http.Server{
			Addr:         cfg.HealthAddr,
			Handler:      mon.HealthHandler(Version),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		g.Go(func() error {
			log.Info().Str("addr", server.Addr).Msg("health server listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	switch {
	case errors.Is(err, probe.ErrToolMissing):
		log.Error().Err(err).Msg("reachability probe tool is missing")
		sink.Record(false, "Stopping Internet Monitor Service: "+err.Error())
		return exitToolMissing
	case err != nil:
		log.Error().Err(err).Msg("monitor stopped with error")
		sink.Record(false, "Stopping Internet Monitor Service: "+err.Error())
		return exitStartup
	}

	log.Info().Msg("monitor stopped")
	sink.Record(true, "Stopping Internet Monitor Service")
	return exitOK
}

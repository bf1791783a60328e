package config

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Normalize replaces unusable values with defaults and resolves the timezone.
// Every replacement is reported as a warning; the returned error combines
// them and is nil when nothing was replaced.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var warnings error
	warn := func(format string, args ...any) {
		warnings = multierr.Append(warnings, fmt.Errorf(format, args...))
	}

	cfg.PingHost = strings.TrimSpace(cfg.PingHost)
	if cfg.PingHost == "" {
		warn("ping_host is empty, using 8.8.8.8")
		cfg.PingHost = "8.8.8.8"
	}

	cfg.DNSHost = strings.TrimSpace(cfg.DNSHost)
	if cfg.DNSHost == "" {
		warn("dns_host is empty, using www.google.com")
		cfg.DNSHost = "www.google.com"
	}

	if cfg.Pings < 1 {
		warn("pings must be >= 1 (got %d), using 5", cfg.Pings)
		cfg.Pings = 5
	}
	if cfg.Interval < 1 {
		warn("interval must be >= 1 second (got %d), using 60", cfg.Interval)
		cfg.Interval = 60
	}
	if cfg.Trigger < 1 {
		warn("trigger must be >= 1 (got %d), using 3", cfg.Trigger)
		cfg.Trigger = 3
	}
	if cfg.DNSFailureTrigger < 1 {
		warn("dns_failure_trigger must be >= 1 (got %d), using 3", cfg.DNSFailureTrigger)
		cfg.DNSFailureTrigger = 3
	}
	if cfg.HighLatencyMs <= 0 {
		warn("high_latency_ms must be > 0 (got %v), using 1000", cfg.HighLatencyMs)
		cfg.HighLatencyMs = 1000
	}
	if cfg.LogPath == "" {
		warn("log_path is empty, using /var/log/connection.log")
		cfg.LogPath = "/var/log/connection.log"
	}

	if cfg.Pushover.Timeout < 1 {
		warn("pushover.timeout must be >= 1 second (got %d), using 10", cfg.Pushover.Timeout)
		cfg.Pushover.Timeout = 10
	}
	if cfg.Pushover.Retries < 0 {
		warn("pushover.retries must be >= 0 (got %d), using 0", cfg.Pushover.Retries)
		cfg.Pushover.Retries = 0
	}
	if cfg.Pushover.Priority < -2 || cfg.Pushover.Priority > 1 {
		// Priority 2 (emergency) needs retry/expire parameters this transport does not send.
		warn("pushover.priority must be between -2 and 1 (got %d), using 0", cfg.Pushover.Priority)
		cfg.Pushover.Priority = 0
	}

	if cfg.Web.Port < 1 || cfg.Web.Port > 65535 {
		warn("web.port out of range (got %d), using 5005", cfg.Web.Port)
		cfg.Web.Port = 5005
	}
	if cfg.Web.LogLines < 1 {
		warn("web.log_lines must be >= 1 (got %d), using 100", cfg.Web.LogLines)
		cfg.Web.LogLines = 100
	}
	if cfg.Web.Title == "" {
		cfg.Web.Title = "Internet Connection Monitor"
	}

	if cfg.Telemetry.SampleRatio <= 0 || cfg.Telemetry.SampleRatio > 1 {
		warn("telemetry.sample_ratio must be in (0,1] (got %v), using 1", cfg.Telemetry.SampleRatio)
		cfg.Telemetry.SampleRatio = 1
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil || cfg.Timezone == "" {
		warn("invalid timezone %q, using UTC", cfg.Timezone)
		cfg.Timezone = "UTC"
		loc = time.UTC
	}
	cfg.location = loc

	return warnings
}

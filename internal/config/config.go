// Package config loads the monitor configuration document.
//
// The configuration is a YAML document read once at startup. A missing file
// yields the built-in defaults, missing keys keep their per-key defaults and
// malformed values fall back to a safe default with a warning. The returned
// Config is treated as immutable by every consumer.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "INTERNET_MONITOR_CONFIG"

// DefaultPath is used when neither a flag nor EnvPath names a config file.
const DefaultPath = "/config/internet_monitor/config.yaml"

// Config is the full configuration document.
type Config struct {
	Debug bool `yaml:"debug"`

	// PingHost is the reachability probe target.
	PingHost string `yaml:"ping_host"`

	// DNSHost is the name resolved by the DNS probe.
	DNSHost string `yaml:"dns_host"`

	// DNSServer is the resolver queried by the DNS probe (host:port).
	// Empty means the first nameserver from /etc/resolv.conf.
	DNSServer string `yaml:"dns_server"`

	// Pings is the number of echo requests per reachability probe.
	Pings int `yaml:"pings"`

	// Interval is the cycle period in seconds.
	Interval int `yaml:"interval"`

	// Trigger is the consecutive-failure threshold for connectivity,
	// packet loss and latency.
	Trigger int `yaml:"trigger"`

	// HighLatencyMs is the average latency ceiling.
	HighLatencyMs float64 `yaml:"high_latency_ms"`

	// DNSFailureTrigger is the consecutive-failure threshold for DNS.
	DNSFailureTrigger int `yaml:"dns_failure_trigger"`

	LogPath    string `yaml:"log_path"`
	StatusPath string `yaml:"status_path"`

	// Timezone is the IANA zone used to render times in notifications.
	Timezone string `yaml:"timezone"`

	// HealthAddr enables the monitor liveness endpoint when set.
	HealthAddr string `yaml:"health_addr"`

	Pushover  PushoverConfig  `yaml:"pushover"`
	Web       WebConfig       `yaml:"web"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	location *time.Location
}

// PushoverConfig holds notification credentials and transport settings.
type PushoverConfig struct {
	Token    string `yaml:"token"`
	User     string `yaml:"user"`
	Device   string `yaml:"device"`
	Priority int    `yaml:"priority"`

	// Timeout is the per-request timeout in seconds.
	Timeout int `yaml:"timeout"`

	// Retries is the number of transport-level retries per delivery attempt.
	Retries int `yaml:"retries"`
}

// WebConfig configures the log viewer.
type WebConfig struct {
	Title        string   `yaml:"title"`
	Port         int      `yaml:"port"`
	LogLines     int      `yaml:"log_lines"`
	AllowedHosts []string `yaml:"allowed_hosts"`

	// StatusMaxAge is the freshness window for the status file in seconds.
	// Zero or negative disables the check.
	StatusMaxAge int `yaml:"status_max_age"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	Environment string `yaml:"environment"`

	// SampleRatio is the fraction of root traces exported, in (0,1].
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		PingHost:          "8.8.8.8",
		DNSHost:           "www.google.com",
		Pings:             5,
		Interval:          60,
		Trigger:           3,
		HighLatencyMs:     1000,
		DNSFailureTrigger: 3,
		LogPath:           "/var/log/connection.log",
		Timezone:          "US/Eastern",
		Pushover: PushoverConfig{
			Timeout: 10,
			Retries: 1,
		},
		Web: WebConfig{
			Title:        "Internet Connection Monitor",
			Port:         5005,
			LogLines:     100,
			StatusMaxAge: 300,
		},
		Telemetry: TelemetryConfig{
			Endpoint:    "localhost:4317",
			Insecure:    true,
			Environment: "production",
			SampleRatio: 1,
		},
	}
	_ = Normalize(cfg)
	return cfg
}

// ErrNotFound is returned by Load when the config file does not exist.
// The accompanying Config holds the defaults.
var ErrNotFound = errors.New("config file not found")

// Load reads the document at path over the defaults.
//
// It returns ErrNotFound (with a usable default Config) when the file is
// missing, and a parse error when the document is not valid YAML. A value
// of the wrong type keeps its default. Value fallbacks are reported through
// the warnings error, which may wrap several warnings (see multierr.Errors);
// it is nil when every value was usable.
func Load(path string) (cfg *Config, warnings error, err error) {
	cfg = Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}

	var typeErrs error
	if err := yaml.Unmarshal(data, cfg); err != nil {
		var te *yaml.TypeError
		if !errors.As(err, &te) {
			return nil, nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
		// yaml.v3 skips mistyped values and decodes the rest, so the
		// affected fields still hold their defaults.
		for _, msg := range te.Errors {
			typeErrs = multierr.Append(typeErrs, fmt.Errorf("%s, using default", msg))
		}
	}

	return cfg, multierr.Combine(typeErrs, Normalize(cfg)), nil
}

// ResolvePath returns the flag value if set, otherwise EnvPath, otherwise DefaultPath.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

// IntervalDuration returns the cycle period.
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// Location returns the notification timezone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// ResolvedStatusPath returns the status file path, defaulting to
// connection_status.json next to the log file.
func (c *Config) ResolvedStatusPath() string {
	if c.StatusPath != "" {
		return c.StatusPath
	}
	return filepath.Join(filepath.Dir(c.LogPath), "connection_status.json")
}

// NotificationsEnabled reports whether Pushover credentials are configured.
func (c *Config) NotificationsEnabled() bool {
	return c.Pushover.Token != "" && c.Pushover.User != ""
}

// StatusMaxAgeDuration returns the status freshness window; zero disables the check.
func (w WebConfig) StatusMaxAgeDuration() time.Duration {
	if w.StatusMaxAge <= 0 {
		return 0
	}
	return time.Duration(w.StatusMaxAge) * time.Second
}

// Package config provides configuration loading and validation for dnsdash.
//
// Configuration comes from an optional YAML file, then environment overrides,
// then command-line flags applied by cmd/dnsdash. Validate normalizes the
// result and fills in defaults for anything left empty.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables understood by Load.
const (
	EnvConfigPath = "DNSDASH_CONFIG"
	EnvBackendURL = "DNSDASH_BACKEND_URL"
	EnvAPIKey     = "DNSDASH_API_KEY"
	EnvHost       = "DNSDASH_HOST"
	EnvPort       = "DNSDASH_PORT"
	EnvDBPath     = "DNSDASH_DB"
	EnvLogLevel   = "LOG_LEVEL"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8090,
		},
		Backend: BackendConfig{
			URL:       "http://127.0.0.1:8080",
			Timeout:   "10s",
			UserAgent: "dnsdash",
		},
		Dashboard: DashboardConfig{
			AutoRefresh:            true,
			RefreshIntervalSeconds: 5,
			CounterDuration:        "1s",
			Title:                  "DNS Analytics Dashboard",
		},
		Sessions: SessionsConfig{
			MaxSessions:   64,
			IdleTimeout:   "10m",
			FrameInterval: "100ms",
		},
		Database: DatabaseConfig{
			Path: "dnsdash.db",
		},
		Logging: LoggingConfig{
			Level:            "INFO",
			StructuredFormat: "json",
			ExtraFields:      map[string]string{},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// ResolveConfigPath picks the config file path: flag first, then DNSDASH_CONFIG.
func ResolveConfigPath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv(EnvConfigPath))
}

// Load reads the configuration at path (defaults only when path is empty),
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.API.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvHost)); v != "" {
		cfg.Server.Host = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		cfg.Server.Port = port
	}
	if v := strings.TrimSpace(os.Getenv(EnvDBPath)); v != "" {
		cfg.Database.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// Validate validates and normalizes the configuration.
func (cfg *Config) Validate() error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("server.port must be 1..65535")
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}

	cfg.Backend.URL = strings.TrimRight(strings.TrimSpace(cfg.Backend.URL), "/")
	if cfg.Backend.URL == "" {
		return errors.New("backend.url is required")
	}
	u, err := url.Parse(cfg.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.url must be an absolute http(s) URL, got %q", cfg.Backend.URL)
	}
	if cfg.Backend.Timeout == "" {
		cfg.Backend.Timeout = "10s"
	}
	if cfg.Backend.UserAgent == "" {
		cfg.Backend.UserAgent = "dnsdash"
	}

	if cfg.Dashboard.RefreshIntervalSeconds == 0 {
		cfg.Dashboard.RefreshIntervalSeconds = 5
	}
	if !ValidRefreshInterval(cfg.Dashboard.RefreshIntervalSeconds) {
		return fmt.Errorf("dashboard.refresh_interval_seconds must be one of %v", RefreshIntervals)
	}
	if cfg.Dashboard.CounterDuration == "" {
		cfg.Dashboard.CounterDuration = "1s"
	}
	if cfg.Dashboard.Title == "" {
		cfg.Dashboard.Title = "DNS Analytics Dashboard"
	}

	if cfg.Sessions.MaxSessions <= 0 {
		cfg.Sessions.MaxSessions = 64
	}
	if cfg.Sessions.IdleTimeout == "" {
		cfg.Sessions.IdleTimeout = "10m"
	}
	if cfg.Sessions.FrameInterval == "" {
		cfg.Sessions.FrameInterval = "100ms"
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "dnsdash.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.StructuredFormat == "" {
		cfg.Logging.StructuredFormat = "json"
	}
	if cfg.Logging.ExtraFields == nil {
		cfg.Logging.ExtraFields = map[string]string{}
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		cfg.Metrics.Path = "/" + cfg.Metrics.Path
	}

	return nil
}

// envBool parses common boolean spellings, returning def for anything else.
func envBool(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// EnvBool reads a boolean environment variable, returning def when unset or unparseable.
func EnvBool(key string, def bool) bool {
	return envBool(os.Getenv(key), def)
}

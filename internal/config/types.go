package config

import (
	"slices"
	"strconv"
	"time"
)

// RefreshIntervals is the set of auto-refresh intervals a viewer may pick, in seconds.
var RefreshIntervals = []int{5, 10, 30, 60, 300}

// ValidRefreshInterval reports whether seconds is one of RefreshIntervals.
func ValidRefreshInterval(seconds int) bool {
	return slices.Contains(RefreshIntervals, seconds)
}

// IntervalLabel returns the short label shown for a refresh interval (5s, 1m, ...).
func IntervalLabel(seconds int) string {
	if seconds >= 60 && seconds%60 == 0 {
		return strconv.Itoa(seconds/60) + "m"
	}
	return strconv.Itoa(seconds) + "s"
}

// ServerConfig contains the dashboard HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// BackendConfig describes the telemetry backend the dashboard polls.
type BackendConfig struct {
	URL       string `yaml:"url" json:"url"`
	Timeout   string `yaml:"timeout" json:"timeout"` // e.g. "10s"
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// TimeoutDuration parses Timeout, falling back to 10s.
func (b BackendConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(b.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// DashboardConfig holds the initial per-viewer dashboard settings.
type DashboardConfig struct {
	AutoRefresh            bool   `yaml:"auto_refresh" json:"auto_refresh"`
	RefreshIntervalSeconds int    `yaml:"refresh_interval_seconds" json:"refresh_interval_seconds"`
	CounterDuration        string `yaml:"counter_duration" json:"counter_duration"`
	Title                  string `yaml:"title" json:"title"`
}

// CounterDurationValue parses CounterDuration, falling back to one second.
func (d DashboardConfig) CounterDurationValue() time.Duration {
	v, err := time.ParseDuration(d.CounterDuration)
	if err != nil || v <= 0 {
		return time.Second
	}
	return v
}

// SessionsConfig bounds the number and lifetime of viewer sessions.
type SessionsConfig struct {
	MaxSessions   int    `yaml:"max_sessions" json:"max_sessions"`
	IdleTimeout   string `yaml:"idle_timeout" json:"idle_timeout"`
	FrameInterval string `yaml:"frame_interval" json:"frame_interval"`
}

// IdleTimeoutDuration parses IdleTimeout, falling back to 10 minutes.
func (s SessionsConfig) IdleTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.IdleTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// FrameIntervalDuration parses FrameInterval, falling back to 100ms.
func (s SessionsConfig) FrameIntervalDuration() time.Duration {
	d, err := time.ParseDuration(s.FrameInterval)
	if err != nil || d <= 0 {
		return 100 * time.Millisecond
	}
	return d
}

// DatabaseConfig points at the SQLite file used for viewer preferences.
type DatabaseConfig struct {
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level            string            `yaml:"level" json:"level"`
	Structured       bool              `yaml:"structured" json:"structured"`
	StructuredFormat string            `yaml:"structured_format" json:"structured_format"`
	IncludePID       bool              `yaml:"include_pid" json:"include_pid"`
	ExtraFields      map[string]string `yaml:"extra_fields" json:"extra_fields,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// APIConfig contains API protection settings.
//
// Note: APIKey is treated as a secret and is never returned by API endpoints.
type APIConfig struct {
	APIKey string `yaml:"api_key" json:"api_key,omitempty"`
}

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Backend   BackendConfig   `yaml:"backend" json:"backend"`
	Dashboard DashboardConfig `yaml:"dashboard" json:"dashboard"`
	Sessions  SessionsConfig  `yaml:"sessions" json:"sessions"`
	Database  DatabaseConfig  `yaml:"database" json:"database"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
	API       APIConfig       `yaml:"api" json:"api"`
}

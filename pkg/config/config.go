package config

import (
	"fmt"
	"time"

	"mercator-hq/erasure/pkg/deletion"
)

// Config is the root configuration structure for the erasure service.
type Config struct {
	// Deletion configures batch windowing and the run schedule.
	Deletion DeletionConfig `yaml:"deletion"`

	// Storage selects and configures the batch store.
	Storage StorageConfig `yaml:"storage"`

	// Elite2 configures the system of record client.
	Elite2 Elite2Config `yaml:"elite2"`

	// Secrets configures where credentials are resolved from.
	Secrets SecretsConfig `yaml:"secrets"`

	// Server configures the admin HTTP API.
	Server ServerConfig `yaml:"server"`

	// Telemetry configures logging, metrics and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DeletionConfig contains batch windowing configuration.
type DeletionConfig struct {
	// InitialWindowStart is the RFC3339 start of the first window.
	// Required.
	InitialWindowStart string `yaml:"initial_window_start"`

	// WindowLength is the width of every window. Required, must be
	// positive.
	WindowLength time.Duration `yaml:"window_length"`

	// Schedule is a five-field cron expression for `erasure serve`.
	// Empty disables scheduled runs.
	// Default: "0 2 * * *"
	Schedule string `yaml:"schedule"`

	// LockKey is the PostgreSQL advisory lock key serializing runs.
	// Default: 7242351
	LockKey int64 `yaml:"lock_key"`

	// MaxPendingAge is how long the latest batch may wait for its
	// completion report before readiness fails. Zero disables the check.
	// Default: 48h
	MaxPendingAge time.Duration `yaml:"max_pending_age"`
}

// StorageConfig contains batch storage configuration.
type StorageConfig struct {
	// Backend is one of "memory", "sqlite" or "postgres".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/erasure.db"
	Path string `yaml:"path"`

	// Driver is "sqlite3" (cgo) or "sqlite" (pure Go).
	// Default: "sqlite3"
	Driver string `yaml:"driver"`

	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`

	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// PostgresConfig contains PostgreSQL-specific configuration.
type PostgresConfig struct {
	// URL is the connection string. Required for the postgres backend.
	URL string `yaml:"url"`

	// MaxConns caps the pool size.
	// Default: 4
	MaxConns int32 `yaml:"max_conns"`
}

// Elite2Config configures the system of record client.
type Elite2Config struct {
	// BaseURL is the system of record's root URL. Required by commands
	// that send deletion requests.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each request.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// TokenSecret names the secret holding the bearer token. Empty sends
	// unauthenticated requests.
	TokenSecret string `yaml:"token_secret"`
}

// SecretsConfig configures secret providers.
type SecretsConfig struct {
	// EnvPrefix namespaces secret environment variables.
	// Default: "ERASURE_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// FileDir is a directory holding one file per secret. Empty disables
	// the file provider.
	FileDir string `yaml:"file_dir"`

	// Watch reloads secrets when files in FileDir change.
	Watch bool `yaml:"watch"`

	// CacheTTL is how long resolved secrets are cached. Zero disables the
	// cache.
	// Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// ServerConfig configures the admin HTTP API.
type ServerConfig struct {
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown, including a run in flight.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// CORSAllowedOrigins lists browser origins allowed to call the API.
	// Empty disables CORS.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "erasure"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled exports spans over OTLP/gRPC.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP collector address.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// Sampler is one of "always", "never" or "ratio".
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is used when Sampler is "ratio".
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Default: "erasure"
	ServiceName string `yaml:"service_name"`
}

// WindowConfig returns the scheduler's window configuration.
func (c *Config) WindowConfig() (deletion.WindowConfig, error) {
	start, err := time.Parse(time.RFC3339, c.Deletion.InitialWindowStart)
	if err != nil {
		return deletion.WindowConfig{}, fmt.Errorf("invalid deletion.initial_window_start: %w", err)
	}
	return deletion.WindowConfig{
		InitialWindowStart: start.UTC(),
		WindowLength:       c.Deletion.WindowLength,
	}, nil
}

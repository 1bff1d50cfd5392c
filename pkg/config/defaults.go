package config

import "time"

// Default values for configuration fields.
const (
	// Deletion defaults
	DefaultSchedule      = "0 2 * * *"
	DefaultLockKey       = int64(7242351)
	DefaultMaxPendingAge = 48 * time.Hour

	// Storage defaults
	DefaultStorageBackend     = "sqlite"
	DefaultSQLitePath         = "data/erasure.db"
	DefaultSQLiteDriver       = "sqlite3"
	DefaultSQLiteMaxOpenConns = 4
	DefaultSQLiteBusyTimeout  = 5 * time.Second
	DefaultPostgresMaxConns   = int32(4)

	// Elite2 and secrets defaults
	DefaultElite2Timeout    = 30 * time.Second
	DefaultSecretsEnvPrefix = "ERASURE_SECRET_"
	DefaultSecretsCacheTTL  = 5 * time.Minute

	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "erasure"
	DefaultTracingTimeout   = 10 * time.Second
	DefaultTracingSampler   = "always"
	DefaultTracingRatio     = 1.0
	DefaultServiceName      = "erasure"
)

// NewDefaultConfig returns a configuration with every default applied.
// InitialWindowStart is left empty and must still be provided.
func NewDefaultConfig() *Config {
	cfg := &Config{
		Deletion:  DeletionConfig{Schedule: DefaultSchedule, MaxPendingAge: DefaultMaxPendingAge},
		Storage:   StorageConfig{SQLite: SQLiteConfig{WALMode: true}},
		Secrets:   SecretsConfig{CacheTTL: DefaultSecretsCacheTTL},
		Telemetry: TelemetryConfig{Metrics: MetricsConfig{Enabled: true}},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
//
// Fields whose zero value is meaningful (wal_mode, metrics.enabled, an empty
// schedule, zero durations that disable a feature) are only defaulted by
// NewDefaultConfig, which the loader decodes the file on top of.
func ApplyDefaults(cfg *Config) {
	d := &cfg.Deletion
	if d.LockKey == 0 {
		d.LockKey = DefaultLockKey
	}

	s := &cfg.Storage
	if s.Backend == "" {
		s.Backend = DefaultStorageBackend
	}
	if s.SQLite.Path == "" {
		s.SQLite.Path = DefaultSQLitePath
	}
	if s.SQLite.Driver == "" {
		s.SQLite.Driver = DefaultSQLiteDriver
	}
	if s.SQLite.MaxOpenConns == 0 {
		s.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if s.SQLite.BusyTimeout == 0 {
		s.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if s.Postgres.MaxConns == 0 {
		s.Postgres.MaxConns = DefaultPostgresMaxConns
	}

	if cfg.Elite2.Timeout == 0 {
		cfg.Elite2.Timeout = DefaultElite2Timeout
	}

	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}

	srv := &cfg.Server
	if srv.ListenAddress == "" {
		srv.ListenAddress = DefaultListenAddress
	}
	if srv.ReadTimeout == 0 {
		srv.ReadTimeout = DefaultReadTimeout
	}
	if srv.WriteTimeout == 0 {
		srv.WriteTimeout = DefaultWriteTimeout
	}
	if srv.IdleTimeout == 0 {
		srv.IdleTimeout = DefaultIdleTimeout
	}
	if srv.ShutdownTimeout == 0 {
		srv.ShutdownTimeout = DefaultShutdownTimeout
	}

	tel := &cfg.Telemetry
	if tel.Logging.Level == "" {
		tel.Logging.Level = DefaultLogLevel
	}
	if tel.Logging.Format == "" {
		tel.Logging.Format = DefaultLogFormat
	}
	if tel.Metrics.Path == "" {
		tel.Metrics.Path = DefaultMetricsPath
	}
	if tel.Metrics.Namespace == "" {
		tel.Metrics.Namespace = DefaultMetricsNamespace
	}
	if tel.Tracing.Timeout == 0 {
		tel.Tracing.Timeout = DefaultTracingTimeout
	}
	if tel.Tracing.Sampler == "" {
		tel.Tracing.Sampler = DefaultTracingSampler
	}
	if tel.Tracing.SampleRatio == 0 && tel.Tracing.Sampler == DefaultTracingSampler {
		tel.Tracing.SampleRatio = DefaultTracingRatio
	}
	if tel.Tracing.ServiceName == "" {
		tel.Tracing.ServiceName = DefaultServiceName
	}
}

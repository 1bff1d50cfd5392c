package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults and
// validates the result. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	cfg, err := readConfig(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides (ERASURE_SECTION_FIELD). Environment
// variables take precedence over the file. An empty path starts from the
// defaults alone.
//
// The loading sequence is:
// 1. Start from default values
// 2. Decode YAML from file on top
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	if path != "" {
		var err error
		if cfg, err = readConfig(path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func readConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := NewDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// applyEnvOverrides applies ERASURE_* environment variables. Malformed
// values are reported rather than silently ignored.
func applyEnvOverrides(cfg *Config) error {
	o := envOverrides{}

	o.str("ERASURE_DELETION_INITIAL_WINDOW_START", &cfg.Deletion.InitialWindowStart)
	o.duration("ERASURE_DELETION_WINDOW_LENGTH", &cfg.Deletion.WindowLength)
	o.str("ERASURE_DELETION_SCHEDULE", &cfg.Deletion.Schedule)
	o.int64("ERASURE_DELETION_LOCK_KEY", &cfg.Deletion.LockKey)
	o.duration("ERASURE_DELETION_MAX_PENDING_AGE", &cfg.Deletion.MaxPendingAge)

	o.str("ERASURE_STORAGE_BACKEND", &cfg.Storage.Backend)
	o.str("ERASURE_STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	o.str("ERASURE_STORAGE_SQLITE_DRIVER", &cfg.Storage.SQLite.Driver)
	o.boolean("ERASURE_STORAGE_SQLITE_WAL_MODE", &cfg.Storage.SQLite.WALMode)
	o.str("ERASURE_STORAGE_POSTGRES_URL", &cfg.Storage.Postgres.URL)
	if val, ok := os.LookupEnv("ERASURE_STORAGE_POSTGRES_MAX_CONNS"); ok {
		n, err := strconv.ParseInt(val, 10, 32)
		if err != nil {
			o.fail("ERASURE_STORAGE_POSTGRES_MAX_CONNS", err)
		} else {
			cfg.Storage.Postgres.MaxConns = int32(n)
		}
	}

	o.str("ERASURE_ELITE2_BASE_URL", &cfg.Elite2.BaseURL)
	o.duration("ERASURE_ELITE2_TIMEOUT", &cfg.Elite2.Timeout)
	o.str("ERASURE_ELITE2_TOKEN_SECRET", &cfg.Elite2.TokenSecret)

	o.str("ERASURE_SECRETS_FILE_DIR", &cfg.Secrets.FileDir)
	o.boolean("ERASURE_SECRETS_WATCH", &cfg.Secrets.Watch)

	o.str("ERASURE_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	o.duration("ERASURE_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	o.str("ERASURE_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	o.str("ERASURE_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	o.boolean("ERASURE_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	o.boolean("ERASURE_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	o.str("ERASURE_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)

	if len(o.errs) > 0 {
		return ValidationError{Errors: o.errs}
	}
	return nil
}

// envOverrides collects parse failures while applying overrides.
type envOverrides struct {
	errs []FieldError
}

func (o *envOverrides) fail(name string, err error) {
	o.errs = append(o.errs, FieldError{Field: name, Message: err.Error()})
}

func (o *envOverrides) str(name string, dst *string) {
	if val, ok := os.LookupEnv(name); ok && val != "" {
		*dst = val
	}
}

func (o *envOverrides) duration(name string, dst *time.Duration) {
	if val, ok := os.LookupEnv(name); ok && val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			o.fail(name, err)
			return
		}
		*dst = d
	}
}

func (o *envOverrides) int64(name string, dst *int64) {
	if val, ok := os.LookupEnv(name); ok && val != "" {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			o.fail(name, err)
			return
		}
		*dst = n
	}
}

func (o *envOverrides) boolean(name string, dst *bool) {
	if val, ok := os.LookupEnv(name); ok && val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			o.fail(name, err)
			return
		}
		*dst = b
	}
}

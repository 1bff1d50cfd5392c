// Package config provides configuration management for the erasure service.
//
// Configuration is read from a YAML file, completed with defaults and then
// overridden by environment variables before validation:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("erasure.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention ERASURE_SECTION_FIELD.
// For example:
//
//   - ERASURE_DELETION_WINDOW_LENGTH overrides deletion.window_length
//   - ERASURE_STORAGE_POSTGRES_URL overrides storage.postgres.url
//   - ERASURE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Singleton Pattern
//
// The CLI loads once per command and publishes the result; `erasure serve`
// re-reads the file on SIGHUP with ReloadConfig.
//
//	config.SetConfig(cfg)
//	cfg = config.GetConfig()
//
// # Example Configuration
//
//	deletion:
//	  initial_window_start: "2020-01-02T03:04:05Z"
//	  window_length: 24h
//	  schedule: "0 2 * * *"
//
//	storage:
//	  backend: postgres
//	  postgres:
//	    url: postgres://erasure@db:5432/erasure
//
//	elite2:
//	  base_url: https://elite2.example.org
//	  token_secret: elite2-token
//
//	secrets:
//	  file_dir: /var/run/secrets/erasure
//	  watch: true
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: otel-collector:4317
//	    insecure: true
package config

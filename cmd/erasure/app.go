package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/erasure/pkg/cli"
	"mercator-hq/erasure/pkg/config"
	"mercator-hq/erasure/pkg/deletion"
	"mercator-hq/erasure/pkg/deletion/scheduler"
	"mercator-hq/erasure/pkg/deletion/storage"
	"mercator-hq/erasure/pkg/elite2"
	"mercator-hq/erasure/pkg/secrets"
	"mercator-hq/erasure/pkg/telemetry/tracing"
)

// tracerShutdownTimeout bounds the final span flush on exit.
const tracerShutdownTimeout = 5 * time.Second

// app holds the components shared by the subcommands.
type app struct {
	cfg     *config.Config
	store   deletion.Storage
	locker  scheduler.Locker
	closers []func() error
}

// openApp opens the configured batch store. PostgreSQL deployments also
// get an advisory lock so runs from several replicas never overlap.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	switch cfg.Storage.Backend {
	case "memory":
		a.store = storage.NewMemoryStorage()
		a.locker = &scheduler.LocalLocker{}
	case "sqlite":
		s, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
			Path:         cfg.Storage.SQLite.Path,
			Driver:       cfg.Storage.SQLite.Driver,
			MaxOpenConns: cfg.Storage.SQLite.MaxOpenConns,
			WALMode:      cfg.Storage.SQLite.WALMode,
			BusyTimeout:  cfg.Storage.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storage: %w", err)
		}
		a.store = s
		a.locker = &scheduler.LocalLocker{}
	case "postgres":
		s, err := storage.NewPostgresStorage(ctx, &storage.PostgresConfig{
			URL:      cfg.Storage.Postgres.URL,
			MaxConns: cfg.Storage.Postgres.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storage: %w", err)
		}
		a.store = s
		a.locker = s.RunLocker(cfg.Deletion.LockKey)
	default:
		return nil, cli.NewConfigError("storage.backend", fmt.Sprintf("unsupported backend %q", cfg.Storage.Backend))
	}
	a.closers = append(a.closers, a.store.Close)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to start tracing: %w", err)
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), tracerShutdownTimeout)
		defer cancel()
		return tracer.Shutdown(ctx)
	})

	slog.Debug("batch store opened", "backend", cfg.Storage.Backend)
	return a, nil
}

// secretsManager builds the secrets manager: environment first, then the
// secrets directory when configured.
func (a *app) secretsManager() (*secrets.Manager, error) {
	providers := []secrets.Provider{secrets.NewEnvProvider(a.cfg.Secrets.EnvPrefix)}

	if dir := a.cfg.Secrets.FileDir; dir != "" {
		fp, err := secrets.NewFileProvider(dir, a.cfg.Secrets.Watch)
		if err != nil {
			return nil, fmt.Errorf("failed to open secrets directory: %w", err)
		}
		a.closers = append(a.closers, fp.Close)
		providers = append(providers, fp)
	}

	return secrets.NewManager(providers, secrets.CacheConfig{
		Enabled: a.cfg.Secrets.CacheTTL > 0,
		TTL:     a.cfg.Secrets.CacheTTL,
	}), nil
}

// requester builds the system of record client. The returned token source
// is nil when no token secret is configured.
func (a *app) requester() (*elite2.Client, elite2.TokenSource, error) {
	if a.cfg.Elite2.BaseURL == "" {
		return nil, nil, cli.NewConfigError("elite2.base_url", "required to request deletions")
	}

	var token elite2.TokenSource
	if name := a.cfg.Elite2.TokenSecret; name != "" {
		sm, err := a.secretsManager()
		if err != nil {
			return nil, nil, err
		}
		token = sm.TokenSource(name)
	}

	client, err := elite2.NewClient(elite2.Config{
		BaseURL:             a.cfg.Elite2.BaseURL,
		Timeout:             a.cfg.Elite2.Timeout,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
	}, token)
	if err != nil {
		return nil, nil, cli.NewConfigError("elite2.base_url", err.Error())
	}
	return client, token, nil
}

// scheduler builds a Scheduler over store, or the app's store when nil.
func (a *app) scheduler(clock deletion.Clock, store deletion.BatchStore, requester deletion.Requester) (*scheduler.Scheduler, error) {
	windows, err := a.cfg.WindowConfig()
	if err != nil {
		return nil, cli.NewConfigError("deletion.initial_window_start", err.Error())
	}
	if store == nil {
		store = a.store
	}
	return scheduler.New(clock, windows, store, requester), nil
}

// Close releases everything the app opened, most recent first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

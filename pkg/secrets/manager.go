package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Manager resolves secrets from providers in priority order and caches the
// result.
type Manager struct {
	providers []Provider
	cache     *Cache
	logger    *slog.Logger
}

// NewManager creates a Manager. File providers are hooked so that a change
// on disk also clears the Manager's cache.
func NewManager(providers []Provider, cacheConfig CacheConfig) *Manager {
	m := &Manager{
		providers: providers,
		cache:     NewCache(cacheConfig),
		logger:    slog.Default().With("component", "secrets.manager"),
	}
	for _, p := range providers {
		if fp, ok := p.(*FileProvider); ok {
			fp.OnChange(m.cache.Clear)
		}
	}
	return m
}

// GetSecret returns the value from the first provider that has it.
func (m *Manager) GetSecret(ctx context.Context, name string) (string, error) {
	if value, ok := m.cache.Get(name); ok {
		return value, nil
	}

	var errs []error
	for _, p := range m.providers {
		value, err := p.GetSecret(ctx, name)
		if err != nil {
			m.logger.Debug("provider could not resolve secret",
				"provider", p.Name(),
				"name", redactSecretName(name),
				"error", err,
			)
			errs = append(errs, err)
			continue
		}

		m.cache.Set(name, value)
		return value, nil
	}

	if len(errs) == 0 {
		return "", fmt.Errorf("%w: %q (no providers configured)", ErrNotFound, name)
	}
	return "", fmt.Errorf("failed to get secret %q: %w", name, errors.Join(errs...))
}

// Refresh refreshes every refreshable provider and clears the cache.
func (m *Manager) Refresh(ctx context.Context) error {
	var errs []error
	for _, p := range m.providers {
		if r, ok := p.(RefreshableProvider); ok {
			if err := r.Refresh(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			}
		}
	}
	m.cache.Clear()
	return errors.Join(errs...)
}

// TokenSource returns a function that resolves the named secret on each call.
func (m *Manager) TokenSource(name string) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return m.GetSecret(ctx, name)
	}
}

func redactSecretName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}

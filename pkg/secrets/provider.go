// Package secrets resolves credentials, such as the system of record's
// bearer token, from the environment or from mounted secret files.
package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is wrapped by providers when a secret does not exist.
var ErrNotFound = errors.New("secret not found")

// Provider retrieves secrets from one backend.
type Provider interface {
	// GetSecret retrieves a secret by name.
	GetSecret(ctx context.Context, name string) (string, error)

	// Name returns the provider name ("env", "file").
	Name() string
}

// RefreshableProvider can drop cached values so the next read sees a
// rotated secret.
type RefreshableProvider interface {
	Provider

	// Refresh discards any cached values.
	Refresh(ctx context.Context) error
}

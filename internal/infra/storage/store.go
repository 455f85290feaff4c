// Package storage defines the durable key-value store used by the response
// cache, and hosts its backends:
//
//   - memory   - process-local map, the default and the test fake
//   - postgres - table-backed store (pgx driver, goose migrations)
//   - sqlite   - single-file embedded store
//
// The redis backend lives in infra/redis next to the client it shares.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// KeyValueStore is a string-keyed, string-valued persistent store.
type KeyValueStore interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set creates or overwrites key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists every key starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases the backend's resources.
	Close() error
}

// HealthChecker is implemented by backends that can report reachability.
type HealthChecker interface {
	Health(ctx context.Context) error
}

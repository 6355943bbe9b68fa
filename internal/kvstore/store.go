// Package kvstore defines the keyed persistence contract the attendance core
// depends on. Keys are hierarchical strings such as "students/1" or
// "attendance/2024-01-15/1"; the concrete storage technology stays behind
// this interface.
package kvstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key has no value.
	ErrNotFound = errors.New("key not found")

	// ErrUnavailable wraps storage backend failures (connection refused,
	// query errors). Callers treat it as a signal to degrade, not to abort.
	ErrUnavailable = errors.New("store unavailable")
)

// Store is keyed get/set/delete with conditional-write semantics.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes the value for key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// SetIfAbsent writes the value only when the key has no value yet.
	// Returns true when this call created the entry.
	SetIfAbsent(ctx context.Context, key, value string) (bool, error)

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns all key/value pairs whose key starts with prefix.
	List(ctx context.Context, prefix string) (map[string]string, error)
}

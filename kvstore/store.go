// Package kvstore defines the persistence contract the index core consumes.
//
// The core never implements a storage engine itself; it is handed a
// Provider and opens one Store per named dataset (documents, bitmaps,
// hashes, ...). Backends live in subpackages (badgerkv, miniokv, dynamokv);
// Memory is the in-process default and the test double.
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key does not exist in a dataset.
//
// Implementations must return an error that satisfies
// `errors.Is(err, ErrNotFound)`.
var ErrNotFound = errors.New("key not found")

// Store is a keyed byte store scoped to one named dataset.
//
// Values are opaque blobs; encoding is the caller's concern. All methods
// may touch the network on remote backends and therefore take a context.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, overwriting any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// GetMany returns the values for all keys that exist.
	// Missing keys are skipped, not errors.
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// ListKeys returns every key in the dataset.
	ListKeys(ctx context.Context) ([]string, error)

	// ListValues returns every value in the dataset.
	ListValues(ctx context.Context) ([][]byte, error)

	// KeysCount returns the number of keys in the dataset.
	KeysCount(ctx context.Context) (int, error)
}

// Provider opens named datasets. Opening the same name twice must yield
// stores over the same underlying data.
type Provider interface {
	Dataset(name string) Store
}

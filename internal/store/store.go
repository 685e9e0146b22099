// Package store defines the key-value storage contract that session,
// message and artifact records live behind, along with its Redis and
// in-memory implementations.
//
// The contract is deliberately small: point reads and writes, prefix
// listing, and one atomic counter primitive. The counter is the only
// piece of shared mutable state in the whole system — per-(session, role)
// message sequence numbers are allocated through it and must never be
// cached in process memory, because multiple server instances may share
// one store.
package store

import (
	"context"
	"errors"
)

// Sentinel errors for store operations. Callers check them with errors.Is().
var (
	// ErrNotFound indicates the requested key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrUnavailable indicates the backing store could not be reached.
	// It is transient; retry policy belongs to the caller, not here.
	ErrUnavailable = errors.New("store unavailable")
)

// KV is the storage interface the rest of ravel programs against.
//
// Interfaces are defined by the consumer: KV lives here because the
// record layers (session, artifact) consume it, while the Redis and
// memory implementations below provide it.
type KV interface {
	// AtomicIncrement increments the counter at key by one and returns
	// the new value. The first increment of a fresh key returns 1.
	// Increments for the same key are totally ordered; no two callers
	// ever observe the same value.
	AtomicIncrement(ctx context.Context, key string) (int64, error)

	// Put stores value under key, overwriting any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns all keys beginning with prefix, in no particular order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

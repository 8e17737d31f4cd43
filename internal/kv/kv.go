// Package kv defines the durable key-value backing store shared by every
// collection. A store maps string keys to serialized JSON values, survives
// process restarts (driver permitting), and notifies subscribers of changes
// performed by *other* execution contexts — the writer itself is never
// notified of its own writes.
package kv

import "context"

// Change describes an externally-observed write. Present is false when the key
// was removed.
type Change struct {
	Key     string
	Value   string
	Present bool
}

// Store is the backing store contract. Set and Remove are best-effort with
// respect to durability: callers keep serving from memory when persistence
// fails and treat the returned error as a recoverable warning.
type Store interface {
	// Get returns the stored value and whether the key is present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set persists value under key. Driver failures are wrapped in
	// domain.ErrStorageUnavailable.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Subscribe registers fn for changes to key made by other execution
	// contexts. The returned cancel stops further delivery.
	Subscribe(key string, fn func(Change)) (cancel func())
	// Close releases driver resources and stops change delivery.
	Close() error
}

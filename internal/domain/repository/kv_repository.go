package repository

import (
	"context"
	"encoding/json"
)

// KVStore persists JSON values by key with a store-wide time-to-live.
// Implementations serialize every call behind one exclusive lock.
type KVStore interface {
	// Get returns (nil, false, nil) for missing, expired or unreadable entries.
	// Only lock failures are reported as errors.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	// Cleanup purges expired entries and reports how many were removed.
	Cleanup(ctx context.Context) (int64, error)
	// Keys lists the live keys in sorted order.
	Keys(ctx context.Context) ([]string, error)
}

// GetJSON decodes the value stored under key into T. A value that does not
// decode into T is treated like a miss.
func GetJSON[T any](ctx context.Context, store KVStore, key string) (T, bool, error) {
	var out T
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return out, false, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		var zero T
		return zero, false, nil
	}
	return out, true, nil
}

package storage

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"channelwatch/internal/domain/repository"
)

type memoryEntry struct {
	storedAt time.Time
	data     json.RawMessage
}

// MemoryStore is a process-local KVStore for tests and one-shot runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration, opts ...Option) *MemoryStore {
	o := applyOptions(opts)
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     o.now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok || isExpired(entry.storedAt, m.now(), m.ttl) {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), entry.data...), true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &repository.StorageError{Op: "set", Key: key, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{storedAt: m.now(), data: data}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) Cleanup(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var removed int64
	for key, entry := range m.entries {
		if isExpired(entry.storedAt, now, m.ttl) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	keys := make([]string, 0, len(m.entries))
	for key, entry := range m.entries {
		if !isExpired(entry.storedAt, now, m.ttl) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

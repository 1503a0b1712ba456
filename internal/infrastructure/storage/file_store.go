package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"channelwatch/internal/domain/repository"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	lockRetryDelay  = 50 * time.Millisecond
)

var errCorrupt = errors.New("corrupt store file")

type fileEntry struct {
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// FileStore keeps the whole map in one JSON file and rewrites it on every
// mutation. A torn write only corrupts the next read, which degrades to a
// cache miss.
//
// The in-process mutex serializes goroutines; the lock file serializes
// processes sharing the same data directory.
type FileStore struct {
	path        string
	ttl         time.Duration
	lockTimeout time.Duration
	now         func() time.Time

	mu   sync.Mutex
	lock *flock.Flock
}

func NewFileStore(path string, ttl time.Duration, opts ...Option) (*FileStore, error) {
	o := applyOptions(opts)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{
		path:        path,
		ttl:         ttl,
		lockTimeout: o.lockTimeout,
		now:         o.now,
		lock:        flock.New(path + ".lock"),
	}, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var out json.RawMessage
	var found bool
	err := s.withLock(ctx, "get", key, func() error {
		entries, err := s.load()
		if err != nil {
			return nil
		}
		entry, ok := entries[key]
		if !ok || s.expired(entry) {
			return nil
		}
		out = append(json.RawMessage(nil), entry.Data...)
		found = true
		return nil
	})
	return out, found, err
}

func (s *FileStore) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &repository.StorageError{Op: "set", Key: key, Err: err}
	}

	return s.withLock(ctx, "set", key, func() error {
		entries, err := s.load()
		if err != nil && !errors.Is(err, errCorrupt) {
			return &repository.StorageError{Op: "set", Key: key, Err: err}
		}
		entries[key] = fileEntry{
			Timestamp: s.now().In(time.Local).Format(timestampLayout),
			Data:      data,
		}
		if err := s.save(entries); err != nil {
			return &repository.StorageError{Op: "set", Key: key, Err: err}
		}
		return nil
	})
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	return s.withLock(ctx, "delete", key, func() error {
		entries, err := s.load()
		if err != nil {
			return nil
		}
		if _, ok := entries[key]; !ok {
			return nil
		}
		delete(entries, key)
		if err := s.save(entries); err != nil {
			return &repository.StorageError{Op: "delete", Key: key, Err: err}
		}
		return nil
	})
}

func (s *FileStore) Cleanup(ctx context.Context) (int64, error) {
	var removed int64
	err := s.withLock(ctx, "cleanup", "", func() error {
		entries, err := s.load()
		if err != nil {
			return nil
		}
		for key, entry := range entries {
			if s.expired(entry) {
				delete(entries, key)
				removed++
			}
		}
		if removed == 0 {
			return nil
		}
		if err := s.save(entries); err != nil {
			return &repository.StorageError{Op: "cleanup", Err: err}
		}
		return nil
	})
	return removed, err
}

func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.withLock(ctx, "keys", "", func() error {
		entries, err := s.load()
		if err != nil {
			return nil
		}
		for key, entry := range entries {
			if !s.expired(entry) {
				keys = append(keys, key)
			}
		}
		return nil
	})
	sort.Strings(keys)
	return keys, err
}

func (s *FileStore) withLock(ctx context.Context, op, key string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	locked, err := s.lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil || !locked {
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			err = repository.ErrLockTimeout
		}
		return &repository.StorageError{Op: op, Key: key, Err: err}
	}
	defer s.lock.Unlock()

	return fn()
}

// load never fails on a missing file. A file that does not parse yields an
// empty map together with errCorrupt.
func (s *FileStore) load() (map[string]fileEntry, error) {
	entries := make(map[string]fileEntry)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return entries, fmt.Errorf("failed to read store file: %w", err)
	}

	if err := json.Unmarshal(data, &entries); err != nil {
		return make(map[string]fileEntry), errCorrupt
	}
	return entries, nil
}

func (s *FileStore) save(entries map[string]fileEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

// expired treats a missing or unparsable timestamp as expired. Timestamps
// carry whole seconds, so now is truncated the same way before comparing.
func (s *FileStore) expired(entry fileEntry) bool {
	if entry.Timestamp == "" {
		return true
	}
	storedAt, err := time.ParseInLocation(timestampLayout, entry.Timestamp, time.Local)
	if err != nil {
		return true
	}
	return isExpired(storedAt, s.now().Truncate(time.Second), s.ttl)
}

package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"channelwatch/internal/domain/repository"
)

// BoltDB wraps one bbolt file. bbolt holds an exclusive file lock for the
// lifetime of the handle, so a second process fails to open within timeout.
type BoltDB struct {
	db *bolt.DB
}

func OpenBolt(path string, timeout time.Duration) (*BoltDB, error) {
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			err = repository.ErrLockTimeout
		}
		return nil, &repository.StorageError{Op: "open", Key: path, Err: err}
	}
	return &BoltDB{db: db}, nil
}

func (b *BoltDB) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Store returns a KVStore backed by its own bucket.
func (b *BoltDB) Store(bucket string, ttl time.Duration, opts ...Option) (*BoltStore, error) {
	name := []byte(bucket)
	if err := b.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(name)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}

	o := applyOptions(opts)
	return &BoltStore{db: b.db, bucket: name, ttl: ttl, now: o.now}, nil
}

// BoltStore values are laid out as 8 bytes big endian stored-at unix nanos
// followed by the JSON document.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
	ttl    time.Duration
	now    func() time.Time
	mu     sync.Mutex
}

func (s *BoltStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out json.RawMessage
	if err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v == nil || s.expired(v) {
			return nil
		}
		out = append(json.RawMessage(nil), v[8:]...)
		return nil
	}); err != nil {
		return nil, false, &repository.StorageError{Op: "get", Key: key, Err: err}
	}

	if out == nil || !json.Valid(out) {
		return nil, false, nil
	}
	return out, true, nil
}

func (s *BoltStore) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &repository.StorageError{Op: "set", Key: key, Err: err}
	}

	buf := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(buf[:8], uint64(s.now().UnixNano()))
	copy(buf[8:], data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), buf)
	}); err != nil {
		return &repository.StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (s *BoltStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	}); err != nil {
		return &repository.StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

func (s *BoltStore) Cleanup(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var stale [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			if s.expired(v) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, &repository.StorageError{Op: "cleanup", Err: err}
	}
	return removed, nil
}

func (s *BoltStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			if !s.expired(v) {
				keys = append(keys, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, &repository.StorageError{Op: "keys", Err: err}
	}
	sort.Strings(keys)
	return keys, nil
}

// expired also rejects values too short to carry the header.
func (s *BoltStore) expired(v []byte) bool {
	if len(v) < 8 {
		return true
	}
	storedAt := time.Unix(0, int64(binary.BigEndian.Uint64(v[:8])))
	return isExpired(storedAt, s.now(), s.ttl)
}

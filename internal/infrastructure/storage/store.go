package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"channelwatch/internal/domain/repository"
)

const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
	DriverMemory = "memory"

	defaultLockTimeout = 10 * time.Second

	lookupNamespace = "lookup"
	stateNamespace  = "channel_states"
)

type Config struct {
	Driver      string
	Dir         string
	LookupTTL   time.Duration
	LockTimeout time.Duration
}

type options struct {
	now         func() time.Time
	lockTimeout time.Duration
}

type Option func(*options)

// WithClock replaces time.Now for expiry checks and timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLockTimeout bounds how long an operation waits for the store lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now, lockTimeout: defaultLockTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// isExpired applies the store TTL rule: ttl == 0 never expires.
func isExpired(storedAt, now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(storedAt) > ttl
}

// Backend holds the two stores the service needs: short-lived lookups
// (identifier resolution) and durable channel state.
type Backend struct {
	Lookup repository.KVStore
	State  repository.KVStore

	closer io.Closer
}

func (b *Backend) Close() error {
	if b == nil || b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

func Open(cfg Config, opts ...Option) (*Backend, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	if cfg.Driver != DriverMemory {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	opts = append([]Option{WithLockTimeout(cfg.LockTimeout)}, opts...)

	switch cfg.Driver {
	case DriverFile, "":
		lookup, err := NewFileStore(filepath.Join(dir, "lookup_cache.json"), cfg.LookupTTL, opts...)
		if err != nil {
			return nil, err
		}
		state, err := NewFileStore(filepath.Join(dir, "channel_states.json"), 0, opts...)
		if err != nil {
			return nil, err
		}
		return &Backend{Lookup: lookup, State: state}, nil

	case DriverSQLite:
		db, err := OpenSQLite(filepath.Join(dir, "channelwatch.db"))
		if err != nil {
			return nil, err
		}
		return &Backend{
			Lookup: db.Store(lookupNamespace, cfg.LookupTTL, opts...),
			State:  db.Store(stateNamespace, 0, opts...),
			closer: db,
		}, nil

	case DriverBolt:
		o := applyOptions(opts)
		db, err := OpenBolt(filepath.Join(dir, "channelwatch.bolt"), o.lockTimeout)
		if err != nil {
			return nil, err
		}
		lookup, err := db.Store(lookupNamespace, cfg.LookupTTL, opts...)
		if err != nil {
			db.Close()
			return nil, err
		}
		state, err := db.Store(stateNamespace, 0, opts...)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &Backend{Lookup: lookup, State: state, closer: db}, nil

	case DriverMemory:
		return &Backend{
			Lookup: NewMemoryStore(cfg.LookupTTL, opts...),
			State:  NewMemoryStore(0, opts...),
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}

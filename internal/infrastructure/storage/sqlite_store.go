package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"channelwatch/internal/domain/repository"

	_ "modernc.org/sqlite"
)

// SQLiteDB is one database file shared by several namespaced stores.
type SQLiteDB struct {
	db *sql.DB
}

func OpenSQLite(dbPath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	s := &SQLiteDB{db: db}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) initSchema(ctx context.Context) error {
	queries := []string{
		`PRAGMA busy_timeout = 10000`,
		`CREATE TABLE IF NOT EXISTS kv_entries (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			stored_at INTEGER NOT NULL,
			PRIMARY KEY (namespace, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_kv_entries_stored_at ON kv_entries(namespace, stored_at)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// Store returns a KVStore scoped to namespace.
func (s *SQLiteDB) Store(namespace string, ttl time.Duration, opts ...Option) *SQLiteStore {
	o := applyOptions(opts)
	return &SQLiteStore{
		db:        s.db,
		namespace: namespace,
		ttl:       ttl,
		timeout:   o.lockTimeout,
		now:       o.now,
	}
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

type SQLiteStore struct {
	db        *sql.DB
	namespace string
	ttl       time.Duration
	timeout   time.Duration
	now       func() time.Time
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var value string
	var storedAt int64
	err := s.db.QueryRowContext(
		ctx,
		"SELECT value, stored_at FROM kv_entries WHERE namespace = ? AND key = ?",
		s.namespace, key,
	).Scan(&value, &storedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.wrap("get", key, err)
	}

	if isExpired(time.Unix(0, storedAt), s.now(), s.ttl) || !json.Valid([]byte(value)) {
		return nil, false, nil
	}
	return json.RawMessage(value), true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &repository.StorageError{Op: "set", Key: key, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO kv_entries (namespace, key, value, stored_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, stored_at = excluded.stored_at`,
		s.namespace, key, string(data), s.now().UnixNano(),
	)
	if err != nil {
		return s.wrap("set", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM kv_entries WHERE namespace = ? AND key = ?",
		s.namespace, key,
	)
	if err != nil {
		return s.wrap("delete", key, err)
	}
	return nil
}

func (s *SQLiteStore) Cleanup(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cutoff := s.now().Add(-s.ttl).UnixNano()
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM kv_entries WHERE namespace = ? AND stored_at < ?",
		s.namespace, cutoff,
	)
	if err != nil {
		return 0, s.wrap("cleanup", "", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, s.wrap("cleanup", "", fmt.Errorf("failed to get rows affected: %w", err))
	}
	return deleted, nil
}

func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		"SELECT key, stored_at FROM kv_entries WHERE namespace = ?",
		s.namespace,
	)
	if err != nil {
		return nil, s.wrap("keys", "", err)
	}
	defer rows.Close()

	now := s.now()
	var keys []string
	for rows.Next() {
		var key string
		var storedAt int64
		if err := rows.Scan(&key, &storedAt); err != nil {
			return nil, s.wrap("keys", "", err)
		}
		if !isExpired(time.Unix(0, storedAt), now, s.ttl) {
			keys = append(keys, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("keys", "", err)
	}

	sort.Strings(keys)
	return keys, nil
}

func (s *SQLiteStore) wrap(op, key string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = repository.ErrLockTimeout
	}
	return &repository.StorageError{Op: op, Key: key, Err: err}
}

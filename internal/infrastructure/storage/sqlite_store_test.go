package storage

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func openTestSQLite(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})
	return db
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestSQLite(t).Store(stateNamespace, 0)

	_, ok, err := store.Get(ctx, "UC123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected miss on empty store")
	}

	if err := store.Set(ctx, "UC123", []string{"v2", "v1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Set(ctx, "UC123", []string{"v3", "v2", "v1"}); err != nil {
		t.Fatalf("unexpected error on overwrite: %v", err)
	}

	raw, ok, err := store.Get(ctx, "UC123")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(raw) != `["v3","v2","v1"]` {
		t.Errorf("unexpected value: %s", raw)
	}
}

func TestSQLiteStore_NamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := openTestSQLite(t)
	lookup := db.Store(lookupNamespace, time.Hour)
	state := db.Store(stateNamespace, 0)

	if err := lookup.Set(ctx, "shared", "lookup-value"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := state.Set(ctx, "shared", "state-value"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got1, _, _ := lookup.Get(ctx, "shared")
	got2, _, _ := state.Get(ctx, "shared")

	if string(got1) != `"lookup-value"` {
		t.Errorf("lookup: unexpected value %s", got1)
	}
	if string(got2) != `"state-value"` {
		t.Errorf("state: unexpected value %s", got2)
	}

	if err := state.Delete(ctx, "shared"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, _ := lookup.Get(ctx, "shared"); !ok {
		t.Error("delete in one namespace removed the other")
	}
}

func TestSQLiteStore_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := openTestSQLite(t).Store(lookupNamespace, time.Second, WithClock(clock.Now))

	_ = store.Set(ctx, "username_@creator", "UC123")
	clock.Advance(2 * time.Second)

	if _, ok, _ := store.Get(ctx, "username_@creator"); ok {
		t.Error("expected entry to be expired")
	}
	keys, _ := store.Keys(ctx)
	if len(keys) != 0 {
		t.Errorf("expected no live keys, got %v", keys)
	}
}

func TestSQLiteStore_Cleanup(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := openTestSQLite(t).Store(lookupNamespace, 24*time.Hour, WithClock(clock.Now))

	_ = store.Set(ctx, "old-1", 1)
	clock.Advance(23 * time.Hour)
	_ = store.Set(ctx, "old-2", 2)
	clock.Advance(2 * time.Hour)
	_ = store.Set(ctx, "new-1", 3)

	deleted, err := store.Cleanup(ctx)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}

	keys, _ := store.Keys(ctx)
	if !reflect.DeepEqual(keys, []string{"new-1", "old-2"}) {
		t.Errorf("unexpected keys after cleanup: %v", keys)
	}
}

func TestSQLiteStore_CleanupZeroTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := openTestSQLite(t).Store(stateNamespace, 0, WithClock(clock.Now))

	_ = store.Set(ctx, "UC123", []string{"v1"})
	clock.Advance(1000 * time.Hour)

	deleted, err := store.Cleanup(ctx)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("expected 0 deleted, got %d", deleted)
	}
}

func TestSQLiteStore_Persistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	db1, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db1.Store(stateNamespace, 0).Set(ctx, "UC123", []string{"v1"}); err != nil {
		t.Fatalf("failed to set: %v", err)
	}
	db1.Close()

	db2, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen database: %v", err)
	}
	defer db2.Close()

	raw, ok, err := db2.Store(stateNamespace, 0).Get(ctx, "UC123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || string(raw) != `["v1"]` {
		t.Errorf("expected persisted value, got ok=%v raw=%s", ok, raw)
	}
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := OpenSQLite("/nonexistent/path/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestSQLiteStore_FileCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "test.db")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}

	db, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type stubKV struct {
	raw json.RawMessage
	ok  bool
	err error
}

func (s *stubKV) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	return s.raw, s.ok, s.err
}
func (s *stubKV) Set(ctx context.Context, key string, value any) error { return nil }
func (s *stubKV) Delete(ctx context.Context, key string) error         { return nil }
func (s *stubKV) Cleanup(ctx context.Context) (int64, error)           { return 0, nil }
func (s *stubKV) Keys(ctx context.Context) ([]string, error)           { return nil, nil }

func TestGetJSON(t *testing.T) {
	ctx := context.Background()

	ids, ok, err := GetJSON[[]string](ctx, &stubKV{raw: json.RawMessage(`["v2","v1"]`), ok: true}, "k")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(ids) != 2 || ids[0] != "v2" {
		t.Errorf("unexpected value: %v", ids)
	}

	_, ok, err = GetJSON[[]string](ctx, &stubKV{raw: json.RawMessage(`{"not":"a list"}`), ok: true}, "k")
	if err != nil || ok {
		t.Errorf("expected undecodable value to be a miss, got ok=%v err=%v", ok, err)
	}

	_, ok, err = GetJSON[string](ctx, &stubKV{}, "k")
	if err != nil || ok {
		t.Errorf("expected miss, got ok=%v err=%v", ok, err)
	}

	lockErr := &StorageError{Op: "get", Err: ErrLockTimeout}
	_, _, err = GetJSON[string](ctx, &stubKV{err: lockErr}, "k")
	if !errors.Is(err, ErrLockTimeout) {
		t.Errorf("expected lock error to propagate, got %v", err)
	}
}

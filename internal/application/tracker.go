package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"channelwatch/internal/domain/entity"
	"channelwatch/internal/domain/repository"
)

// ReconcileResult is the outcome of one Reconcile call.
type ReconcileResult struct {
	// NewItems keeps the source order, most recent first.
	NewItems         []*entity.PolledItem
	FirstObservation bool
	// Skipped is set when the source returned nothing usable; state is untouched.
	Skipped   bool
	RecentIDs []string
}

// StateTracker decides which items are new for a channel and persists the
// recent item ids through the state store.
type StateTracker struct {
	store  repository.KVStore
	mode   entity.PollMode
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStateTracker(store repository.KVStore, mode entity.PollMode, logger *zap.Logger) *StateTracker {
	if mode == "" {
		mode = entity.PollModeFullList
	}
	return &StateTracker{
		store:  store,
		mode:   mode,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (t *StateTracker) Mode() entity.PollMode {
	return t.mode
}

// Reconcile diffs items against the stored state of channelID. The read,
// the diff and the write happen under one per-channel lock.
func (t *StateTracker) Reconcile(ctx context.Context, channelID string, items []*entity.PolledItem) (*ReconcileResult, error) {
	current := usableItems(items)
	if len(current) == 0 {
		t.logger.Info("No items available, skipping channel", zap.String("channel_id", channelID))
		return &ReconcileResult{Skipped: true}, nil
	}

	unlock := t.lockChannel(channelID)
	defer unlock()

	known, err := t.load(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if len(known) == 0 {
		seeded := entity.TruncateIDs(uniqueIDs(entity.ItemIDs(current)))
		if err := t.store.Set(ctx, channelID, seeded); err != nil {
			return nil, fmt.Errorf("failed to seed channel state: %w", err)
		}
		t.logger.Info("Seeded channel state",
			zap.String("channel_id", channelID),
			zap.Int("items", len(seeded)),
		)
		return &ReconcileResult{FirstObservation: true, RecentIDs: seeded}, nil
	}

	state := &entity.ChannelState{ChannelID: channelID, RecentItemIDs: known}

	var newItems []*entity.PolledItem
	var updated []string
	switch t.mode {
	case entity.PollModeLatestOnly:
		newest := current[0]
		if !state.Contains(newest.ID) {
			newItems = []*entity.PolledItem{newest}
			updated = append([]string{newest.ID}, known...)
		}
	default:
		seen := make(map[string]bool, len(current))
		for _, item := range current {
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			if !state.Contains(item.ID) {
				newItems = append(newItems, item)
			}
		}
		if len(newItems) > 0 {
			updated = mergeIDs(entity.ItemIDs(current), known)
		}
	}

	if len(newItems) == 0 {
		return &ReconcileResult{RecentIDs: known}, nil
	}

	updated = entity.TruncateIDs(updated)
	if err := t.store.Set(ctx, channelID, updated); err != nil {
		return nil, fmt.Errorf("failed to save channel state: %w", err)
	}

	t.logger.Info("Found new items",
		zap.String("channel_id", channelID),
		zap.Int("new_items", len(newItems)),
	)
	return &ReconcileResult{NewItems: newItems, RecentIDs: updated}, nil
}

// State returns the stored recent ids of a channel.
func (t *StateTracker) State(ctx context.Context, channelID string) (*entity.ChannelState, bool, error) {
	ids, err := t.load(ctx, channelID)
	if err != nil {
		return nil, false, err
	}
	if len(ids) == 0 {
		return nil, false, nil
	}
	return &entity.ChannelState{ChannelID: channelID, RecentItemIDs: ids}, true, nil
}

// Reset forgets a channel. Its next poll is a first observation again.
func (t *StateTracker) Reset(ctx context.Context, channelID string) error {
	unlock := t.lockChannel(channelID)
	defer unlock()

	if err := t.store.Delete(ctx, channelID); err != nil {
		return fmt.Errorf("failed to reset channel state: %w", err)
	}
	return nil
}

func (t *StateTracker) lockChannel(channelID string) func() {
	t.mu.Lock()
	l, ok := t.locks[channelID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[channelID] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// load accepts both the list form and the legacy single-id form. Anything
// else reads as no state.
func (t *StateTracker) load(ctx context.Context, channelID string) ([]string, error) {
	raw, ok, err := t.store.Get(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load channel state: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err == nil {
		return compactIDs(ids), nil
	}

	var legacy string
	if err := json.Unmarshal(raw, &legacy); err == nil && legacy != "" {
		return []string{legacy}, nil
	}

	t.logger.Warn("Ignoring unreadable channel state", zap.String("channel_id", channelID))
	return nil, nil
}

func usableItems(items []*entity.PolledItem) []*entity.PolledItem {
	out := make([]*entity.PolledItem, 0, len(items))
	for _, item := range items {
		if item != nil && item.ID != "" {
			out = append(out, item)
		}
	}
	return out
}

// mergeIDs returns current followed by the ids of previous not in current.
func mergeIDs(current, previous []string) []string {
	return uniqueIDs(append(append([]string(nil), current...), previous...))
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func compactIDs(ids []string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

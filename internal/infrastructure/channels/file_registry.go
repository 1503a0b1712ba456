package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"channelwatch/internal/domain/entity"
	"channelwatch/internal/domain/repository"
)

const reloadDebounce = 250 * time.Millisecond

// FileRegistry keeps the configured channels in a JSON object mapping the
// user-facing identifier to its resolved channel id ("" when unresolved).
type FileRegistry struct {
	path   string
	logger *zap.Logger

	mu       sync.RWMutex
	channels map[string]string
}

// NewFileRegistry loads path. A missing file is an empty registry.
func NewFileRegistry(path string, logger *zap.Logger) (*FileRegistry, error) {
	r := &FileRegistry{path: path, logger: logger, channels: make(map[string]string)}
	channels, err := r.read()
	if err != nil {
		return nil, err
	}
	r.channels = channels
	return r, nil
}

func (r *FileRegistry) Path() string { return r.path }

func (r *FileRegistry) List(ctx context.Context) ([]*entity.ChannelRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.channels))
	for identifier := range r.channels {
		keys = append(keys, identifier)
	}
	sort.Strings(keys)

	records := make([]*entity.ChannelRecord, 0, len(keys))
	for _, identifier := range keys {
		records = append(records, entity.NewChannelRecord(identifier, r.channels[identifier]))
	}
	return records, nil
}

func (r *FileRegistry) Get(ctx context.Context, identifier string) (*entity.ChannelRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channelID, ok := r.channels[identifier]
	if !ok {
		return nil, repository.ErrChannelNotFound
	}
	return entity.NewChannelRecord(identifier, channelID), nil
}

func (r *FileRegistry) Add(ctx context.Context, record *entity.ChannelRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.channels[record.Identifier]; ok {
		return repository.ErrChannelExists
	}
	next := maps.Clone(r.channels)
	next[record.Identifier] = record.ResolvedID
	return r.commit(next)
}

func (r *FileRegistry) Remove(ctx context.Context, identifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.channels[identifier]; !ok {
		return repository.ErrChannelNotFound
	}
	next := maps.Clone(r.channels)
	delete(next, identifier)
	return r.commit(next)
}

// Rename moves a channel to a new identifier and keeps its resolved id.
func (r *FileRegistry) Rename(ctx context.Context, oldIdentifier, newIdentifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	channelID, ok := r.channels[oldIdentifier]
	if !ok {
		return repository.ErrChannelNotFound
	}
	if oldIdentifier == newIdentifier {
		return nil
	}
	if _, exists := r.channels[newIdentifier]; exists {
		return repository.ErrChannelExists
	}
	next := maps.Clone(r.channels)
	delete(next, oldIdentifier)
	next[newIdentifier] = channelID
	return r.commit(next)
}

func (r *FileRegistry) UpdateResolved(ctx context.Context, identifier, channelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.channels[identifier]
	if !ok {
		return repository.ErrChannelNotFound
	}
	if current == channelID {
		return nil
	}
	next := maps.Clone(r.channels)
	next[identifier] = channelID
	return r.commit(next)
}

func (r *FileRegistry) Reload(ctx context.Context) (int, error) {
	channels, err := r.read()
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.channels = channels
	r.mu.Unlock()

	return len(channels), nil
}

// Seed adds identifiers that are not configured yet. Existing entries keep
// their resolved ids.
func (r *FileRegistry) Seed(ctx context.Context, identifiers []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := maps.Clone(r.channels)
	added := 0
	for _, identifier := range identifiers {
		if identifier == "" {
			continue
		}
		if _, ok := next[identifier]; ok {
			continue
		}
		next[identifier] = ""
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, r.commit(next)
}

// Import merges the channels of another registry file into this one. An
// unresolved imported entry never clears an id that is already resolved.
func (r *FileRegistry) Import(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read import file: %w", err)
	}
	var imported map[string]string
	if err := json.Unmarshal(data, &imported); err != nil {
		return 0, fmt.Errorf("failed to parse import file: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := maps.Clone(r.channels)
	for identifier, channelID := range imported {
		if channelID == "" && next[identifier] != "" {
			continue
		}
		next[identifier] = channelID
	}
	return len(imported), r.commit(next)
}

// Export writes the registry to path in the same format it is stored in.
func (r *FileRegistry) Export(ctx context.Context, path string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return writeJSON(path, r.channels)
}

// DisplayName returns the identifier configured for channelID, or the id
// itself when no identifier maps to it.
func (r *FileRegistry) DisplayName(channelID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for identifier, mapped := range r.channels {
		if mapped == channelID {
			names = append(names, identifier)
		}
	}
	if len(names) == 0 {
		return channelID
	}
	sort.Strings(names)
	return names[0]
}

// Watch reloads the registry after the file is edited outside the process
// and calls onReload with the new channel count. It returns when ctx is done.
func (r *FileRegistry) Watch(ctx context.Context, onReload func(int)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(r.path)
	file := filepath.Base(r.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() { r.reloadIfChanged(ctx, onReload) })
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("Channel file watcher error", zap.Error(err))
		}
	}
}

func (r *FileRegistry) reloadIfChanged(ctx context.Context, onReload func(int)) {
	if ctx.Err() != nil {
		return
	}
	channels, err := r.read()
	if err != nil {
		r.logger.Warn("Failed to reload channel file", zap.String("path", r.path), zap.Error(err))
		return
	}

	r.mu.Lock()
	unchanged := maps.Equal(channels, r.channels)
	if !unchanged {
		r.channels = channels
	}
	r.mu.Unlock()

	if unchanged {
		return
	}
	r.logger.Info("Channel file changed, reloaded", zap.String("path", r.path), zap.Int("channels", len(channels)))
	if onReload != nil {
		onReload(len(channels))
	}
}

func (r *FileRegistry) read() (map[string]string, error) {
	channels := make(map[string]string)

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return channels, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read channel file: %w", err)
	}
	if len(data) == 0 {
		return channels, nil
	}
	if err := json.Unmarshal(data, &channels); err != nil {
		return nil, fmt.Errorf("failed to parse channel file: %w", err)
	}
	return channels, nil
}

// commit persists next and swaps it in only after the write succeeded.
func (r *FileRegistry) commit(next map[string]string) error {
	if err := writeJSON(r.path, next); err != nil {
		return err
	}
	r.channels = next
	return nil
}

func writeJSON(path string, channels map[string]string) error {
	data, err := json.MarshalIndent(channels, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode channels: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create channel directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write channel file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace channel file: %w", err)
	}
	return nil
}

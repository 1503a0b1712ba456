package application

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"channelwatch/internal/domain/entity"
	"channelwatch/internal/domain/repository"
)

type mockKVStore struct {
	mu      sync.Mutex
	data    map[string]json.RawMessage
	sets    int
	getErr  error
	setErr  error
	cleaned int64
}

func newMockKVStore() *mockKVStore {
	return &mockKVStore{data: make(map[string]json.RawMessage)}
}

func (m *mockKVStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockKVStore) Set(ctx context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = data
	m.sets++
	return nil
}

func (m *mockKVStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockKVStore) Cleanup(ctx context.Context) (int64, error) {
	return m.cleaned, nil
}

func (m *mockKVStore) Keys(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *mockKVStore) ids(key string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	_ = json.Unmarshal(m.data[key], &ids)
	return ids
}

func (m *mockKVStore) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

type notifyCall struct {
	channel string
	items   []*entity.PolledItem
	batch   bool
}

type mockNotifier struct {
	mu         sync.Mutex
	calls      []notifyCall
	err        error
	configured bool
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{configured: true}
}

func (m *mockNotifier) NotifySingle(ctx context.Context, channelTitle string, item *entity.PolledItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, notifyCall{channel: channelTitle, items: []*entity.PolledItem{item}})
	return m.err
}

func (m *mockNotifier) NotifyBatch(ctx context.Context, channelTitle string, items []*entity.PolledItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, notifyCall{channel: channelTitle, items: items, batch: true})
	return m.err
}

func (m *mockNotifier) IsConfigured() bool {
	return m.configured
}

func (m *mockNotifier) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockSummarizer struct {
	enabled bool
	summary string
	err     error
	calls   int
}

func (m *mockSummarizer) Summarize(ctx context.Context, content, title string) (string, error) {
	m.calls++
	return m.summary, m.err
}

func (m *mockSummarizer) IsEnabled() bool {
	return m.enabled
}

type mockSource struct {
	mu          sync.Mutex
	channels    map[string]*entity.ChannelInfo
	fetchErr    map[string]error
	resolved    map[string]string
	resolveErr  error
	validateErr error
	fetches     int
	resolves    int
	block       chan struct{}
}

func newMockSource() *mockSource {
	return &mockSource{
		channels: make(map[string]*entity.ChannelInfo),
		fetchErr: make(map[string]error),
		resolved: make(map[string]string),
	}
}

func (m *mockSource) setItems(channelID, title string, ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := &entity.ChannelInfo{ID: channelID, Title: title}
	for _, id := range ids {
		info.Items = append(info.Items, entity.NewPolledItem(id, "Video "+id, "https://example.tld/watch?v="+id, fixedTime))
	}
	m.channels[channelID] = info
}

func (m *mockSource) FetchLatest(ctx context.Context, channelID string) (*entity.PolledItem, error) {
	info, err := m.FetchRecent(ctx, channelID, 1)
	if err != nil || len(info.Items) == 0 {
		return nil, err
	}
	return info.Items[0], nil
}

func (m *mockSource) FetchRecent(ctx context.Context, channelID string, n int) (*entity.ChannelInfo, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if err := m.fetchErr[channelID]; err != nil {
		return nil, err
	}
	info, ok := m.channels[channelID]
	if !ok {
		return &entity.ChannelInfo{ID: channelID}, nil
	}
	out := *info
	if len(out.Items) > n {
		out.Items = out.Items[:n]
	}
	return &out, nil
}

func (m *mockSource) ResolveID(ctx context.Context, identifier string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolves++
	if m.resolveErr != nil {
		return "", m.resolveErr
	}
	return m.resolved[identifier], nil
}

func (m *mockSource) Validate() error {
	return m.validateErr
}

// mockBatchSource adds FetchBatch on top of mockSource.
type mockBatchSource struct {
	*mockSource
	batchCalls int
	batchErr   error
	omit       map[string]bool
}

func (m *mockBatchSource) FetchBatch(ctx context.Context, channelIDs []string, n int) (map[string]*entity.ChannelInfo, error) {
	m.batchCalls++
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	out := make(map[string]*entity.ChannelInfo)
	for _, id := range channelIDs {
		if m.omit[id] {
			continue
		}
		info, err := m.mockSource.FetchRecent(ctx, id, n)
		if err != nil {
			return nil, err
		}
		out[id] = info
	}
	return out, nil
}

type mockChannelRepository struct {
	mu       sync.Mutex
	records  map[string]string
	listErr  error
	reloaded int
}

func newMockChannelRepository(pairs ...string) *mockChannelRepository {
	m := &mockChannelRepository{records: make(map[string]string)}
	for i := 0; i+1 < len(pairs); i += 2 {
		m.records[pairs[i]] = pairs[i+1]
	}
	return m
}

func (m *mockChannelRepository) List(ctx context.Context) ([]*entity.ChannelRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*entity.ChannelRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, entity.NewChannelRecord(k, m.records[k]))
	}
	return out, nil
}

func (m *mockChannelRepository) Get(ctx context.Context, identifier string) (*entity.ChannelRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.records[identifier]
	if !ok {
		return nil, repository.ErrChannelNotFound
	}
	return entity.NewChannelRecord(identifier, id), nil
}

func (m *mockChannelRepository) Add(ctx context.Context, record *entity.ChannelRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.Identifier]; ok {
		return repository.ErrChannelExists
	}
	m.records[record.Identifier] = record.ResolvedID
	return nil
}

func (m *mockChannelRepository) Remove(ctx context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[identifier]; !ok {
		return repository.ErrChannelNotFound
	}
	delete(m.records, identifier)
	return nil
}

func (m *mockChannelRepository) Rename(ctx context.Context, oldIdentifier, newIdentifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.records[oldIdentifier]
	if !ok {
		return repository.ErrChannelNotFound
	}
	if _, exists := m.records[newIdentifier]; exists {
		return repository.ErrChannelExists
	}
	delete(m.records, oldIdentifier)
	m.records[newIdentifier] = id
	return nil
}

func (m *mockChannelRepository) UpdateResolved(ctx context.Context, identifier, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[identifier]; !ok {
		return repository.ErrChannelNotFound
	}
	m.records[identifier] = channelID
	return nil
}

func (m *mockChannelRepository) Reload(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloaded++
	return len(m.records), nil
}

func (m *mockChannelRepository) resolvedID(identifier string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[identifier]
}

package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"channelwatch/internal/domain/entity"
	"channelwatch/internal/domain/repository"
)

// CleanupReport counts the entries purged from each store.
type CleanupReport struct {
	Lookup int64 `json:"lookup"`
	State  int64 `json:"state"`
}

// ChannelService backs the control surfaces: channel management, state
// inspection and cache housekeeping.
type ChannelService struct {
	channels repository.ChannelRepository
	source   repository.ContentSource
	resolver *Resolver
	tracker  *StateTracker
	lookup   repository.KVStore
	state    repository.KVStore
	logger   *zap.Logger
}

func NewChannelService(
	channels repository.ChannelRepository,
	source repository.ContentSource,
	resolver *Resolver,
	tracker *StateTracker,
	lookup repository.KVStore,
	state repository.KVStore,
	logger *zap.Logger,
) *ChannelService {
	return &ChannelService{
		channels: channels,
		source:   source,
		resolver: resolver,
		tracker:  tracker,
		lookup:   lookup,
		state:    state,
		logger:   logger,
	}
}

func (s *ChannelService) List(ctx context.Context) ([]*entity.ChannelRecord, error) {
	records, err := s.channels.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	return records, nil
}

// Add stores a new channel. Canonical ids are stored as they are; handles
// must resolve first, otherwise nothing is stored.
func (s *ChannelService) Add(ctx context.Context, identifier string) (*entity.ChannelRecord, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, repository.ErrInvalidIdentifier
	}

	if _, err := s.channels.Get(ctx, identifier); err == nil {
		return nil, repository.ErrChannelExists
	} else if !errors.Is(err, repository.ErrChannelNotFound) {
		return nil, fmt.Errorf("failed to look up channel: %w", err)
	}

	record := entity.NewChannelRecord(identifier, "")
	switch {
	case entity.IsCanonicalChannelID(identifier):
		record.ResolvedID = identifier
	case entity.IsHandle(identifier):
		channelID, err := s.resolver.Resolve(ctx, identifier)
		if err != nil {
			return nil, err
		}
		record.ResolvedID = channelID
	}

	if err := s.channels.Add(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("Channel added",
		zap.String("identifier", record.Identifier),
		zap.String("channel_id", record.ResolvedID),
	)
	return record, nil
}

func (s *ChannelService) Remove(ctx context.Context, identifier string) error {
	if err := s.channels.Remove(ctx, strings.TrimSpace(identifier)); err != nil {
		return err
	}
	s.logger.Info("Channel removed", zap.String("identifier", identifier))
	return nil
}

// Rename changes the label of a channel and keeps its resolved id.
func (s *ChannelService) Rename(ctx context.Context, oldIdentifier, newIdentifier string) error {
	newIdentifier = strings.TrimSpace(newIdentifier)
	if newIdentifier == "" {
		return repository.ErrInvalidIdentifier
	}
	if err := s.channels.Rename(ctx, strings.TrimSpace(oldIdentifier), newIdentifier); err != nil {
		return err
	}
	s.logger.Info("Channel renamed",
		zap.String("old_identifier", oldIdentifier),
		zap.String("new_identifier", newIdentifier),
	)
	return nil
}

func (s *ChannelService) Reload(ctx context.Context) (int, error) {
	n, err := s.channels.Reload(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reload channels: %w", err)
	}
	s.logger.Info("Channels reloaded", zap.Int("channels", n))
	return n, nil
}

// Info fetches display metadata for channels. Channels the source cannot
// describe fall back to their id as title.
func (s *ChannelService) Info(ctx context.Context, channelIDs []string) map[string]*entity.ChannelInfo {
	out := make(map[string]*entity.ChannelInfo, len(channelIDs))
	for _, id := range channelIDs {
		info, err := s.source.FetchRecent(ctx, id, 1)
		if err != nil || info == nil {
			if err != nil {
				s.logger.Warn("Failed to fetch channel info", zap.String("channel_id", id), zap.Error(err))
			}
			info = &entity.ChannelInfo{ID: id, Title: id}
		}
		out[id] = info
	}
	return out
}

func (s *ChannelService) ChannelState(ctx context.Context, channelID string) (*entity.ChannelState, bool, error) {
	return s.tracker.State(ctx, channelID)
}

func (s *ChannelService) ResetState(ctx context.Context, channelID string) error {
	if err := s.tracker.Reset(ctx, channelID); err != nil {
		return err
	}
	s.logger.Info("Channel state reset", zap.String("channel_id", channelID))
	return nil
}

// CleanupCaches purges expired entries from both stores.
func (s *ChannelService) CleanupCaches(ctx context.Context) (*CleanupReport, error) {
	report := &CleanupReport{}

	n, err := s.lookup.Cleanup(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to clean up lookup cache: %w", err)
	}
	report.Lookup = n

	n, err = s.state.Cleanup(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to clean up state store: %w", err)
	}
	report.State = n

	s.logger.Info("Caches cleaned up", zap.Int64("lookup", report.Lookup), zap.Int64("state", report.State))
	return report, nil
}

package repository

import (
	"context"

	"channelwatch/internal/domain/entity"
)

// ChannelRepository owns the configured channel list.
type ChannelRepository interface {
	List(ctx context.Context) ([]*entity.ChannelRecord, error)
	Get(ctx context.Context, identifier string) (*entity.ChannelRecord, error)
	Add(ctx context.Context, record *entity.ChannelRecord) error
	Remove(ctx context.Context, identifier string) error
	Rename(ctx context.Context, oldIdentifier, newIdentifier string) error
	UpdateResolved(ctx context.Context, identifier, channelID string) error
	// Reload re-reads the backing file and returns the number of channels.
	Reload(ctx context.Context) (int, error)
}

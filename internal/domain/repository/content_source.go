package repository

import (
	"context"

	"channelwatch/internal/domain/entity"
)

// ContentSource lists the items currently visible on a channel.
type ContentSource interface {
	// FetchLatest returns the newest item, or nil when the channel has none.
	FetchLatest(ctx context.Context, channelID string) (*entity.PolledItem, error)
	// FetchRecent returns channel metadata and up to n items, most recent first.
	FetchRecent(ctx context.Context, channelID string, n int) (*entity.ChannelInfo, error)
	// ResolveID maps a handle to its canonical channel id.
	ResolveID(ctx context.Context, identifier string) (string, error)
	// Validate returns ErrMissingCredential when a mandatory credential is absent.
	Validate() error
}

// BatchSource is implemented by sources that can fetch many channels with
// fewer upstream calls. Channels that failed are absent from the result.
type BatchSource interface {
	FetchBatch(ctx context.Context, channelIDs []string, n int) (map[string]*entity.ChannelInfo, error)
}

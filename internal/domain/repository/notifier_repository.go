package repository

import (
	"context"

	"channelwatch/internal/domain/entity"
)

// Notifier delivers one outbound message per call.
type Notifier interface {
	NotifySingle(ctx context.Context, channelTitle string, item *entity.PolledItem) error
	NotifyBatch(ctx context.Context, channelTitle string, items []*entity.PolledItem) error
	// IsConfigured is false when credentials are missing; callers then skip delivery.
	IsConfigured() bool
}

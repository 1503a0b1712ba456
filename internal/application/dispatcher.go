package application

import (
	"context"

	"go.uber.org/zap"

	"channelwatch/internal/domain/entity"
	"channelwatch/internal/domain/repository"
)

// Dispatcher turns the new items of one channel into exactly one notifier call.
type Dispatcher struct {
	notifier   repository.Notifier
	summarizer repository.SummarizerRepository
	logger     *zap.Logger
}

func NewDispatcher(notifier repository.Notifier, summarizer repository.SummarizerRepository, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		notifier:   notifier,
		summarizer: summarizer,
		logger:     logger,
	}
}

// Dispatch reports whether the notification was delivered. A missing or
// unconfigured notifier is not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, channelTitle string, items []*entity.PolledItem) bool {
	if len(items) == 0 {
		return false
	}
	if d.notifier == nil || !d.notifier.IsConfigured() {
		d.logger.Debug("Notifier not configured, skipping notification",
			zap.String("channel", channelTitle),
			zap.Int("items", len(items)),
		)
		return false
	}

	var err error
	if len(items) == 1 {
		err = d.notifier.NotifySingle(ctx, channelTitle, d.summarize(ctx, items[0]))
	} else {
		err = d.notifier.NotifyBatch(ctx, channelTitle, items)
	}

	if err != nil {
		d.logger.Error("Notification failed",
			zap.Error(&repository.DispatchError{Channel: channelTitle, Err: err}),
			zap.Int("items", len(items)),
		)
		return false
	}

	d.logger.Info("Notification sent",
		zap.String("channel", channelTitle),
		zap.Int("items", len(items)),
	)
	return true
}

// summarize returns a copy of item carrying a summary of its description.
// Any failure leaves the item as it was.
func (d *Dispatcher) summarize(ctx context.Context, item *entity.PolledItem) *entity.PolledItem {
	if d.summarizer == nil || !d.summarizer.IsEnabled() || item.Description == "" {
		return item
	}

	summary, err := d.summarizer.Summarize(ctx, item.Description, item.Title)
	if err != nil {
		d.logger.Warn("Failed to summarize item",
			zap.String("title", item.Title),
			zap.Error(err),
		)
		return item
	}

	out := *item
	out.Summary = summary
	return &out
}

package notify

import (
	"context"
	"fmt"

	"channelwatch/internal/domain/entity"
	"channelwatch/internal/domain/repository"
	"channelwatch/internal/infrastructure/discord"
	"channelwatch/internal/infrastructure/email"
	"channelwatch/internal/infrastructure/misskey"
)

type Config struct {
	Kind    string // "email", "discord", "misskey" or "none"
	Email   email.Config
	Discord discord.Config
	Misskey misskey.Config
}

func NewNotifier(cfg Config) (repository.Notifier, error) {
	switch cfg.Kind {
	case "email", "":
		return email.NewResendNotifier(cfg.Email)
	case "discord":
		return discord.NewWebhookNotifier(cfg.Discord), nil
	case "misskey":
		return misskey.NewNoteNotifier(cfg.Misskey), nil
	case "none":
		return noneNotifier{}, nil
	default:
		return nil, fmt.Errorf("unknown notifier: %s", cfg.Kind)
	}
}

// noneNotifier is never configured, so the dispatcher skips delivery.
type noneNotifier struct{}

func (noneNotifier) NotifySingle(context.Context, string, *entity.PolledItem) error {
	return repository.ErrNotConfigured
}

func (noneNotifier) NotifyBatch(context.Context, string, []*entity.PolledItem) error {
	return repository.ErrNotConfigured
}

func (noneNotifier) IsConfigured() bool {
	return false
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"channelwatch/internal/application"
	"channelwatch/internal/domain/repository"
	"channelwatch/internal/infrastructure/channels"
	"channelwatch/internal/infrastructure/discord"
	"channelwatch/internal/infrastructure/email"
	"channelwatch/internal/infrastructure/llm"
	"channelwatch/internal/infrastructure/misskey"
	"channelwatch/internal/infrastructure/notify"
	"channelwatch/internal/infrastructure/rss"
	"channelwatch/internal/infrastructure/scraper"
	"channelwatch/internal/infrastructure/storage"
	"channelwatch/internal/infrastructure/youtube"
	"channelwatch/internal/interfaces/config"
	"channelwatch/internal/logger"
)

// app holds every wired component for one command invocation.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	backend   *storage.Backend
	registry  *channels.FileRegistry
	source    repository.ContentSource
	tracker   *application.StateTracker
	scheduler *application.Scheduler
	service   *application.ChannelService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: log}
	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	backend, err := storage.Open(storage.Config{
		Driver:      cfg.StoreDriver,
		Dir:         cfg.DataDir,
		LookupTTL:   cfg.GetLookupTTL(),
		LockTimeout: cfg.GetStoreLockTimeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	a.backend = backend

	channelsFile := cfg.ChannelsFile
	if !filepath.IsAbs(channelsFile) {
		channelsFile = filepath.Join(cfg.DataDir, channelsFile)
	}
	registry, err := channels.NewFileRegistry(channelsFile, a.logger)
	if err != nil {
		return err
	}
	a.registry = registry

	if len(cfg.Channels) > 0 {
		added, err := registry.Seed(ctx, cfg.Channels)
		if err != nil {
			return fmt.Errorf("failed to seed channels: %w", err)
		}
		if added > 0 {
			a.logger.Info("Seeded channels from environment", zap.Int("added", added))
		}
	}

	source, err := a.newSource()
	if err != nil {
		return err
	}
	a.source = source

	notifier, err := notify.NewNotifier(notify.Config{
		Kind: cfg.Notifier,
		Email: email.Config{
			APIKey:   cfg.ResendAPIKey,
			To:       cfg.NotificationEmail,
			From:     cfg.EmailFrom,
			Location: cfg.GetLocation(),
		},
		Discord: discord.Config{
			WebhookURL: cfg.DiscordWebhookURL,
			Username:   "channelwatch",
			Location:   cfg.GetLocation(),
		},
		Misskey: misskey.Config{
			Host:           cfg.MisskeyHost,
			AuthToken:      cfg.MisskeyToken,
			Visibility:     cfg.GetMisskeyVisibility(),
			LocalOnly:      cfg.MisskeyLocalOnly,
			MaxPermits:     cfg.MaxPermits,
			RefillInterval: cfg.GetRefillInterval(),
			Location:       cfg.GetLocation(),
		},
	})
	if err != nil {
		return err
	}
	if !notifier.IsConfigured() {
		a.logger.Warn("Notifier not configured, new items will only be logged", zap.String("notifier", cfg.Notifier))
	}

	llmCfg := cfg.GetLLMConfig()
	summarizer, err := llm.NewSummarizerRepository(ctx, llm.Config{
		Provider:          llmCfg.Provider,
		APIKey:            llmCfg.APIKey,
		Model:             llmCfg.Model,
		MaxTokens:         llmCfg.MaxTokens,
		Timeout:           llmCfg.Timeout,
		Region:            llmCfg.Region,
		SystemInstruction: llmCfg.SystemInstruction,
	})
	if err != nil {
		a.logger.Warn("LLM summarizer initialization failed, continuing without summaries", zap.Error(err))
		summarizer, _ = llm.NewSummarizerRepository(ctx, llm.Config{Provider: "noop"})
	}

	a.tracker = application.NewStateTracker(backend.State, cfg.GetPollMode(), a.logger)
	resolver := application.NewResolver(source, backend.Lookup, a.logger)
	dispatcher := application.NewDispatcher(notifier, summarizer, a.logger)

	a.scheduler = application.NewScheduler(application.SchedulerConfig{
		Interval:     cfg.GetCheckInterval(),
		FetchTimeout: cfg.GetFetchTimeout(),
		StopTimeout:  cfg.GetStopTimeout(),
		Concurrency:  cfg.PollConcurrency,
		RecentLimit:  cfg.RecentLimit,
	}, registry, source, resolver, a.tracker, dispatcher, a.logger)

	a.service = application.NewChannelService(registry, source, resolver, a.tracker, backend.Lookup, backend.State, a.logger)
	return nil
}

func (a *app) newSource() (repository.ContentSource, error) {
	switch a.cfg.Source {
	case "youtube":
		source, err := youtube.NewAPISource(youtube.APIConfig{
			APIKey: a.cfg.YouTubeAPIKey,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create YouTube API source: %w", err)
		}
		return source, nil
	default:
		resolver := scraper.NewChannelResolver(a.cfg.ChannelPageBaseURL, a.cfg.GetFetchTimeout())
		return rss.NewFeedSource(a.cfg.FeedBaseURL, a.cfg.GetFetchTimeout(), resolver), nil
	}
}

func (a *app) close() {
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.Warn("Failed to close storage", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// isFatal reports errors that should stop the process instead of a retry.
func isFatal(err error) bool {
	return errors.Is(err, repository.ErrMissingCredential)
}

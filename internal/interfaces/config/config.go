package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"channelwatch/internal/domain/entity"
)

type Config struct {
	Source             string `envconfig:"SOURCE" default:"rss"`
	YouTubeAPIKey      string `envconfig:"YOUTUBE_API_KEY"`
	FeedBaseURL        string `envconfig:"FEED_BASE_URL" default:"https://www.youtube.com/feeds/videos.xml"`
	ChannelPageBaseURL string `envconfig:"CHANNEL_PAGE_BASE_URL" default:"https://www.youtube.com"`

	Channels          []string `envconfig:"CHANNELS"`
	ChannelsFile      string   `envconfig:"CHANNELS_FILE" default:"channels_watching.json"`
	WatchChannelsFile bool     `envconfig:"WATCH_CHANNELS_FILE" default:"true"`

	CheckInterval   int    `envconfig:"CHECK_INTERVAL" default:"1800"`
	PollMode        string `envconfig:"POLL_MODE" default:"full"`
	RecentLimit     int    `envconfig:"RECENT_LIMIT" default:"10"`
	FetchTimeout    int    `envconfig:"FETCH_TIMEOUT" default:"30"`
	PollConcurrency int    `envconfig:"POLL_CONCURRENCY" default:"4"`
	StopTimeout     int    `envconfig:"STOP_TIMEOUT" default:"5"`

	StoreDriver      string `envconfig:"STORE_DRIVER" default:"file"`
	DataDir          string `envconfig:"DATA_DIR" default:"."`
	LookupCacheTTL   int    `envconfig:"LOOKUP_CACHE_TTL" default:"3600"`
	StoreLockTimeout int    `envconfig:"STORE_LOCK_TIMEOUT" default:"10"`

	Notifier          string `envconfig:"NOTIFIER" default:"email"`
	ResendAPIKey      string `envconfig:"RESEND_API_KEY"`
	NotificationEmail string `envconfig:"NOTIFICATION_EMAIL"`
	EmailFrom         string `envconfig:"EMAIL_FROM"`
	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`
	MisskeyHost       string `envconfig:"MISSKEY_HOST"`
	MisskeyToken      string `envconfig:"MISSKEY_TOKEN"`
	MisskeyVisibility string `envconfig:"MISSKEY_VISIBILITY" default:"home"`
	MisskeyLocalOnly  bool   `envconfig:"MISSKEY_LOCAL_ONLY" default:"false"`
	MaxPermits        int    `envconfig:"MAX_PERMITS" default:"3"`
	RefillInterval    int    `envconfig:"REFILL_INTERVAL" default:"10"`
	NotifyTimezone    string `envconfig:"NOTIFY_TIMEZONE" default:"US/Pacific"`

	HTTPAddr    string   `envconfig:"HTTP_ADDR" default:":5000"`
	Password    string   `envconfig:"PASSWORD"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`

	LLMProvider          string `envconfig:"LLM_PROVIDER"`
	LLMAPIKey            string `envconfig:"LLM_API_KEY"`
	LLMModel             string `envconfig:"LLM_MODEL"`
	LLMMaxTokens         int    `envconfig:"LLM_MAX_TOKENS"`
	LLMTimeout           int    `envconfig:"LLM_TIMEOUT" default:"30"`
	LLMRegion            string `envconfig:"LLM_REGION"`
	LLMSystemInstruction string `envconfig:"LLM_SYSTEM_INSTRUCTION"`
}

// LLMConfig groups the summarizer settings.
type LLMConfig struct {
	Provider          string
	APIKey            string
	Model             string
	MaxTokens         int
	Timeout           time.Duration
	Region            string
	SystemInstruction string
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if channels := loadChannels(); len(channels) > 0 {
		cfg.Channels = channels
	}
	cfg.Channels = trimAll(cfg.Channels)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	checks := []struct {
		key     string
		value   string
		allowed []string
	}{
		{"SOURCE", c.Source, []string{"rss", "youtube"}},
		{"STORE_DRIVER", c.StoreDriver, []string{"file", "sqlite", "bolt", "memory"}},
		{"NOTIFIER", c.Notifier, []string{"email", "discord", "misskey", "none"}},
		{"LOG_FORMAT", c.LogFormat, []string{"console", "json"}},
	}
	for _, check := range checks {
		if !contains(check.allowed, check.value) {
			return fmt.Errorf("invalid %s %q: must be one of %s", check.key, check.value, strings.Join(check.allowed, ", "))
		}
	}

	if _, err := entity.ParsePollMode(c.PollMode); err != nil {
		return fmt.Errorf("invalid POLL_MODE: %w", err)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("CHECK_INTERVAL must be positive, got %d", c.CheckInterval)
	}
	if _, err := time.LoadLocation(c.NotifyTimezone); err != nil {
		return fmt.Errorf("invalid NOTIFY_TIMEZONE %q: %w", c.NotifyTimezone, err)
	}

	return nil
}

// loadChannels reads CHANNEL_1, CHANNEL_2, ... up to the first gap.
func loadChannels() []string {
	var channels []string

	for i := 1; ; i++ {
		key := fmt.Sprintf("CHANNEL_%d", i)
		channel := strings.TrimSpace(os.Getenv(key))
		if channel == "" {
			break
		}
		channels = append(channels, channel)
	}

	return channels
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func (c *Config) GetPollMode() entity.PollMode {
	mode, _ := entity.ParsePollMode(c.PollMode)
	return mode
}

func (c *Config) GetCheckInterval() time.Duration {
	return time.Duration(c.CheckInterval) * time.Second
}

func (c *Config) GetFetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}

func (c *Config) GetStopTimeout() time.Duration {
	return time.Duration(c.StopTimeout) * time.Second
}

func (c *Config) GetLookupTTL() time.Duration {
	return time.Duration(c.LookupCacheTTL) * time.Second
}

func (c *Config) GetStoreLockTimeout() time.Duration {
	return time.Duration(c.StoreLockTimeout) * time.Second
}

func (c *Config) GetRefillInterval() time.Duration {
	return time.Duration(c.RefillInterval) * time.Second
}

// GetLocation returns the notification timezone, falling back to UTC.
func (c *Config) GetLocation() *time.Location {
	loc, err := time.LoadLocation(c.NotifyTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) GetMisskeyVisibility() entity.NoteVisibility {
	return entity.ParseNoteVisibility(c.MisskeyVisibility)
}

func (c *Config) GetLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:          c.LLMProvider,
		APIKey:            c.LLMAPIKey,
		Model:             c.LLMModel,
		MaxTokens:         c.LLMMaxTokens,
		Timeout:           time.Duration(c.LLMTimeout) * time.Second,
		Region:            c.LLMRegion,
		SystemInstruction: c.LLMSystemInstruction,
	}
}

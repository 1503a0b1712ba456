package youtube

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"channelwatch/internal/domain/entity"
	"channelwatch/internal/domain/repository"
	"channelwatch/internal/infrastructure/html"
)

const (
	maxIDsPerCall      = 50
	defaultRatePerSec  = 5
	maxDescriptionRune = 4000
	watchURLPrefix     = "https://www.youtube.com/watch?v="
)

var errChannelNotFound = errors.New("channel not found")

type APIConfig struct {
	APIKey string
	// Endpoint overrides the API base URL, mainly for tests.
	Endpoint string
	// RequestsPerSecond paces upstream calls to stay within quota.
	RequestsPerSecond float64
}

// APISource uses the YouTube Data API. One channels.list call covers up to
// 50 channels; each channel then costs one playlistItems.list call.
type APISource struct {
	service *yt.Service
	apiKey  string
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewAPISource(cfg APIConfig, logger *zap.Logger) (*APISource, error) {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRatePerSec
	}

	s := &APISource{
		apiKey:  cfg.APIKey,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
	if cfg.APIKey == "" {
		return s, nil
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	service, err := yt.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube client: %w", err)
	}
	s.service = service
	return s, nil
}

func (s *APISource) Validate() error {
	if s.apiKey == "" || s.service == nil {
		return fmt.Errorf("YOUTUBE_API_KEY is not set: %w", repository.ErrMissingCredential)
	}
	return nil
}

func (s *APISource) FetchLatest(ctx context.Context, channelID string) (*entity.PolledItem, error) {
	info, err := s.FetchRecent(ctx, channelID, 1)
	if err != nil {
		return nil, err
	}
	if len(info.Items) == 0 {
		return nil, nil
	}
	return info.Items[0], nil
}

func (s *APISource) FetchRecent(ctx context.Context, channelID string, n int) (*entity.ChannelInfo, error) {
	infos, err := s.FetchBatch(ctx, []string{channelID}, n)
	if err != nil {
		return nil, err
	}
	info, ok := infos[channelID]
	if !ok {
		return nil, errChannelNotFound
	}
	return info, nil
}

// FetchBatch omits channels that are unknown upstream or whose uploads could
// not be listed. It only fails when nothing could be fetched at all.
func (s *APISource) FetchBatch(ctx context.Context, channelIDs []string, n int) (map[string]*entity.ChannelInfo, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if n <= 0 || n > maxIDsPerCall {
		n = maxIDsPerCall
	}

	out := make(map[string]*entity.ChannelInfo, len(channelIDs))
	var firstErr error

	for start := 0; start < len(channelIDs); start += maxIDsPerCall {
		end := min(start+maxIDsPerCall, len(channelIDs))

		channels, err := s.listChannels(ctx, channelIDs[start:end])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Warn("Failed to list channels", zap.Int("channels", end-start), zap.Error(err))
			continue
		}

		for _, ch := range channels {
			info := channelInfo(ch)
			uploads := uploadsPlaylist(ch)
			if uploads == "" {
				out[info.ID] = info
				continue
			}

			items, err := s.listUploads(ctx, uploads, n)
			if err != nil {
				s.logger.Warn("Failed to list uploads", zap.String("channel_id", info.ID), zap.Error(err))
				continue
			}
			info.Items = items
			out[info.ID] = info
		}
	}

	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// ResolveID searches for the handle and returns the first channel hit, or ""
// when there is none.
func (s *APISource) ResolveID(ctx context.Context, identifier string) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	if entity.IsCanonicalChannelID(identifier) {
		return identifier, nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := s.service.Search.List([]string{"snippet"}).
		Q(identifier).
		Type("channel").
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to search channel: %w", err)
	}

	for _, result := range resp.Items {
		if result.Id != nil && result.Id.ChannelId != "" {
			return result.Id.ChannelId, nil
		}
		if result.Snippet != nil && result.Snippet.ChannelId != "" {
			return result.Snippet.ChannelId, nil
		}
	}
	return "", nil
}

func (s *APISource) listChannels(ctx context.Context, ids []string) ([]*yt.Channel, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := s.service.Channels.List([]string{"snippet", "contentDetails"}).
		Id(ids...).
		MaxResults(maxIDsPerCall).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	return resp.Items, nil
}

func (s *APISource) listUploads(ctx context.Context, playlistID string, n int) ([]*entity.PolledItem, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := s.service.PlaylistItems.List([]string{"snippet", "contentDetails"}).
		PlaylistId(playlistID).
		MaxResults(int64(n)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list playlist items: %w", err)
	}

	items := make([]*entity.PolledItem, 0, len(resp.Items))
	for _, pi := range resp.Items {
		if item := playlistItem(pi); item != nil {
			items = append(items, item)
		}
	}
	return items, nil
}

func channelInfo(ch *yt.Channel) *entity.ChannelInfo {
	info := &entity.ChannelInfo{ID: ch.Id}
	if ch.Snippet != nil {
		info.Title = ch.Snippet.Title
		info.Description = html.PlainText(ch.Snippet.Description, maxDescriptionRune)
		info.Thumbnail = thumbnailURL(ch.Snippet.Thumbnails)
	}
	return info
}

func uploadsPlaylist(ch *yt.Channel) string {
	if ch.ContentDetails == nil || ch.ContentDetails.RelatedPlaylists == nil {
		return ""
	}
	return ch.ContentDetails.RelatedPlaylists.Uploads
}

func playlistItem(pi *yt.PlaylistItem) *entity.PolledItem {
	if pi.Snippet == nil {
		return nil
	}

	videoID := ""
	if pi.ContentDetails != nil {
		videoID = pi.ContentDetails.VideoId
	}
	if videoID == "" && pi.Snippet.ResourceId != nil {
		videoID = pi.Snippet.ResourceId.VideoId
	}
	if videoID == "" {
		return nil
	}

	published := pi.Snippet.PublishedAt
	if pi.ContentDetails != nil && pi.ContentDetails.VideoPublishedAt != "" {
		published = pi.ContentDetails.VideoPublishedAt
	}
	publishedAt, _ := time.Parse(time.RFC3339, published)

	item := entity.NewPolledItem(videoID, pi.Snippet.Title, watchURLPrefix+videoID, publishedAt)
	item.Thumbnail = thumbnailURL(pi.Snippet.Thumbnails)
	item.Description = html.PlainText(pi.Snippet.Description, maxDescriptionRune)
	return item
}

func thumbnailURL(t *yt.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*yt.Thumbnail{t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

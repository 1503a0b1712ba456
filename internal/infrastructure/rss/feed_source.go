package rss

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"channelwatch/internal/domain/entity"
	"channelwatch/internal/infrastructure/html"
)

const (
	DefaultFeedBaseURL = "https://www.youtube.com/feeds/videos.xml"

	maxDescriptionChars = 4000
	videoIDPrefix       = "yt:video:"
)

var errNoResolver = errors.New("handle resolution is not available")

type idResolver interface {
	ResolveID(ctx context.Context, identifier string) (string, error)
}

// FeedSource reads the public per-channel Atom feed. It needs no credentials.
type FeedSource struct {
	parser   *gofeed.Parser
	baseURL  string
	resolver idResolver
}

func NewFeedSource(baseURL string, timeout time.Duration, resolver idResolver) *FeedSource {
	if baseURL == "" {
		baseURL = DefaultFeedBaseURL
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	parser.UserAgent = "channelwatch/1.0"

	return &FeedSource{
		parser:   parser,
		baseURL:  baseURL,
		resolver: resolver,
	}
}

func (s *FeedSource) Validate() error {
	return nil
}

func (s *FeedSource) FeedURL(channelID string) string {
	sep := "?"
	if strings.Contains(s.baseURL, "?") {
		sep = "&"
	}
	return s.baseURL + sep + "channel_id=" + url.QueryEscape(channelID)
}

func (s *FeedSource) FetchLatest(ctx context.Context, channelID string) (*entity.PolledItem, error) {
	info, err := s.FetchRecent(ctx, channelID, 1)
	if err != nil {
		return nil, err
	}
	if len(info.Items) == 0 {
		return nil, nil
	}
	return info.Items[0], nil
}

// FetchRecent keeps the feed order, which is newest first. n <= 0 returns
// every entry of the feed.
func (s *FeedSource) FetchRecent(ctx context.Context, channelID string, n int) (*entity.ChannelInfo, error) {
	feed, err := s.parser.ParseURLWithContext(s.FeedURL(channelID), ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse channel feed: %w", err)
	}

	info := &entity.ChannelInfo{
		ID:          channelID,
		Title:       feed.Title,
		Description: html.PlainText(feed.Description, maxDescriptionChars),
	}
	if feed.Image != nil {
		info.Thumbnail = feed.Image.URL
	}

	for _, item := range feed.Items {
		if n > 0 && len(info.Items) >= n {
			break
		}
		polled := toPolledItem(item)
		if polled.ID == "" {
			continue
		}
		info.Items = append(info.Items, polled)
	}

	return info, nil
}

func (s *FeedSource) ResolveID(ctx context.Context, identifier string) (string, error) {
	if s.resolver == nil {
		return "", errNoResolver
	}
	return s.resolver.ResolveID(ctx, identifier)
}

func toPolledItem(item *gofeed.Item) *entity.PolledItem {
	var published time.Time
	switch {
	case item.PublishedParsed != nil:
		published = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		published = *item.UpdatedParsed
	}

	polled := entity.NewPolledItem(itemID(item), item.Title, item.Link, published)

	group := firstExtension(item.Extensions, "media", "group")
	if group != nil {
		if thumb := firstChild(group, "thumbnail"); thumb != nil {
			polled.Thumbnail = thumb.Attrs["url"]
		}
		if desc := firstChild(group, "description"); desc != nil {
			polled.Description = html.PlainText(desc.Value, maxDescriptionChars)
		}
	}
	if polled.Thumbnail == "" && item.Image != nil {
		polled.Thumbnail = item.Image.URL
	}
	if polled.Description == "" {
		polled.Description = html.PlainText(item.Description, maxDescriptionChars)
	}

	return polled
}

// itemID prefers the video id extension, then the entry id, then the link.
func itemID(item *gofeed.Item) string {
	if videoID := firstExtension(item.Extensions, "yt", "videoId"); videoID != nil && videoID.Value != "" {
		return strings.TrimSpace(videoID.Value)
	}
	if item.GUID != "" {
		return strings.TrimPrefix(strings.TrimSpace(item.GUID), videoIDPrefix)
	}
	return strings.TrimSpace(item.Link)
}

func firstExtension(exts ext.Extensions, prefix, name string) *ext.Extension {
	if exts == nil {
		return nil
	}
	values := exts[prefix][name]
	if len(values) == 0 {
		return nil
	}
	return &values[0]
}

func firstChild(e *ext.Extension, name string) *ext.Extension {
	children := e.Children[name]
	if len(children) == 0 {
		return nil
	}
	return &children[0]
}

package entity

import "time"

// PolledItem is one piece of content currently visible on a channel.
// It is fetched fresh every cycle; only ID survives into ChannelState.
type PolledItem struct {
	ID          string
	Title       string
	PublishedAt time.Time
	URL         string
	Thumbnail   string
	Description string

	// Summary is filled in by the dispatcher when a summarizer is enabled.
	Summary string
}

func NewPolledItem(id, title, url string, publishedAt time.Time) *PolledItem {
	return &PolledItem{
		ID:          id,
		Title:       title,
		URL:         url,
		PublishedAt: publishedAt,
	}
}

func (i *PolledItem) IsNewerThan(t time.Time) bool {
	return i.PublishedAt.After(t)
}

// ItemIDs returns the ids of items in their original order, skipping empty ids.
func ItemIDs(items []*PolledItem) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item == nil || item.ID == "" {
			continue
		}
		ids = append(ids, item.ID)
	}
	return ids
}

// ChannelInfo is a channel's metadata plus its currently visible items,
// most recent first as returned by the source.
type ChannelInfo struct {
	ID          string
	Title       string
	Thumbnail   string
	Description string
	Items       []*PolledItem
}

// DisplayTitle falls back to the channel id when the source gave no title.
func (c *ChannelInfo) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return c.ID
}

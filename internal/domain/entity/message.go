package entity

import (
	"fmt"
	"strings"
	"time"
)

const publishedLayout = "January 02, 2006 at 15:04 MST"

// Message is the rendered form of one notification. Every notifier sends a
// Message as a single outbound call, whatever the number of items.
type Message struct {
	ChannelTitle string
	Subject      string
	Text         string
	Items        []*PolledItem
}

func (m *Message) IsBatch() bool {
	return len(m.Items) > 1
}

// FormatPublished renders t in loc; a zero time renders as now.
func FormatPublished(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	if t.IsZero() {
		t = time.Now()
	}
	return t.In(loc).Format(publishedLayout)
}

func NewItemMessage(channelTitle string, item *PolledItem, loc *time.Location) *Message {
	var b strings.Builder
	fmt.Fprintf(&b, "🎬 New Video: %s - %s\n", channelTitle, item.Title)
	fmt.Fprintf(&b, "📅 Published: %s\n", FormatPublished(item.PublishedAt, loc))
	b.WriteString(item.URL)
	if item.Summary != "" {
		b.WriteString("\n\n")
		b.WriteString(item.Summary)
	}

	return &Message{
		ChannelTitle: channelTitle,
		Subject:      fmt.Sprintf("🎬 New Video: %s - %s", channelTitle, item.Title),
		Text:         b.String(),
		Items:        []*PolledItem{item},
	}
}

func NewBatchMessage(channelTitle string, items []*PolledItem, loc *time.Location) *Message {
	var b strings.Builder
	fmt.Fprintf(&b, "🎬 %d New Videos from %s\n", len(items), channelTitle)
	for _, item := range items {
		fmt.Fprintf(&b, "\n• %s (%s)\n  %s", item.Title, FormatPublished(item.PublishedAt, loc), item.URL)
	}

	return &Message{
		ChannelTitle: channelTitle,
		Subject:      fmt.Sprintf("🎬 %d New Videos from %s", len(items), channelTitle),
		Text:         b.String(),
		Items:        items,
	}
}

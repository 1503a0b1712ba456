package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"channelwatch/internal/domain/entity"
)

// Discord rejects webhook payloads with more than 10 embeds.
const maxEmbeds = 10

const (
	embedColor       = 0xFF0000
	maxContentLength = 2000
	maxDescription   = 4096
)

type Config struct {
	WebhookURL string
	Username   string
	Location   *time.Location
	Timeout    time.Duration
}

// WebhookNotifier posts to a Discord incoming webhook.
type WebhookNotifier struct {
	webhookURL string
	username   string
	location   *time.Location
	client     *http.Client
}

type webhookPayload struct {
	Username string  `json:"username,omitempty"`
	Content  string  `json:"content,omitempty"`
	Embeds   []embed `json:"embeds,omitempty"`
}

type embed struct {
	Title       string          `json:"title"`
	URL         string          `json:"url,omitempty"`
	Description string          `json:"description,omitempty"`
	Color       int             `json:"color"`
	Timestamp   string          `json:"timestamp,omitempty"`
	Thumbnail   *embedThumbnail `json:"thumbnail,omitempty"`
	Footer      *embedFooter    `json:"footer,omitempty"`
}

type embedThumbnail struct {
	URL string `json:"url"`
}

type embedFooter struct {
	Text string `json:"text"`
}

func NewWebhookNotifier(cfg Config) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &WebhookNotifier{
		webhookURL: cfg.WebhookURL,
		username:   cfg.Username,
		location:   cfg.Location,
		client:     &http.Client{Timeout: timeout},
	}
}

func (n *WebhookNotifier) IsConfigured() bool {
	return n.webhookURL != ""
}

func (n *WebhookNotifier) NotifySingle(ctx context.Context, channelTitle string, item *entity.PolledItem) error {
	msg := entity.NewItemMessage(channelTitle, item, n.location)
	return n.send(ctx, &webhookPayload{
		Username: n.username,
		Content:  truncate(msg.Subject, maxContentLength),
		Embeds:   []embed{n.itemEmbed(item)},
	})
}

// NotifyBatch sends every item in one webhook call. Items past the embed
// limit are listed as links in the message content.
func (n *WebhookNotifier) NotifyBatch(ctx context.Context, channelTitle string, items []*entity.PolledItem) error {
	msg := entity.NewBatchMessage(channelTitle, items, n.location)

	payload := &webhookPayload{Username: n.username}
	var content strings.Builder
	content.WriteString(msg.Subject)

	for i, item := range items {
		if i < maxEmbeds {
			payload.Embeds = append(payload.Embeds, n.itemEmbed(item))
			continue
		}
		fmt.Fprintf(&content, "\n• %s: %s", item.Title, item.URL)
	}
	payload.Content = truncate(content.String(), maxContentLength)

	return n.send(ctx, payload)
}

func (n *WebhookNotifier) itemEmbed(item *entity.PolledItem) embed {
	e := embed{
		Title: truncate(item.Title, 256),
		URL:   item.URL,
		Color: embedColor,
		Footer: &embedFooter{
			Text: "Published: " + entity.FormatPublished(item.PublishedAt, n.location),
		},
	}
	if !item.PublishedAt.IsZero() {
		e.Timestamp = item.PublishedAt.UTC().Format(time.RFC3339)
	}
	if item.Summary != "" {
		e.Description = truncate(item.Summary, maxDescription)
	}
	if item.Thumbnail != "" {
		e.Thumbnail = &embedThumbnail{URL: item.Thumbnail}
	}
	return e
}

func (n *WebhookNotifier) send(ctx context.Context, payload *webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to Discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("Discord webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

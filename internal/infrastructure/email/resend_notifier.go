package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"github.com/resend/resend-go/v2"

	"channelwatch/internal/domain/entity"
)

const DefaultFrom = "YouTube Notifier <notifications@resend.dev>"

type Config struct {
	APIKey   string
	To       string
	From     string
	Location *time.Location
	// BaseURL overrides the Resend API endpoint.
	BaseURL string
}

// ResendNotifier sends one HTML email per notification through Resend.
type ResendNotifier struct {
	client   *resend.Client
	to       string
	from     string
	location *time.Location
}

func NewResendNotifier(cfg Config) (*ResendNotifier, error) {
	from := cfg.From
	if from == "" {
		from = DefaultFrom
	}

	n := &ResendNotifier{
		to:       cfg.To,
		from:     from,
		location: cfg.Location,
	}
	if cfg.APIKey == "" {
		return n, nil
	}

	client := resend.NewClient(cfg.APIKey)
	if cfg.BaseURL != "" {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Resend base URL: %w", err)
		}
		client.BaseURL = base
	}
	n.client = client

	return n, nil
}

func (n *ResendNotifier) IsConfigured() bool {
	return n.client != nil && n.to != ""
}

func (n *ResendNotifier) NotifySingle(ctx context.Context, channelTitle string, item *entity.PolledItem) error {
	msg := entity.NewItemMessage(channelTitle, item, n.location)
	return n.send(ctx, msg, singleTemplate)
}

func (n *ResendNotifier) NotifyBatch(ctx context.Context, channelTitle string, items []*entity.PolledItem) error {
	msg := entity.NewBatchMessage(channelTitle, items, n.location)
	return n.send(ctx, msg, batchTemplate)
}

func (n *ResendNotifier) send(ctx context.Context, msg *entity.Message, tmpl *template.Template) error {
	if !n.IsConfigured() {
		return fmt.Errorf("email notifier: missing API key or recipient")
	}

	body, err := n.render(msg, tmpl)
	if err != nil {
		return err
	}

	_, err = n.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{n.to},
		Subject: msg.Subject,
		Html:    body,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to send email via Resend: %w", err)
	}

	return nil
}

type emailItem struct {
	Title     string
	URL       string
	Thumbnail string
	Summary   string
	Published string
}

type emailView struct {
	ChannelTitle string
	Count        int
	Items        []emailItem
}

func (n *ResendNotifier) render(msg *entity.Message, tmpl *template.Template) (string, error) {
	view := emailView{
		ChannelTitle: msg.ChannelTitle,
		Count:        len(msg.Items),
	}
	for _, item := range msg.Items {
		view.Items = append(view.Items, emailItem{
			Title:     item.Title,
			URL:       item.URL,
			Thumbnail: item.Thumbnail,
			Summary:   item.Summary,
			Published: entity.FormatPublished(item.PublishedAt, n.location),
		})
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return buf.String(), nil
}

package misskey

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"channelwatch/internal/domain/entity"
)

// Config describes the Misskey account. MaxPermits notes may be posted in a
// burst; after that one permit comes back every RefillInterval.
type Config struct {
	Host           string
	AuthToken      string
	Visibility     entity.NoteVisibility
	LocalOnly      bool
	MaxPermits     int
	RefillInterval time.Duration
	// Location is used for published dates; nil means UTC.
	Location *time.Location
}

// NoteNotifier posts one Misskey note per notification.
type NoteNotifier struct {
	host        string
	authToken   string
	visibility  entity.NoteVisibility
	localOnly   bool
	location    *time.Location
	client      *http.Client
	rateLimiter *rate.Limiter
}

func NewNoteNotifier(cfg Config) *NoteNotifier {
	maxPermits := cfg.MaxPermits
	if maxPermits == 0 {
		maxPermits = 3
	}
	refillInterval := cfg.RefillInterval
	if refillInterval == 0 {
		refillInterval = 10 * time.Second
	}
	visibility := cfg.Visibility
	if visibility == "" {
		visibility = entity.VisibilityHome
	}

	return &NoteNotifier{
		host:        cfg.Host,
		authToken:   cfg.AuthToken,
		visibility:  visibility,
		localOnly:   cfg.LocalOnly,
		location:    cfg.Location,
		client:      &http.Client{Timeout: 30 * time.Second},
		rateLimiter: rate.NewLimiter(rate.Every(refillInterval), maxPermits),
	}
}

func (n *NoteNotifier) IsConfigured() bool {
	return n.host != "" && n.authToken != ""
}

func (n *NoteNotifier) NotifySingle(ctx context.Context, channelTitle string, item *entity.PolledItem) error {
	msg := entity.NewItemMessage(channelTitle, item, n.location)
	return n.post(ctx, entity.NewNoteFromMessage(msg, n.visibility))
}

func (n *NoteNotifier) NotifyBatch(ctx context.Context, channelTitle string, items []*entity.PolledItem) error {
	msg := entity.NewBatchMessage(channelTitle, items, n.location)
	return n.post(ctx, entity.NewNoteFromMessage(msg, n.visibility))
}

func (n *NoteNotifier) post(ctx context.Context, note *entity.Note) error {
	if err := n.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	notePayload := map[string]interface{}{
		"i":          n.authToken,
		"text":       note.Text,
		"visibility": string(note.Visibility),
		"localOnly":  n.localOnly,
	}

	payload, err := json.Marshal(notePayload)
	if err != nil {
		return fmt.Errorf("failed to serialize note: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint(), bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to Misskey API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Misskey API returned non-OK status: %d", resp.StatusCode)
	}

	return nil
}

func (n *NoteNotifier) endpoint() string {
	url := strings.TrimRight(n.host, "/")
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	return url + "/api/notes/create"
}

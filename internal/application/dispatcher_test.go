package application

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestDispatcher_BatchesMultipleItems(t *testing.T) {
	notifier := newMockNotifier()
	dispatcher := NewDispatcher(notifier, nil, zap.NewNop())

	ok := dispatcher.Dispatch(context.Background(), "Creator", items("v3", "v2", "v1"))
	if !ok {
		t.Fatal("expected dispatch to succeed")
	}

	if notifier.callCount() != 1 {
		t.Fatalf("expected exactly 1 notifier call, got %d", notifier.callCount())
	}
	call := notifier.calls[0]
	if !call.batch {
		t.Error("expected batch notification")
	}
	if len(call.items) != 3 {
		t.Errorf("expected 3 items in batch, got %d", len(call.items))
	}
	if call.channel != "Creator" {
		t.Errorf("expected channel title Creator, got %s", call.channel)
	}
}

func TestDispatcher_SingleItem(t *testing.T) {
	notifier := newMockNotifier()
	dispatcher := NewDispatcher(notifier, nil, zap.NewNop())

	if !dispatcher.Dispatch(context.Background(), "Creator", items("v1")) {
		t.Fatal("expected dispatch to succeed")
	}
	if notifier.callCount() != 1 || notifier.calls[0].batch {
		t.Errorf("expected one single notification, got %+v", notifier.calls)
	}
}

func TestDispatcher_NoCallCases(t *testing.T) {
	tests := []struct {
		name       string
		configured bool
		n          int
	}{
		{name: "empty items", configured: true, n: 0},
		{name: "not configured", configured: false, n: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := newMockNotifier()
			notifier.configured = tt.configured
			dispatcher := NewDispatcher(notifier, nil, zap.NewNop())

			var ids []string
			for i := 0; i < tt.n; i++ {
				ids = append(ids, string(rune('a'+i)))
			}

			if dispatcher.Dispatch(context.Background(), "Creator", items(ids...)) {
				t.Error("expected dispatch to report false")
			}
			if notifier.callCount() != 0 {
				t.Errorf("expected no notifier calls, got %d", notifier.callCount())
			}
		})
	}
}

func TestDispatcher_NilNotifier(t *testing.T) {
	dispatcher := NewDispatcher(nil, nil, zap.NewNop())
	if dispatcher.Dispatch(context.Background(), "Creator", items("v1")) {
		t.Error("expected dispatch without notifier to report false")
	}
}

func TestDispatcher_DeliveryFailure(t *testing.T) {
	notifier := newMockNotifier()
	notifier.err = errors.New("provider unavailable")
	dispatcher := NewDispatcher(notifier, nil, zap.NewNop())

	if dispatcher.Dispatch(context.Background(), "Creator", items("v2", "v1")) {
		t.Error("expected dispatch to report false on delivery failure")
	}
	if notifier.callCount() != 1 {
		t.Errorf("expected a single attempt, got %d", notifier.callCount())
	}
}

func TestDispatcher_SummarizesSingleItem(t *testing.T) {
	notifier := newMockNotifier()
	summarizer := &mockSummarizer{enabled: true, summary: "A short summary"}
	dispatcher := NewDispatcher(notifier, summarizer, zap.NewNop())

	item := items("v1")
	item[0].Description = "A long description of the video."

	if !dispatcher.Dispatch(context.Background(), "Creator", item) {
		t.Fatal("expected dispatch to succeed")
	}

	sent := notifier.calls[0].items[0]
	if sent.Summary != "A short summary" {
		t.Errorf("expected summary on sent item, got %q", sent.Summary)
	}
	if item[0].Summary != "" {
		t.Error("expected caller's item to be left unchanged")
	}
}

func TestDispatcher_SummarizerSkippedOrFailing(t *testing.T) {
	tests := []struct {
		name        string
		summarizer  *mockSummarizer
		description string
		n           int
		wantCalls   int
	}{
		{name: "disabled", summarizer: &mockSummarizer{enabled: false, summary: "x"}, description: "desc", n: 1, wantCalls: 0},
		{name: "no description", summarizer: &mockSummarizer{enabled: true, summary: "x"}, description: "", n: 1, wantCalls: 0},
		{name: "batch", summarizer: &mockSummarizer{enabled: true, summary: "x"}, description: "desc", n: 2, wantCalls: 0},
		{name: "error", summarizer: &mockSummarizer{enabled: true, err: errors.New("quota")}, description: "desc", n: 1, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := newMockNotifier()
			dispatcher := NewDispatcher(notifier, tt.summarizer, zap.NewNop())

			current := items("v1", "v2")[:tt.n]
			for _, item := range current {
				item.Description = tt.description
			}

			if !dispatcher.Dispatch(context.Background(), "Creator", current) {
				t.Fatal("expected dispatch to succeed")
			}
			if tt.summarizer.calls != tt.wantCalls {
				t.Errorf("expected %d summarizer calls, got %d", tt.wantCalls, tt.summarizer.calls)
			}
			for _, sent := range notifier.calls[0].items {
				if sent.Summary != "" {
					t.Errorf("expected no summary, got %q", sent.Summary)
				}
			}
		})
	}
}

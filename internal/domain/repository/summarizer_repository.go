package repository

import "context"

// SummarizerRepository condenses an item description for notifications.
type SummarizerRepository interface {
	// Summarize returns a short summary of content; title is context only.
	Summarize(ctx context.Context, content, title string) (string, error)

	IsEnabled() bool
}

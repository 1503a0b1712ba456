package llm

import (
	"context"
	"fmt"
	"time"

	"channelwatch/internal/domain/repository"
)

// Config configures the optional description summarizer.
type Config struct {
	Provider          string // "gemini", "bedrock" or "noop" (empty means "noop")
	APIKey            string
	Model             string
	MaxTokens         int
	SystemInstruction string
	Timeout           time.Duration
	// Region is required by bedrock.
	Region string
	// BaseURL overrides the Gemini API endpoint.
	BaseURL string
}

const DefaultSystemInstruction = `You summarize video descriptions for a notification.
- Write 2 to 3 short sentences.
- Keep names, dates and numbers exactly as given.
- Skip links, sponsor segments and social media handles.
- Answer in the language of the description.`

const maxInputChars = 4000

func NewSummarizerRepository(ctx context.Context, cfg Config) (repository.SummarizerRepository, error) {
	switch cfg.Provider {
	case "gemini":
		return newGeminiSummarizer(ctx, cfg)
	case "bedrock":
		return newBedrockSummarizer(ctx, cfg)
	case "noop", "":
		return newNoopSummarizer(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
}

func buildPrompt(content, title string) string {
	r := []rune(content)
	if len(r) > maxInputChars {
		content = string(r[:maxInputChars]) + "..."
	}
	return fmt.Sprintf("Video title: %s\n\nDescription:\n%s", title, content)
}

// noopSummarizer is used when summaries are disabled.
type noopSummarizer struct{}

func newNoopSummarizer() repository.SummarizerRepository {
	return &noopSummarizer{}
}

func (s *noopSummarizer) Summarize(ctx context.Context, content, title string) (string, error) {
	return "", nil
}

func (s *noopSummarizer) IsEnabled() bool {
	return false
}

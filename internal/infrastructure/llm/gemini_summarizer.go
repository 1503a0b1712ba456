package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"channelwatch/internal/domain/repository"
)

// geminiSummarizer calls the Gemini API through the genai SDK.
type geminiSummarizer struct {
	client       *genai.Client
	model        string
	maxTokens    *int32
	systemPrompt string
	timeout      time.Duration
}

func newGeminiSummarizer(ctx context.Context, cfg Config) (repository.SummarizerRepository, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("Gemini model name is required")
	}

	systemPrompt := cfg.SystemInstruction
	if systemPrompt == "" {
		systemPrompt = DefaultSystemInstruction
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	// unset means the model's own output limit
	var maxTokens *int32
	if cfg.MaxTokens > 0 {
		maxTokens = genai.Ptr(int32(cfg.MaxTokens))
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &geminiSummarizer{
		client:       client,
		model:        cfg.Model,
		maxTokens:    maxTokens,
		systemPrompt: systemPrompt,
		timeout:      timeout,
	}, nil
}

func (s *geminiSummarizer) Summarize(ctx context.Context, content, title string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Models.GenerateContent(ctx, s.model,
		genai.Text(buildPrompt(content, title)), s.generateConfig())
	if err != nil {
		return "", fmt.Errorf("failed to call Gemini API: %w", err)
	}

	summary := strings.TrimSpace(resp.Text())
	if summary == "" {
		return "", fmt.Errorf("no summary returned from Gemini API")
	}

	return summary, nil
}

func (s *geminiSummarizer) IsEnabled() bool {
	return true
}

func (s *geminiSummarizer) generateConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(s.systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.3),
	}
	if s.maxTokens != nil {
		cfg.MaxOutputTokens = *s.maxTokens
	}
	return cfg
}

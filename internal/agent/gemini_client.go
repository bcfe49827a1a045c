package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

var errEmptyCompletion = errors.New("model returned an empty completion")

// GeminiClient calls the Gemini API through the genai SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiClient creates a client for the configured model.
func NewGeminiClient(ctx context.Context, cfg Config, logger *slog.Logger) (*GeminiClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger.Info("Gemini client ready", "model", cfg.Model)
	return &GeminiClient{client: client, model: cfg.Model, logger: logger}, nil
}

// Complete sends prompt as a single user turn and returns the text reply.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}

// Close releases resources. The genai client holds no connections.
func (c *GeminiClient) Close() error {
	return nil
}

type disabledCompleter struct{}

func (disabledCompleter) Complete(context.Context, string) (string, error) {
	return "", ErrDisabled
}

func (disabledCompleter) Close() error { return nil }

// Disabled returns a Completer that always fails with ErrDisabled.
func Disabled() Completer {
	return disabledCompleter{}
}

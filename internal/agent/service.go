package agent

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Service provides language-model completions with a per-call timeout.
type Service struct {
	completer Completer
	timeout   time.Duration
	model     string
	enabled   bool
	requests  atomic.Int64
	failures  atomic.Int64
}

// NewService creates a service over completer. A nil completer disables the model.
func NewService(completer Completer, cfg Config) *Service {
	enabled := completer != nil
	if completer == nil {
		completer = Disabled()
	}
	return &Service{
		completer: completer,
		timeout:   cfg.Timeout,
		model:     cfg.Model,
		enabled:   enabled,
	}
}

// NewServiceFromConfig builds a Gemini-backed service when an API key is
// configured and a disabled one otherwise.
func NewServiceFromConfig(ctx context.Context, cfg Config, logger *slog.Logger) *Service {
	if cfg.APIKey == "" {
		slog.Info("AI features disabled (GEMINI_API_KEY not set)")
		return NewService(nil, cfg)
	}

	client, err := NewGeminiClient(ctx, cfg, logger)
	if err != nil {
		slog.Warn("Failed to initialize Gemini client, AI features will be disabled", "error", err)
		return NewService(nil, cfg)
	}
	return NewService(client, cfg)
}

// Complete forwards prompt to the model.
func (s *Service) Complete(ctx context.Context, prompt string) (string, error) {
	s.requests.Add(1)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		s.failures.Add(1)
		slog.Warn("Model completion failed", "error", err, "prompt_length", len(prompt))
		return "", err
	}

	slog.Debug("Model completion", "prompt_length", len(prompt), "reply_length", len(reply), "duration", time.Since(start))
	return reply, nil
}

// GetStats returns agent statistics.
func (s *Service) GetStats() Stats {
	return Stats{
		Enabled:  s.enabled,
		Model:    s.model,
		Requests: s.requests.Load(),
		Failures: s.failures.Load(),
	}
}

// Close releases resources.
func (s *Service) Close() {
	if err := s.completer.Close(); err != nil {
		slog.Warn("failed to close completer", "error", err)
	}
}

// Package agent wraps the language model that answers free-text chat turns.
package agent

import (
	"errors"
	"time"
)

// ErrDisabled is returned when no model is configured.
var ErrDisabled = errors.New("language model is not configured")

// Config holds agent configuration.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// DefaultConfig returns default agent configuration.
func DefaultConfig() Config {
	return Config{
		Model:   "gemini-2.0-flash",
		Timeout: 60 * time.Second,
	}
}

// Stats contains agent call counters.
type Stats struct {
	Enabled  bool   `json:"enabled"`
	Model    string `json:"model,omitempty"`
	Requests int64  `json:"requests"`
	Failures int64  `json:"failures"`
}

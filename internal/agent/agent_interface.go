package agent

import (
	"context"
)

// Completer is the external language-model capability: given a text prompt,
// return a text completion.
type Completer interface {
	// Complete sends prompt to the model and returns its text reply.
	Complete(ctx context.Context, prompt string) (string, error)

	// Close releases resources.
	Close() error
}

// Ensure implementations satisfy Completer.
var (
	_ Completer = (*GeminiClient)(nil)
	_ Completer = disabledCompleter{}
)

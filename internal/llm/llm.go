// Package llm provides the text-generation backends agents use for
// their analysis summaries: a rule-based mock for development and an
// Ollama client for local models.
package llm

import (
	"context"
	"fmt"

	"github.com/supplystack/chaincommand/internal/config"
	"github.com/supplystack/chaincommand/internal/logging"
)

// Client generates free-form text completions.
type Client interface {
	// Generate returns a completion for the prompt. system may be empty.
	Generate(ctx context.Context, prompt, system string) (string, error)
	// Name identifies the backend ("mock", "ollama").
	Name() string
}

// New creates the backend selected by cfg.Mode. Unknown modes fall
// back to the mock.
func New(cfg config.LLMConfig, log *logging.Logger) Client {
	switch cfg.Mode {
	case "ollama":
		return NewOllamaClient(cfg, log)
	default:
		return NewMockClient(0)
	}
}

// wrapErr annotates backend failures uniformly.
func wrapErr(backend string, err error) error {
	return fmt.Errorf("llm %s: %w", backend, err)
}

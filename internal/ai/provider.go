package ai

import "context"

// LLMProvider sends a prompt to an LLM and returns the raw text response.
// apiKey overrides the provider's configured key when non-empty.
type LLMProvider interface {
	Complete(ctx context.Context, apiKey, prompt string) (string, error)
}

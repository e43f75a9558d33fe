package provider

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/searchbrief/config"
	openai_provider "github.com/mohammad-safakhou/searchbrief/provider/openai"
)

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	// Stream returns non-empty content deltas on an unbuffered channel. The
	// error channel yields at most one value after tokens is closed.
	Stream(ctx context.Context, req openai_provider.Request) (<-chan string, <-chan error)
	Complete(ctx context.Context, req openai_provider.Request) (string, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	return openai_provider.NewOpenAIClient(cfg), nil
}

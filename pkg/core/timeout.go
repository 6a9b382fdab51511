package core

import (
	"context"
	"time"

	"github.com/collectiq/agentmem-go/pkg/embedder"
	"github.com/collectiq/agentmem-go/pkg/llm"
)

// timeoutLLM bounds every completion call with a per-call deadline, so one
// slow provider call can never stall a pipeline stage past the configured
// budget.
type timeoutLLM struct {
	llm.Provider
	timeout time.Duration
}

// withLLMTimeout wraps the provider. A non-positive timeout returns the
// provider unwrapped.
func withLLMTimeout(provider llm.Provider, timeout time.Duration) llm.Provider {
	if timeout <= 0 {
		return provider
	}
	return &timeoutLLM{Provider: provider, timeout: timeout}
}

func (t *timeoutLLM) Complete(ctx context.Context, messages []llm.Message, opts ...llm.CompletionOption) (*llm.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Provider.Complete(ctx, messages, opts...)
}

// timeoutEmbedder bounds every embedding call with a per-call deadline.
type timeoutEmbedder struct {
	embedder.Provider
	timeout time.Duration
}

// withEmbedderTimeout wraps the provider. A non-positive timeout returns the
// provider unwrapped.
func withEmbedderTimeout(provider embedder.Provider, timeout time.Duration) embedder.Provider {
	if timeout <= 0 {
		return provider
	}
	return &timeoutEmbedder{Provider: provider, timeout: timeout}
}

func (t *timeoutEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Provider.Embed(ctx, text)
}

func (t *timeoutEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Provider.EmbedBatch(ctx, texts)
}

// Package llm defines the language model collaborator contract.
//
// It provides the Provider interface every backing implementation must
// satisfy, along with message types and completion options. The memory
// pipeline treats providers as black boxes that either return a
// completion or fail; retry, backoff, and multi-provider fallback live
// behind the Provider, never in front of it.
package llm

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider defines the interface for language model providers.
type Provider interface {
	// Complete generates a completion from a conversation.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - messages: Conversation history (system, user, assistant messages)
	//   - opts: Optional completion parameters (temperature, max tokens, etc.)
	//
	// Returns the completion with content, model, token usage, and
	// estimated cost, or an error.
	Complete(ctx context.Context, messages []Message, opts ...CompletionOption) (*Completion, error)

	// Close closes the provider and releases resources.
	Close() error
}

// Message represents a single message in a conversation.
type Message struct {
	// Role is the message role: "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the message content text.
	Content string `json:"content"`
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the result of one Complete call.
type Completion struct {
	// Content is the generated text.
	Content string

	// Model is the model that produced the content.
	Model string

	// Usage is the token consumption reported by the provider.
	Usage Usage

	// Cost is the estimated cost in USD, zero when the model has no
	// known pricing.
	Cost float64
}

// CompletionOptions contains options for completion requests.
type CompletionOptions struct {
	// Temperature controls randomness (0.0-2.0). Higher = more random.
	Temperature float64

	// MaxTokens limits the maximum number of tokens in the response.
	MaxTokens int

	// TopP controls nucleus sampling (0.0-1.0). Higher = more diverse.
	TopP float64

	// Stop contains stop sequences that will end generation.
	Stop []string

	// JSONResponse asks the provider for a JSON object response.
	// Providers without a native JSON mode treat it as advisory.
	JSONResponse bool
}

// CompletionOption is a function type for configuring completion options.
type CompletionOption func(*CompletionOptions)

// WithTemperature sets the sampling temperature.
//
// Example:
//
//	out, _ := provider.Complete(ctx, msgs, llm.WithTemperature(0.2))
func WithTemperature(temp float64) CompletionOption {
	return func(opts *CompletionOptions) {
		opts.Temperature = temp
	}
}

// WithMaxTokens sets the maximum number of tokens in the response.
func WithMaxTokens(max int) CompletionOption {
	return func(opts *CompletionOptions) {
		opts.MaxTokens = max
	}
}

// WithTopP sets the top-p (nucleus sampling) parameter.
func WithTopP(topP float64) CompletionOption {
	return func(opts *CompletionOptions) {
		opts.TopP = topP
	}
}

// WithStop sets stop sequences.
func WithStop(stop ...string) CompletionOption {
	return func(opts *CompletionOptions) {
		opts.Stop = stop
	}
}

// WithJSONResponse asks for a JSON object response. Used by every
// pipeline step that parses structured model output.
func WithJSONResponse() CompletionOption {
	return func(opts *CompletionOptions) {
		opts.JSONResponse = true
	}
}

// ApplyCompletionOptions applies CompletionOption functions over the
// defaults: Temperature=0.7, MaxTokens=1000, TopP=1.0.
func ApplyCompletionOptions(opts []CompletionOption) *CompletionOptions {
	options := &CompletionOptions{
		Temperature: 0.7,
		MaxTokens:   1000,
		TopP:        1.0,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

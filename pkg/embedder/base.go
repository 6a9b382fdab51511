// Package embedder defines the embedding collaborator contract.
//
// It provides the Provider interface for text-to-vector conversion used
// before every archive operation, plus a caching decorator that spares
// repeat texts a round trip. Both collections store 1536-dimension
// vectors by default; Dimensions reports what a provider actually
// produces so stores can validate before writing.
package embedder

import "context"

// Provider defines the interface for embedding providers.
type Provider interface {
	// Embed converts a text string into a vector embedding.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - text: The input text to embed
	//
	// Returns the embedding vector and any error.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch converts multiple text strings into vector embeddings.
	//
	// More efficient than calling Embed repeatedly; the result order
	// matches the input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the dimension of vectors produced by this
	// provider.
	Dimensions() int

	// Close closes the provider and releases resources.
	Close() error
}

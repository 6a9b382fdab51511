package embedder

import (
	"context"

	"github.com/dgraph-io/ristretto"
)

// DefaultCacheSize is the entry budget when none is configured.
const DefaultCacheSize = 10_000

// Cached is a read-through cache in front of another Provider. Queries
// and conversation transcripts repeat heavily during consolidation and
// retrieval; caching by exact text avoids re-embedding them.
type Cached struct {
	provider Provider
	cache    *ristretto.Cache
}

// NewCached wraps a provider with an in-memory cache holding up to
// maxEntries embeddings (DefaultCacheSize when non-positive).
func NewCached(provider Provider, maxEntries int64) (*Cached, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheSize
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &Cached{
		provider: provider,
		cache:    cache,
	}, nil
}

// Embed returns the cached vector for the text, or delegates and caches.
func (c *Cached) Embed(ctx context.Context, text string) ([]float64, error) {
	if cached, ok := c.cache.Get(text); ok {
		if vector, ok := cached.([]float64); ok {
			return vector, nil
		}
	}

	vector, err := c.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, vector, 1)
	return vector, nil
}

// EmbedBatch serves what it can from the cache and delegates the misses
// in one provider call.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	results := make([][]float64, len(texts))

	var misses []string
	var missIndexes []int
	for i, text := range texts {
		if cached, ok := c.cache.Get(text); ok {
			if vector, ok := cached.([]float64); ok {
				results[i] = vector
				continue
			}
		}
		misses = append(misses, text)
		missIndexes = append(missIndexes, i)
	}
	if len(misses) == 0 {
		return results, nil
	}

	vectors, err := c.provider.EmbedBatch(ctx, misses)
	if err != nil {
		return nil, err
	}
	for j, vector := range vectors {
		results[missIndexes[j]] = vector
		c.cache.Set(misses[j], vector, 1)
	}
	return results, nil
}

// Dimensions reports the wrapped provider's dimensionality.
func (c *Cached) Dimensions() int {
	return c.provider.Dimensions()
}

// Wait blocks until buffered cache writes are applied. Only needed when
// a test wants deterministic hit behavior.
func (c *Cached) Wait() {
	c.cache.Wait()
}

// Close releases the cache and the wrapped provider.
func (c *Cached) Close() error {
	c.cache.Close()
	return c.provider.Close()
}

// Package archive defines the vector archive contract: the durable,
// similarity-searchable store holding episodic and semantic memories.
//
// All backends (qdrant, postgres/pgvector, sqlite, chromem) expose the same
// interface over two fixed collections, both using cosine similarity at the
// configured dimensionality. Records travel as id + vector + payload map;
// the payload layout is defined by the codecs in pkg/types.
package archive

import (
	"context"
	"time"
)

const (
	// CollectionEpisodic holds archived interactions.
	CollectionEpisodic = "episodic_memories"

	// CollectionSemantic holds distilled strategies.
	CollectionSemantic = "semantic_memories"

	// DefaultDimensions is the embedding dimensionality both collections
	// are created with unless configured otherwise.
	DefaultDimensions = 1536
)

// Record is one archived entry: the unit all backends store and return.
type Record struct {
	// ID is the unique identifier within the collection.
	ID string

	// Vector is the embedding used for similarity search.
	Vector []float64

	// Payload carries the memory fields, keyed per the pkg/types codecs.
	Payload map[string]interface{}

	// Score is the cosine similarity from search operations, in [0, 1].
	// Unset for Upsert and GetByID.
	Score float64
}

// Filter narrows searches, counts, and deletions. Zero values mean "no
// constraint". Fields apply to whichever collection defines them; backends
// ignore the rest.
type Filter struct {
	// CustomerID matches episodic records for one customer.
	CustomerID string

	// CampaignID matches episodic records for one campaign.
	CampaignID string

	// AgentType matches episodic records by channel.
	AgentType string

	// RiskTiers matches records applicable to any of the given tiers:
	// the context snapshot tier for episodic records, the applicability
	// tier list for semantic records.
	RiskTiers []string

	// SuccessOnly keeps episodic records whose outcome succeeded.
	SuccessOnly bool

	// Tags keeps episodic records carrying all of the given tags.
	Tags []string

	// Category matches semantic records in one category.
	Category string

	// MinSuccessRate keeps semantic records at or above the rate.
	MinSuccessRate float64

	// MinConfidence keeps semantic records at or above the confidence.
	MinConfidence float64

	// OlderThan keeps records whose primary timestamp precedes the bound.
	// Used by the retention purge.
	OlderThan *time.Time
}

// IsZero reports whether the filter constrains anything.
func (f *Filter) IsZero() bool {
	if f == nil {
		return true
	}
	return f.CustomerID == "" && f.CampaignID == "" && f.AgentType == "" &&
		len(f.RiskTiers) == 0 && !f.SuccessOnly && len(f.Tags) == 0 &&
		f.Category == "" && f.MinSuccessRate == 0 && f.MinConfidence == 0 &&
		f.OlderThan == nil
}

// SearchParams bounds a similarity search.
type SearchParams struct {
	// Filter narrows the candidate set. Nil searches the whole collection.
	Filter *Filter

	// Limit caps the number of results. Non-positive falls back to 10.
	Limit int

	// ScoreThreshold excludes results scoring below it. Exclusion, not
	// reordering: a result under the threshold never appears.
	ScoreThreshold float64
}

// EffectiveLimit resolves the limit default.
func (p *SearchParams) EffectiveLimit() int {
	if p == nil || p.Limit <= 0 {
		return 10
	}
	return p.Limit
}

// Store is the archive interface all backends implement.
type Store interface {
	// EnsureCollections creates or validates both collections.
	EnsureCollections(ctx context.Context) error

	// Upsert writes records, replacing entries that share an id.
	Upsert(ctx context.Context, collection string, records []*Record) error

	// Search returns the records most similar to the query vector, highest
	// score first, honoring the filter, limit, and score threshold.
	Search(ctx context.Context, collection string, vector []float64, params *SearchParams) ([]*Record, error)

	// GetByID returns one record, or memerr.ErrNotFound.
	GetByID(ctx context.Context, collection, id string) (*Record, error)

	// DeleteByFilter removes every record matching the filter and reports
	// how many were removed. A nil or zero filter is rejected with
	// memerr.ErrValidation: full truncation must be explicit at the
	// backend level, not an accidental empty filter.
	DeleteByFilter(ctx context.Context, collection string, f *Filter) (int64, error)

	// Count reports how many records match the filter (all, when nil).
	Count(ctx context.Context, collection string, f *Filter) (int64, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}

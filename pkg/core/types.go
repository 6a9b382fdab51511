package core

import (
	"time"

	"github.com/collectiq/agentmem-go/pkg/retrieval"
	"github.com/collectiq/agentmem-go/pkg/types"
)

// QueryResult is the merged outcome of a two-tier Query.
//
// Example:
//
//	result, _ := client.Query(ctx, "payment plan objections",
//	    core.WithCustomerID("cust_001"),
//	)
//	if result.CurrentSession != nil {
//	    fmt.Println("mid-conversation, state:", result.CurrentSession.CurrentState)
//	}
//	for _, m := range result.EpisodicMemories {
//	    fmt.Println(m.Score, m.Outcome.Success)
//	}
type QueryResult struct {
	// CurrentSession is the customer's newest live session, when a customer
	// id was given and a live session exists. Nil otherwise.
	CurrentSession *types.Session `json:"current_session,omitempty"`

	// EpisodicMemories are the matching archived interactions, highest
	// score first.
	EpisodicMemories []*types.EpisodicMemory `json:"episodic_memories"`

	// SemanticMemories are the matching distilled strategies, highest
	// score first.
	SemanticMemories []*types.SemanticMemory `json:"semantic_memories"`

	// TotalResults counts the merged archive matches across both tiers.
	TotalResults int `json:"total_results"`

	// QueryTime is how long the lookup took.
	QueryTime time.Duration `json:"query_time"`
}

// Stats aggregates population counts across both memory tiers.
type Stats struct {
	// LiveSessions is the number of sessions currently in the cache.
	LiveSessions int64 `json:"live_sessions"`

	// IndexedSessions is the number of entries in the expiry index. It can
	// trail LiveSessions while claimed sessions await deletion.
	IndexedSessions int64 `json:"indexed_sessions"`

	// EpisodicCount is the number of archived interactions.
	EpisodicCount int64 `json:"episodic_count"`

	// SemanticCount is the number of distilled strategies.
	SemanticCount int64 `json:"semantic_count"`

	// Segments holds the performance metrics per (query type, risk tier)
	// segment, keyed "queryType|riskTier".
	Segments map[string]retrieval.SegmentMetrics `json:"segments"`
}

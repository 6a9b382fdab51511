package retrieval

import (
	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/types"
)

// QueryType classifies how much retrieval work a query needs.
type QueryType string

const (
	// QueryTypeSimple is a single-fact lookup answered by one search.
	QueryTypeSimple QueryType = "simple"

	// QueryTypeComplex needs several angles on the same question.
	QueryTypeComplex QueryType = "complex"

	// QueryTypeMultiStep needs an ordered sequence of sub-questions.
	QueryTypeMultiStep QueryType = "multi_step"
)

// QueryIntent is the outcome of intent analysis: what kind of query this
// is and what information it needs.
type QueryIntent struct {
	// Type is the query classification.
	Type QueryType `json:"type"`

	// Intent is the model's one-line restatement of what the caller wants.
	Intent string `json:"intent"`

	// Complexity estimates query difficulty in [0, 1].
	Complexity float64 `json:"complexity"`

	// RequiredInformation lists the information items the query needs.
	RequiredInformation []string `json:"required_information"`
}

// Strategy is the retrieval plan for one query: which collections to
// search, how the candidate set is narrowed, and how many results survive.
type Strategy struct {
	// UseEpisodic enables searching archived interactions.
	UseEpisodic bool

	// UseSemantic enables searching distilled strategies.
	UseSemantic bool

	// Filter narrows both collections; each field binds to the
	// collection that defines it.
	Filter *archive.Filter

	// Limit caps the merged result count after dedup and re-ranking.
	Limit int

	// Rerank requests an LLM re-ordering pass when the candidate set
	// exceeds Limit.
	Rerank bool
}

// Request carries a query and its caller context into the pipeline.
type Request struct {
	// Query is the natural-language question.
	Query string

	// CustomerID scopes episodic matches to one customer when set.
	CustomerID string

	// CampaignID scopes episodic matches to one campaign when set.
	CampaignID string

	// AgentType scopes episodic matches to one channel when set.
	AgentType string

	// Context is the live conversation context, when known.
	Context *CustomerContext
}

// CustomerContext is what the caller knows about the customer mid-call.
type CustomerContext struct {
	RiskTier       string  `json:"risk_tier"`
	PaymentHistory string  `json:"payment_history"`
	PriorAttempts  int     `json:"prior_attempts"`
	DaysOverdue    int     `json:"days_overdue"`
	AmountDue      float64 `json:"amount_due"`
}

// Candidate is one scored archive hit flowing through the pipeline,
// tagged with the collection it came from.
type Candidate struct {
	// Collection is the archive collection that produced the record.
	Collection string

	// Record is the raw scored record.
	Record *archive.Record
}

// SimilarCase is a rendered episodic match.
type SimilarCase struct {
	ID        string   `json:"id"`
	Summary   string   `json:"summary"`
	RiskTier  string   `json:"risk_tier"`
	Success   bool     `json:"success"`
	Amount    float64  `json:"amount"`
	Channel   string   `json:"channel"`
	Sentiment string   `json:"sentiment"`
	Tags      []string `json:"tags"`
	Score     float64  `json:"score"`
}

// RelevantStrategy is a rendered semantic match.
type RelevantStrategy struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	SuccessRate  float64 `json:"success_rate"`
	TimesApplied int     `json:"times_applied"`
	Confidence   float64 `json:"confidence"`
	Score        float64 `json:"score"`
}

// AssembledContext is the pipeline's final product: everything an agent
// needs to handle the conversation, plus the typed memories it was built
// from for callers that want the raw material.
type AssembledContext struct {
	// Query is the original question.
	Query string `json:"query"`

	// Intent is the classification the pipeline ran under.
	Intent *QueryIntent `json:"intent"`

	// SimilarCases summarizes the episodic matches.
	SimilarCases []SimilarCase `json:"similar_cases"`

	// RelevantStrategies summarizes the semantic matches.
	RelevantStrategies []RelevantStrategy `json:"relevant_strategies"`

	// KeyInsights are deduplicated observations derived from the matches.
	KeyInsights []string `json:"key_insights"`

	// Recommendations suggest how to proceed.
	Recommendations []string `json:"recommendations"`

	// Confidence scores how well-grounded this context is, in [0, 1].
	Confidence float64 `json:"confidence"`

	// Episodic holds the decoded episodic matches backing SimilarCases.
	Episodic []*types.EpisodicMemory `json:"-"`

	// Semantic holds the decoded semantic matches backing RelevantStrategies.
	Semantic []*types.SemanticMemory `json:"-"`
}

// MergedCount reports how many archive matches the context was built from.
func (c *AssembledContext) MergedCount() int {
	if c == nil {
		return 0
	}
	return len(c.Episodic) + len(c.Semantic)
}

// QualityAssessment scores a candidate agent response against the
// assembled context. All dimensions are in [0, 1].
type QualityAssessment struct {
	Accuracy     float64 `json:"accuracy"`
	Relevance    float64 `json:"relevance"`
	Completeness float64 `json:"completeness"`
	Compliance   float64 `json:"compliance"`
	Overall      float64 `json:"overall"`
	Passed       bool    `json:"passed"`
	Feedback     string  `json:"feedback,omitempty"`
}

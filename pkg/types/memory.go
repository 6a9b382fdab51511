package types

import (
	"math"
	"time"
)

// Sentiment is the overall tone of an archived interaction.
type Sentiment string

const (
	// SentimentPositive marks a cooperative interaction.
	SentimentPositive Sentiment = "positive"

	// SentimentNeutral marks an indifferent interaction and is the fallback
	// when analysis fails.
	SentimentNeutral Sentiment = "neutral"

	// SentimentNegative marks a hostile or resistant interaction.
	SentimentNegative Sentiment = "negative"
)

// Valid reports whether the sentiment is one of the known values.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Outcome records how an interaction ended.
type Outcome struct {
	// Success indicates whether the interaction achieved its goal.
	Success bool `json:"success"`

	// PaymentReceived indicates whether a payment was collected.
	PaymentReceived bool `json:"payment_received"`

	// Amount is the payment amount, when one was collected.
	Amount float64 `json:"amount,omitempty"`

	// NextAction is the follow-up the agent committed to, if any.
	NextAction string `json:"next_action,omitempty"`
}

// ContextSnapshot captures the customer context at interaction time.
type ContextSnapshot struct {
	// RiskTier is the customer's risk classification (e.g. "low", "medium",
	// "high").
	RiskTier string `json:"risk_tier"`

	// PaymentHistory summarizes the customer's payment behavior
	// (e.g. "reliable", "sporadic", "delinquent").
	PaymentHistory string `json:"payment_history"`

	// PriorAttempts is the number of collection attempts before this one.
	PriorAttempts int `json:"prior_attempts"`
}

// EpisodicMemory is one archived interaction.
//
// Episodic records are immutable: they are written once by consolidation
// (or an explicit interaction store) and removed only by the age-based
// retention purge. Consolidation derives the ID deterministically from the
// session id.
type EpisodicMemory struct {
	// ID is the unique identifier (UUID string).
	ID string `json:"id"`

	// Timestamp is when the interaction happened.
	Timestamp time.Time `json:"timestamp"`

	// CustomerID identifies the customer involved.
	CustomerID string `json:"customer_id"`

	// CampaignID identifies the campaign the interaction belonged to.
	CampaignID string `json:"campaign_id"`

	// AgentType is the channel the interaction ran on.
	AgentType AgentType `json:"agent_type"`

	// Transcript is the full conversation text.
	Transcript string `json:"transcript"`

	// DurationSeconds is how long the interaction lasted.
	DurationSeconds int `json:"duration_seconds"`

	// Channel is the concrete contact channel (usually mirrors AgentType).
	Channel string `json:"channel"`

	// Outcome records how the interaction ended.
	Outcome Outcome `json:"outcome"`

	// Context is the customer context snapshot at interaction time.
	Context ContextSnapshot `json:"context"`

	// Embedding is the vector used for similarity search.
	Embedding []float64 `json:"embedding,omitempty"`

	// Tags label the interaction for filtering and insight derivation.
	Tags []string `json:"tags,omitempty"`

	// Sentiment is the overall tone of the interaction.
	Sentiment Sentiment `json:"sentiment"`

	// Score is the similarity score from search operations. Not persisted.
	Score float64 `json:"score,omitempty"`
}

// Applicability bounds the situations a strategy applies to.
type Applicability struct {
	// RiskTiers lists the customer risk tiers the strategy applies to.
	// Empty means any tier.
	RiskTiers []string `json:"risk_tiers,omitempty"`

	// MinAmount is the minimum outstanding amount, 0 for no bound.
	MinAmount float64 `json:"min_amount,omitempty"`

	// MaxAmount is the maximum outstanding amount, 0 for no bound.
	MaxAmount float64 `json:"max_amount,omitempty"`

	// MaxDaysOverdue is the maximum days overdue, 0 for no bound.
	MaxDaysOverdue int `json:"max_days_overdue,omitempty"`

	// MaxPriorAttempts is the maximum prior attempts, 0 for no bound.
	MaxPriorAttempts int `json:"max_prior_attempts,omitempty"`
}

// SemanticMemory is a distilled, reusable strategy.
//
// Unlike episodic records, semantic memories are mutable: every new
// application updates TimesApplied and SuccessRate. Those counter updates
// are serialized per memory id by the consolidator.
type SemanticMemory struct {
	// ID is the unique identifier (snowflake string).
	ID string `json:"id"`

	// Category groups strategies (e.g. "negotiation_tactics",
	// "timing_patterns", "objection_handling").
	Category string `json:"category"`

	// Title is a short name for the strategy.
	Title string `json:"title"`

	// Description summarizes when and why the strategy works.
	Description string `json:"description"`

	// Content is the full strategy text.
	Content string `json:"content"`

	// DerivedFrom lists the episodic memory ids the strategy was
	// extracted or reinforced from.
	DerivedFrom []string `json:"derived_from,omitempty"`

	// SuccessRate is the observed success fraction, in [0, 1].
	// Invariant: SuccessRate == successCount / TimesApplied.
	SuccessRate float64 `json:"success_rate"`

	// TimesApplied counts how often the strategy has been applied.
	TimesApplied int `json:"times_applied"`

	// Applicability bounds the situations the strategy applies to.
	Applicability Applicability `json:"applicability"`

	// Embedding is the vector used for similarity search.
	Embedding []float64 `json:"embedding,omitempty"`

	// Confidence is how established the strategy is, in [0, 1].
	// New strategies start at 0.7.
	Confidence float64 `json:"confidence"`

	// CreatedAt is when the strategy was first extracted.
	CreatedAt time.Time `json:"created_at"`

	// LastUpdated is when the counters were last touched.
	LastUpdated time.Time `json:"last_updated"`

	// Score is the similarity score from search operations. Not persisted.
	Score float64 `json:"score,omitempty"`
}

// SuccessCount recovers the integral success count from the stored rate and
// application counter. The persisted schema carries only the rate.
func (m *SemanticMemory) SuccessCount() int {
	if m.TimesApplied <= 0 {
		return 0
	}
	return int(math.Round(m.SuccessRate * float64(m.TimesApplied)))
}

// RecordApplication folds one more application into the counters,
// preserving SuccessRate == successCount / TimesApplied.
func (m *SemanticMemory) RecordApplication(success bool, now time.Time) {
	count := m.SuccessCount()
	if success {
		count++
	}
	m.TimesApplied++
	m.SuccessRate = float64(count) / float64(m.TimesApplied)
	m.LastUpdated = now
}

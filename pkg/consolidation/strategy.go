package consolidation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sirupsen/logrus"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/embedder"
	"github.com/collectiq/agentmem-go/pkg/llm"
	"github.com/collectiq/agentmem-go/pkg/logging"
	"github.com/collectiq/agentmem-go/pkg/memerr"
	"github.com/collectiq/agentmem-go/pkg/types"
)

// DefaultStrategyMergeThreshold is the title/description similarity above
// which a freshly extracted strategy is folded into an existing one
// instead of inserted.
const DefaultStrategyMergeThreshold = 0.85

// StrategyExtractor distills a reusable strategy from a successful
// interaction and either merges it into a near-duplicate semantic memory
// or inserts a new one.
//
// Counter updates on existing strategies are serialized per memory id, so
// concurrent sweeps reinforcing the same strategy never drop increments.
type StrategyExtractor struct {
	llm      llm.Provider
	embedder embedder.Provider
	store    archive.Store
	node     *snowflake.Node

	collection     string
	mergeThreshold float64

	locks keyedMutex
	now   func() time.Time
	log   *logrus.Entry
}

// NewStrategyExtractor creates an extractor writing to the given semantic
// collection. A non-positive mergeThreshold uses the default.
func NewStrategyExtractor(provider llm.Provider, embed embedder.Provider, store archive.Store, node *snowflake.Node, collection string, mergeThreshold float64) *StrategyExtractor {
	if collection == "" {
		collection = archive.CollectionSemantic
	}
	if mergeThreshold <= 0 {
		mergeThreshold = DefaultStrategyMergeThreshold
	}
	return &StrategyExtractor{
		llm:            provider,
		embedder:       embed,
		store:          store,
		node:           node,
		collection:     collection,
		mergeThreshold: mergeThreshold,
		now:            time.Now,
		log:            logging.Component("consolidation.strategy"),
	}
}

// ExtractAndStore distills a strategy from the archived interaction.
// Returns the stored or reinforced semantic memory, or nil when the LLM
// produced no usable candidate (extraction is best-effort).
func (e *StrategyExtractor) ExtractAndStore(ctx context.Context, memory *types.EpisodicMemory) (*types.SemanticMemory, error) {
	candidate := e.extract(ctx, memory)
	if candidate == nil {
		return nil, nil
	}

	vector, err := e.embedder.Embed(ctx, candidate.Title+": "+candidate.Description)
	if err != nil {
		return nil, memerr.Transient("consolidation.strategy", fmt.Errorf("embed strategy: %w", err))
	}

	matches, err := e.store.Search(ctx, e.collection, vector, &archive.SearchParams{
		Limit:          1,
		ScoreThreshold: e.mergeThreshold,
	})
	if err != nil {
		return nil, memerr.New("consolidation.strategy", err)
	}

	if len(matches) > 0 {
		return e.reinforce(ctx, matches[0].ID, memory.ID)
	}
	return e.insert(ctx, candidate, memory, vector)
}

// reinforce folds one more successful application into an existing
// strategy. Read-merge-write runs under the per-id lock against the
// current stored payload, so no increment is lost.
func (e *StrategyExtractor) reinforce(ctx context.Context, id, episodicID string) (*types.SemanticMemory, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	record, err := e.store.GetByID(ctx, e.collection, id)
	if err != nil {
		return nil, memerr.New("consolidation.strategy", err)
	}

	strategy := archive.SemanticFromRecord(record)
	strategy.RecordApplication(true, e.now().UTC())
	if episodicID != "" && !containsString(strategy.DerivedFrom, episodicID) {
		strategy.DerivedFrom = append(strategy.DerivedFrom, episodicID)
	}

	update := archive.RecordFromSemantic(strategy)
	if err := e.store.Upsert(ctx, e.collection, []*archive.Record{update}); err != nil {
		return nil, memerr.New("consolidation.strategy", err)
	}

	e.log.WithFields(logrus.Fields{
		"strategy_id":   id,
		"times_applied": strategy.TimesApplied,
		"success_rate":  strategy.SuccessRate,
	}).Debug("reinforced existing strategy")
	return strategy, nil
}

// insert writes a brand-new strategy with the new-record defaults.
func (e *StrategyExtractor) insert(ctx context.Context, candidate *strategyCandidate, memory *types.EpisodicMemory, vector []float64) (*types.SemanticMemory, error) {
	now := e.now().UTC()

	riskTiers := candidate.RiskTiers
	if len(riskTiers) == 0 && memory.Context.RiskTier != "" {
		riskTiers = []string{memory.Context.RiskTier}
	}

	strategy := &types.SemanticMemory{
		ID:           e.node.Generate().String(),
		Category:     candidate.Category,
		Title:        candidate.Title,
		Description:  candidate.Description,
		Content:      candidate.Content,
		DerivedFrom:  []string{memory.ID},
		SuccessRate:  1.0,
		TimesApplied: 1,
		Applicability: types.Applicability{
			RiskTiers: riskTiers,
		},
		Confidence:  0.7,
		CreatedAt:   now,
		LastUpdated: now,
		Embedding:   vector,
	}

	record := archive.RecordFromSemantic(strategy)
	if err := e.store.Upsert(ctx, e.collection, []*archive.Record{record}); err != nil {
		return nil, memerr.New("consolidation.strategy", err)
	}

	e.log.WithFields(logrus.Fields{
		"strategy_id": strategy.ID,
		"title":       strategy.Title,
	}).Debug("inserted new strategy")
	return strategy, nil
}

// strategyCandidate is the LLM's raw extraction.
type strategyCandidate struct {
	Category    string   `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	RiskTiers   []string `json:"risk_tiers"`
}

// extract asks the LLM for a strategy candidate. Nil means nothing usable
// came back; the caller treats that as "no strategy in this interaction".
func (e *StrategyExtractor) extract(ctx context.Context, memory *types.EpisodicMemory) *strategyCandidate {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: e.systemPrompt()},
		{Role: llm.RoleUser, Content: e.userPrompt(memory)},
	}
	completion, err := e.llm.Complete(ctx, messages,
		llm.WithTemperature(0.2),
		llm.WithMaxTokens(500),
		llm.WithJSONResponse(),
	)
	if err != nil {
		e.log.WithError(err).Warn("strategy extraction failed, skipping")
		return nil
	}

	cleaned := llm.CleanJSONResponse(completion.Content)
	var candidate strategyCandidate
	if err := json.Unmarshal([]byte(cleaned), &candidate); err != nil {
		e.log.WithError(err).Warn("strategy response unparseable, skipping")
		return nil
	}

	candidate.Title = strings.TrimSpace(candidate.Title)
	candidate.Description = strings.TrimSpace(candidate.Description)
	if candidate.Title == "" || candidate.Description == "" {
		return nil
	}
	if candidate.Category == "" {
		candidate.Category = "negotiation_tactics"
	}
	return &candidate
}

func (e *StrategyExtractor) systemPrompt() string {
	return `You distill reusable collection strategies from successful debt-collection interactions.

Extract the one tactic that made this interaction succeed, generalized so another agent can apply it. If the interaction holds no reusable tactic, return an empty title.

Categories: "negotiation_tactics", "timing_patterns", "objection_handling", "communication_style".

Return JSON only:
{"category": "<category>", "title": "<short name>", "description": "<when and why it works>", "content": "<how to apply it>", "risk_tiers": ["<applicable tier>", ...]}`
}

func (e *StrategyExtractor) userPrompt(memory *types.EpisodicMemory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Channel: %s\nRisk tier: %s\nOutcome: successful", memory.Channel, memory.Context.RiskTier)
	if memory.Outcome.PaymentReceived {
		fmt.Fprintf(&b, ", collected %.2f", memory.Outcome.Amount)
	}
	if len(memory.Tags) > 0 {
		fmt.Fprintf(&b, "\nTags: %s", strings.Join(memory.Tags, ", "))
	}
	fmt.Fprintf(&b, "\n\nTranscript:\n%s", memory.Transcript)
	return b.String()
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// keyedMutex hands out one mutex per key so counter merges on different
// strategies never contend.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*lockEntry)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

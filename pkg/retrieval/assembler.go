package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/llm"
	"github.com/collectiq/agentmem-go/pkg/logging"
	"github.com/collectiq/agentmem-go/pkg/types"
)

// ZeroMatchRecommendation is the recommendation returned when neither
// collection produced a match.
const ZeroMatchRecommendation = "No similar cases or strategies found. Use standard approach."

// genericRecommendation stands in when matches exist but recommendation
// generation fails.
const genericRecommendation = "Review the similar cases and strategies above and adapt the closest successful match."

// Assembler turns ranked candidates into the final context: typed
// memories, human-readable summaries, deterministic insights, and
// LLM-generated recommendations with a generic fallback.
type Assembler struct {
	llm                llm.Provider
	semanticCollection string
	log                *logrus.Entry
}

// NewAssembler creates an assembler. semanticCollection tells it which
// candidates decode as strategies; empty uses archive.CollectionSemantic.
func NewAssembler(provider llm.Provider, semanticCollection string) *Assembler {
	if semanticCollection == "" {
		semanticCollection = archive.CollectionSemantic
	}
	return &Assembler{
		llm:                provider,
		semanticCollection: semanticCollection,
		log:                logging.Component("retrieval.assembler"),
	}
}

// Assemble builds the context from the final candidate list. Confidence
// is left at zero: the caller scores it once assembly is done.
func (a *Assembler) Assemble(ctx context.Context, req *Request, intent *QueryIntent, candidates []Candidate) *AssembledContext {
	assembled := &AssembledContext{
		Query:  req.Query,
		Intent: intent,
	}

	for _, candidate := range candidates {
		if candidate.Record == nil {
			continue
		}
		if candidate.Collection == a.semanticCollection {
			memory := archive.SemanticFromRecord(candidate.Record)
			assembled.Semantic = append(assembled.Semantic, memory)
			assembled.RelevantStrategies = append(assembled.RelevantStrategies, RelevantStrategy{
				ID:           memory.ID,
				Title:        memory.Title,
				Description:  memory.Description,
				SuccessRate:  memory.SuccessRate,
				TimesApplied: memory.TimesApplied,
				Confidence:   memory.Confidence,
				Score:        candidate.Record.Score,
			})
			continue
		}
		memory := archive.EpisodicFromRecord(candidate.Record)
		assembled.Episodic = append(assembled.Episodic, memory)
		assembled.SimilarCases = append(assembled.SimilarCases, SimilarCase{
			ID:        memory.ID,
			Summary:   caseSummary(memory),
			RiskTier:  memory.Context.RiskTier,
			Success:   memory.Outcome.Success,
			Amount:    memory.Outcome.Amount,
			Channel:   memory.Channel,
			Sentiment: string(memory.Sentiment),
			Tags:      memory.Tags,
			Score:     candidate.Record.Score,
		})
	}

	assembled.KeyInsights = deriveInsights(assembled)
	assembled.Recommendations = a.recommendations(ctx, req, assembled)
	return assembled
}

func (a *Assembler) recommendations(ctx context.Context, req *Request, assembled *AssembledContext) []string {
	if assembled.MergedCount() == 0 {
		return []string{ZeroMatchRecommendation}
	}

	messages := []llm.Message{
		{Role: llm.RoleUser, Content: buildRecommendationsPrompt(req, assembled)},
	}
	completion, err := a.llm.Complete(ctx, messages,
		llm.WithTemperature(0.3),
		llm.WithMaxTokens(400),
		llm.WithJSONResponse(),
	)
	if err != nil {
		a.log.WithError(err).Warn("recommendation generation failed, using generic fallback")
		return []string{genericRecommendation}
	}

	recommendations, err := parseRecommendationsResponse(completion.Content)
	if err != nil || len(recommendations) == 0 {
		a.log.WithError(err).Warn("recommendations response unparseable, using generic fallback")
		return []string{genericRecommendation}
	}
	return recommendations
}

func buildRecommendationsPrompt(req *Request, assembled *AssembledContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You advise a debt-collection agent. Based on past interactions and proven strategies, give 2-4 short, actionable recommendations for handling the query.\n\nQuery: %s\n", req.Query)

	if req.Context != nil {
		fmt.Fprintf(&b, "\nCustomer: risk tier %s, %d days overdue, %.2f due, %d prior attempts\n",
			req.Context.RiskTier, req.Context.DaysOverdue, req.Context.AmountDue, req.Context.PriorAttempts)
	}

	if len(assembled.SimilarCases) > 0 {
		b.WriteString("\nSimilar cases:\n")
		for _, c := range assembled.SimilarCases {
			fmt.Fprintf(&b, "- %s\n", c.Summary)
		}
	}
	if len(assembled.RelevantStrategies) > 0 {
		b.WriteString("\nKnown strategies:\n")
		for _, s := range assembled.RelevantStrategies {
			fmt.Fprintf(&b, "- %s: %s (%.0f%% success over %d uses)\n",
				s.Title, s.Description, s.SuccessRate*100, s.TimesApplied)
		}
	}
	if len(assembled.KeyInsights) > 0 {
		b.WriteString("\nInsights:\n")
		for _, insight := range assembled.KeyInsights {
			fmt.Fprintf(&b, "- %s\n", insight)
		}
	}

	b.WriteString("\nReturn JSON only: {\"recommendations\": [\"<recommendation>\", ...]}")
	return b.String()
}

func parseRecommendationsResponse(response string) ([]string, error) {
	cleaned := llm.CleanJSONResponse(response)

	var result struct {
		Recommendations []string `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	recommendations := make([]string, 0, len(result.Recommendations))
	for _, rec := range result.Recommendations {
		if trimmed := strings.TrimSpace(rec); trimmed != "" {
			recommendations = append(recommendations, trimmed)
		}
	}
	return recommendations, nil
}

// caseSummary renders one episodic match as a single line an agent can
// scan mid-call.
func caseSummary(m *types.EpisodicMemory) string {
	tier := m.Context.RiskTier
	if tier == "" {
		tier = "unknown"
	}
	channel := m.Channel
	if channel == "" {
		channel = string(m.AgentType)
	}

	outcome := "did not resolve"
	if m.Outcome.Success {
		outcome = "resolved successfully"
		if m.Outcome.PaymentReceived {
			outcome = fmt.Sprintf("collected %.2f", m.Outcome.Amount)
		}
	}

	summary := fmt.Sprintf("%s risk customer via %s, %s", tier, channel, outcome)
	if m.Sentiment != "" {
		summary += fmt.Sprintf(", %s sentiment", m.Sentiment)
	}
	if len(m.Tags) > 0 {
		summary += ", tags: " + strings.Join(m.Tags, ", ")
	}
	return summary
}

// deriveInsights extracts deterministic observations from the matches:
// overall success counts, per-strategy track records, and tags recurring
// across successful interactions. Duplicates are dropped, output order is
// stable.
func deriveInsights(assembled *AssembledContext) []string {
	var insights []string
	seen := make(map[string]struct{})
	add := func(insight string) {
		if insight == "" {
			return
		}
		if _, ok := seen[insight]; ok {
			return
		}
		seen[insight] = struct{}{}
		insights = append(insights, insight)
	}

	if total := len(assembled.Episodic); total > 0 {
		successful := 0
		for _, m := range assembled.Episodic {
			if m.Outcome.Success {
				successful++
			}
		}
		add(fmt.Sprintf("%d of %d similar interactions succeeded", successful, total))
	}

	for _, strategy := range assembled.Semantic {
		if strategy.Title == "" {
			continue
		}
		if strategy.TimesApplied > 0 {
			add(fmt.Sprintf("strategy %q succeeded in %.0f%% of %d applications",
				strategy.Title, strategy.SuccessRate*100, strategy.TimesApplied))
		} else {
			add(fmt.Sprintf("strategy %q has not been applied yet", strategy.Title))
		}
	}

	for _, tag := range recurringSuccessTags(assembled.Episodic) {
		add(fmt.Sprintf("tag %q recurs across successful interactions", tag))
	}

	return insights
}

// recurringSuccessTags returns tags appearing on at least two successful
// interactions, most frequent first, ties broken alphabetically.
func recurringSuccessTags(episodic []*types.EpisodicMemory) []string {
	counts := make(map[string]int)
	for _, m := range episodic {
		if !m.Outcome.Success {
			continue
		}
		for _, tag := range m.Tags {
			counts[tag]++
		}
	}

	var tags []string
	for tag, count := range counts {
		if count >= 2 {
			tags = append(tags, tag)
		}
	}
	sort.Slice(tags, func(i, j int) bool {
		if counts[tags[i]] != counts[tags[j]] {
			return counts[tags[i]] > counts[tags[j]]
		}
		return tags[i] < tags[j]
	})
	return tags
}

package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/collectiq/agentmem-go/pkg/llm"
	"github.com/collectiq/agentmem-go/pkg/logging"
	"github.com/collectiq/agentmem-go/pkg/types"
)

const digestMaxLen = 160

// Reranker reorders merged candidates by asking the LLM which ones
// actually answer the query, similarity score notwithstanding.
//
// Strictly best-effort: any completion or parse failure keeps the
// original similarity ordering.
type Reranker struct {
	llm llm.Provider
	log *logrus.Entry
}

// NewReranker creates a reranker.
func NewReranker(provider llm.Provider) *Reranker {
	return &Reranker{
		llm: provider,
		log: logging.Component("retrieval.rerank"),
	}
}

// Rerank returns the candidates reordered by relevance. Indices the model
// returns out of range or twice are dropped; candidates the model leaves
// out keep their original relative order after the ranked ones.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []Candidate) []Candidate {
	if len(candidates) < 2 {
		return candidates
	}

	messages := []llm.Message{
		{Role: llm.RoleUser, Content: r.buildPrompt(query, candidates)},
	}
	completion, err := r.llm.Complete(ctx, messages,
		llm.WithTemperature(0),
		llm.WithMaxTokens(300),
		llm.WithJSONResponse(),
	)
	if err != nil {
		r.log.WithError(err).Warn("re-ranking failed, keeping similarity order")
		return candidates
	}

	ranking, err := r.parseRankingResponse(completion.Content)
	if err != nil {
		r.log.WithError(err).Warn("ranking response unparseable, keeping similarity order")
		return candidates
	}
	return applyRanking(candidates, ranking)
}

func (r *Reranker) buildPrompt(query string, candidates []Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You re-rank memory search results for a debt-collection agent's query. Order the candidates from most to least useful for answering the query.

Query: %s

Candidates (index, similarity, summary):
`, query)
	for i, candidate := range candidates {
		fmt.Fprintf(&b, "[%d] %.2f %s\n", i, candidate.Record.Score, candidateDigest(candidate))
	}
	b.WriteString(`
Return JSON only: {"ranking": [<candidate indices, best first>]}`)
	return b.String()
}

func (r *Reranker) parseRankingResponse(response string) ([]int, error) {
	cleaned := llm.CleanJSONResponse(response)

	var result struct {
		Ranking []int `json:"ranking"`
	}
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}
	if len(result.Ranking) == 0 {
		return nil, fmt.Errorf("empty ranking")
	}
	return result.Ranking, nil
}

// applyRanking reorders candidates by the returned indices. Out-of-range
// and duplicate indices are dropped; unranked candidates follow in their
// original order.
func applyRanking(candidates []Candidate, ranking []int) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	used := make([]bool, len(candidates))
	for _, idx := range ranking {
		if idx < 0 || idx >= len(candidates) || used[idx] {
			continue
		}
		used[idx] = true
		out = append(out, candidates[idx])
	}
	for i, candidate := range candidates {
		if !used[i] {
			out = append(out, candidate)
		}
	}
	return out
}

// candidateDigest renders one candidate for the ranking prompt. Semantic
// payloads carry a title; episodic payloads are summarized from outcome
// and transcript.
func candidateDigest(candidate Candidate) string {
	payload := candidate.Record.Payload

	if title := types.StringValue(payload, "title"); title != "" {
		return fmt.Sprintf("strategy %q: %s", title, truncate(types.StringValue(payload, "description"), digestMaxLen))
	}

	outcome := "failed"
	if types.BoolValue(types.MapValue(payload, "outcome"), "success") {
		outcome = "succeeded"
	}
	tier := types.StringValue(types.MapValue(payload, "context"), "risk_tier")
	if tier == "" {
		tier = "unknown tier"
	}
	return fmt.Sprintf("interaction (%s, %s): %s", outcome, tier,
		truncate(types.StringValue(payload, "transcript"), digestMaxLen))
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

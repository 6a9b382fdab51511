package retrieval_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/retrieval"
)

func TestAssemblerSplitsCollections(t *testing.T) {
	provider := &scriptedLLM{responses: []string{`{"recommendations": ["Offer a split payment"]}`}}
	assembler := retrieval.NewAssembler(provider, "")

	interaction := sampleInteraction("epi-1", true, "payment_plan")
	strategy := sampleStrategy("sem-1", "Split payment offer", 0.78, 23)
	candidates := []retrieval.Candidate{
		{Collection: archive.CollectionEpisodic, Record: &archive.Record{ID: "epi-1", Score: 0.91, Payload: interaction.Payload()}},
		{Collection: archive.CollectionSemantic, Record: &archive.Record{ID: "sem-1", Score: 0.84, Payload: strategy.Payload()}},
	}

	req := &retrieval.Request{Query: "how to handle a partial payment offer"}
	intent := &retrieval.QueryIntent{Type: retrieval.QueryTypeSimple, Intent: "handling partial payments"}
	assembled := assembler.Assemble(context.Background(), req, intent, candidates)

	require.NotNil(t, assembled)
	assert.Equal(t, req.Query, assembled.Query)
	assert.Equal(t, intent, assembled.Intent)
	assert.Equal(t, 2, assembled.MergedCount())

	require.Len(t, assembled.SimilarCases, 1)
	c := assembled.SimilarCases[0]
	assert.Equal(t, "epi-1", c.ID)
	assert.Equal(t, "medium", c.RiskTier)
	assert.True(t, c.Success)
	assert.Equal(t, 310.0, c.Amount)
	assert.Equal(t, "phone", c.Channel)
	assert.Equal(t, 0.91, c.Score)
	assert.Contains(t, c.Summary, "collected 310.00")

	require.Len(t, assembled.RelevantStrategies, 1)
	s := assembled.RelevantStrategies[0]
	assert.Equal(t, "sem-1", s.ID)
	assert.Equal(t, "Split payment offer", s.Title)
	assert.Equal(t, 0.78, s.SuccessRate)
	assert.Equal(t, 23, s.TimesApplied)
	assert.Equal(t, 0.84, s.Score)

	assert.Equal(t, []string{"Offer a split payment"}, assembled.Recommendations)
}

func TestAssemblerZeroMatches(t *testing.T) {
	provider := &scriptedLLM{}
	assembler := retrieval.NewAssembler(provider, "")

	assembled := assembler.Assemble(context.Background(),
		&retrieval.Request{Query: "anything on this customer"},
		&retrieval.QueryIntent{Type: retrieval.QueryTypeSimple},
		nil)

	assert.Zero(t, assembled.MergedCount())
	assert.Empty(t, assembled.KeyInsights)
	assert.Equal(t, []string{retrieval.ZeroMatchRecommendation}, assembled.Recommendations)
	assert.Zero(t, provider.callCount())
}

func TestAssemblerRecommendationFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		provider *scriptedLLM
	}{
		{"completion error", &scriptedLLM{err: errors.New("model unavailable")}},
		{"unparseable response", &scriptedLLM{responses: []string{"you should probably call them"}}},
		{"blank recommendations", &scriptedLLM{responses: []string{`{"recommendations": ["  "]}`}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assembler := retrieval.NewAssembler(tt.provider, "")
			candidates := []retrieval.Candidate{
				{Collection: archive.CollectionEpisodic, Record: &archive.Record{ID: "epi-1", Score: 0.9, Payload: sampleInteraction("epi-1", true).Payload()}},
			}

			assembled := assembler.Assemble(context.Background(), &retrieval.Request{Query: "q"}, nil, candidates)

			assert.Equal(t,
				[]string{"Review the similar cases and strategies above and adapt the closest successful match."},
				assembled.Recommendations)
		})
	}
}

func TestAssemblerDerivesInsights(t *testing.T) {
	provider := &scriptedLLM{responses: []string{`{"recommendations": ["ok"]}`}}
	assembler := retrieval.NewAssembler(provider, "")

	first := sampleInteraction("epi-1", true, "payment_plan", "empathy")
	second := sampleInteraction("epi-2", true, "payment_plan")
	third := sampleInteraction("epi-3", false, "payment_plan")
	applied := sampleStrategy("sem-1", "Split payment offer", 0.78, 23)
	fresh := sampleStrategy("sem-2", "Hardship referral", 0, 0)

	candidates := []retrieval.Candidate{
		{Collection: archive.CollectionEpisodic, Record: &archive.Record{ID: "epi-1", Score: 0.9, Payload: first.Payload()}},
		{Collection: archive.CollectionEpisodic, Record: &archive.Record{ID: "epi-2", Score: 0.85, Payload: second.Payload()}},
		{Collection: archive.CollectionEpisodic, Record: &archive.Record{ID: "epi-3", Score: 0.8, Payload: third.Payload()}},
		{Collection: archive.CollectionSemantic, Record: &archive.Record{ID: "sem-1", Score: 0.75, Payload: applied.Payload()}},
		{Collection: archive.CollectionSemantic, Record: &archive.Record{ID: "sem-2", Score: 0.7, Payload: fresh.Payload()}},
	}

	assembled := assembler.Assemble(context.Background(), &retrieval.Request{Query: "q"}, nil, candidates)

	assert.Contains(t, assembled.KeyInsights, "2 of 3 similar interactions succeeded")
	assert.Contains(t, assembled.KeyInsights, `strategy "Split payment offer" succeeded in 78% of 23 applications`)
	assert.Contains(t, assembled.KeyInsights, `strategy "Hardship referral" has not been applied yet`)
	assert.Contains(t, assembled.KeyInsights, `tag "payment_plan" recurs across successful interactions`)
	assert.NotContains(t, assembled.KeyInsights, `tag "empathy" recurs across successful interactions`)
}

func TestAssemblerDeduplicatesInsights(t *testing.T) {
	provider := &scriptedLLM{responses: []string{`{"recommendations": ["ok"]}`}}
	assembler := retrieval.NewAssembler(provider, "")

	// Two archive entries describing the same strategy yield a single
	// insight line.
	a := sampleStrategy("sem-1", "Split payment offer", 0.8, 10)
	b := sampleStrategy("sem-2", "Split payment offer", 0.8, 10)
	candidates := []retrieval.Candidate{
		{Collection: archive.CollectionSemantic, Record: &archive.Record{ID: "sem-1", Score: 0.9, Payload: a.Payload()}},
		{Collection: archive.CollectionSemantic, Record: &archive.Record{ID: "sem-2", Score: 0.8, Payload: b.Payload()}},
	}

	assembled := assembler.Assemble(context.Background(), &retrieval.Request{Query: "q"}, nil, candidates)

	count := 0
	for _, insight := range assembled.KeyInsights {
		if insight == `strategy "Split payment offer" succeeded in 80% of 10 applications` {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestAssemblerHonorsCollectionName(t *testing.T) {
	provider := &scriptedLLM{responses: []string{`{"recommendations": ["ok"]}`}}
	assembler := retrieval.NewAssembler(provider, "tenant_semantic")

	strategy := sampleStrategy("sem-1", "Split payment offer", 0.8, 10)
	candidates := []retrieval.Candidate{
		{Collection: "tenant_semantic", Record: &archive.Record{ID: "sem-1", Score: 0.9, Payload: strategy.Payload()}},
	}

	assembled := assembler.Assemble(context.Background(), &retrieval.Request{Query: "q"}, nil, candidates)

	assert.Len(t, assembled.Semantic, 1)
	assert.Empty(t, assembled.Episodic)
}

package archive_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/types"
)

func episodicPayload() map[string]interface{} {
	return (&types.EpisodicMemory{
		ID:         "epi-1",
		Timestamp:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		CustomerID: "cust-1",
		CampaignID: "camp-1",
		AgentType:  types.AgentTypePhone,
		Transcript: "agent: hi",
		Outcome:    types.Outcome{Success: true, Amount: 100},
		Context:    types.ContextSnapshot{RiskTier: "medium", PriorAttempts: 1},
		Tags:       []string{"payment_plan", "friday"},
		Sentiment:  types.SentimentNeutral,
	}).Payload()
}

func semanticPayload() map[string]interface{} {
	return (&types.SemanticMemory{
		ID:           "sem-1",
		Category:     "negotiation_tactics",
		Title:        "Payday anchoring",
		SuccessRate:  0.8,
		TimesApplied: 10,
		Confidence:   0.9,
		Applicability: types.Applicability{
			RiskTiers: []string{"low", "medium"},
		},
		CreatedAt:   time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		LastUpdated: time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
	}).Payload()
}

func TestFilterIsZero(t *testing.T) {
	var nilFilter *archive.Filter
	assert.True(t, nilFilter.IsZero())
	assert.True(t, (&archive.Filter{}).IsZero())
	assert.False(t, (&archive.Filter{CustomerID: "c"}).IsZero())
	assert.False(t, (&archive.Filter{SuccessOnly: true}).IsZero())
	now := time.Now()
	assert.False(t, (&archive.Filter{OlderThan: &now}).IsZero())
}

func TestSearchParamsEffectiveLimit(t *testing.T) {
	var nilParams *archive.SearchParams
	assert.Equal(t, 10, nilParams.EffectiveLimit())
	assert.Equal(t, 10, (&archive.SearchParams{}).EffectiveLimit())
	assert.Equal(t, 10, (&archive.SearchParams{Limit: -3}).EffectiveLimit())
	assert.Equal(t, 7, (&archive.SearchParams{Limit: 7}).EffectiveLimit())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, archive.KindEpisodic, archive.KindOf(archive.CollectionEpisodic))
	assert.Equal(t, archive.KindSemantic, archive.KindOf(archive.CollectionSemantic))
	assert.Equal(t, archive.KindEpisodic, archive.KindOf("anything_else"))
}

func TestFilterMatchesEpisodic(t *testing.T) {
	payload := episodicPayload()

	tests := []struct {
		name   string
		filter *archive.Filter
		want   bool
	}{
		{name: "zero filter matches", filter: &archive.Filter{}, want: true},
		{name: "customer match", filter: &archive.Filter{CustomerID: "cust-1"}, want: true},
		{name: "customer mismatch", filter: &archive.Filter{CustomerID: "cust-2"}, want: false},
		{name: "campaign match", filter: &archive.Filter{CampaignID: "camp-1"}, want: true},
		{name: "agent type match", filter: &archive.Filter{AgentType: "phone"}, want: true},
		{name: "agent type mismatch", filter: &archive.Filter{AgentType: "sms"}, want: false},
		{name: "success only on successful", filter: &archive.Filter{SuccessOnly: true}, want: true},
		{name: "risk tier in list", filter: &archive.Filter{RiskTiers: []string{"low", "medium"}}, want: true},
		{name: "risk tier not in list", filter: &archive.Filter{RiskTiers: []string{"high"}}, want: false},
		{name: "all tags present", filter: &archive.Filter{Tags: []string{"friday", "payment_plan"}}, want: true},
		{name: "one tag missing", filter: &archive.Filter{Tags: []string{"payment_plan", "absent"}}, want: false},
		{
			name:   "combined narrowing",
			filter: &archive.Filter{CustomerID: "cust-1", SuccessOnly: true, RiskTiers: []string{"medium"}},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, archive.FilterMatches(tt.filter, archive.KindEpisodic, payload))
		})
	}
}

func TestFilterMatchesEpisodicFailedOutcome(t *testing.T) {
	failed := (&types.EpisodicMemory{
		ID:      "epi-2",
		Outcome: types.Outcome{Success: false},
		Context: types.ContextSnapshot{RiskTier: "high"},
	}).Payload()

	assert.False(t, archive.FilterMatches(&archive.Filter{SuccessOnly: true}, archive.KindEpisodic, failed))
	assert.True(t, archive.FilterMatches(&archive.Filter{RiskTiers: []string{"high"}}, archive.KindEpisodic, failed))
}

func TestFilterMatchesEpisodicWithoutTier(t *testing.T) {
	// A record without a tier cannot prove membership in a tier list
	payload := (&types.EpisodicMemory{ID: "epi-3", Outcome: types.Outcome{Success: true}}).Payload()
	assert.False(t, archive.FilterMatches(&archive.Filter{RiskTiers: []string{"medium"}}, archive.KindEpisodic, payload))
}

func TestFilterMatchesSemantic(t *testing.T) {
	payload := semanticPayload()

	tests := []struct {
		name   string
		filter *archive.Filter
		want   bool
	}{
		{name: "category match", filter: &archive.Filter{Category: "negotiation_tactics"}, want: true},
		{name: "category mismatch", filter: &archive.Filter{Category: "compliance"}, want: false},
		{name: "min success rate met", filter: &archive.Filter{MinSuccessRate: 0.7}, want: true},
		{name: "min success rate unmet", filter: &archive.Filter{MinSuccessRate: 0.85}, want: false},
		{name: "min confidence met", filter: &archive.Filter{MinConfidence: 0.9}, want: true},
		{name: "min confidence unmet", filter: &archive.Filter{MinConfidence: 0.95}, want: false},
		{name: "applicable tier", filter: &archive.Filter{RiskTiers: []string{"medium"}}, want: true},
		{name: "inapplicable tier", filter: &archive.Filter{RiskTiers: []string{"high"}}, want: false},
		{
			name:   "episodic fields do not constrain semantic records",
			filter: &archive.Filter{CustomerID: "cust-999", SuccessOnly: true, Tags: []string{"x"}},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, archive.FilterMatches(tt.filter, archive.KindSemantic, payload))
		})
	}
}

func TestFilterMatchesSemanticEmptyTierListAppliesEverywhere(t *testing.T) {
	payload := (&types.SemanticMemory{ID: "sem-2", Title: "Universal opener", SuccessRate: 0.6}).Payload()
	assert.True(t, archive.FilterMatches(&archive.Filter{RiskTiers: []string{"high"}}, archive.KindSemantic, payload))
}

func TestFilterMatchesOlderThan(t *testing.T) {
	epi := episodicPayload() // timestamp 2026-02-01
	sem := semanticPayload() // created_at 2026-01-15

	cutoffBefore := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cutoffAfter := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.False(t, archive.FilterMatches(&archive.Filter{OlderThan: &cutoffBefore}, archive.KindEpisodic, epi))
	assert.True(t, archive.FilterMatches(&archive.Filter{OlderThan: &cutoffAfter}, archive.KindEpisodic, epi))

	// Semantic records fall back to created_at for the age bound
	assert.True(t, archive.FilterMatches(&archive.Filter{OlderThan: &cutoffAfter}, archive.KindSemantic, sem))
	assert.False(t, archive.FilterMatches(&archive.Filter{OlderThan: &cutoffBefore}, archive.KindSemantic, sem))
}

func TestExtractIndexFields(t *testing.T) {
	fields := archive.ExtractIndexFields(episodicPayload())
	assert.Equal(t, "cust-1", fields.CustomerID)
	assert.Equal(t, "camp-1", fields.CampaignID)
	assert.Equal(t, "phone", fields.AgentType)
	assert.Equal(t, "medium", fields.RiskTier)
	assert.True(t, fields.Success)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), fields.Timestamp.UTC())

	fields = archive.ExtractIndexFields(semanticPayload())
	assert.Equal(t, "negotiation_tactics", fields.Category)
	assert.Equal(t, 0.8, fields.SuccessRate)
	assert.Equal(t, 0.9, fields.Confidence)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), fields.Timestamp.UTC())
}

func TestRecordCodecs(t *testing.T) {
	episodic := &types.EpisodicMemory{
		ID:         "epi-9",
		Transcript: "agent: hello",
		Embedding:  []float64{0.1, 0.2},
		Outcome:    types.Outcome{Success: true},
	}
	record := archive.RecordFromEpisodic(episodic)
	assert.Equal(t, "epi-9", record.ID)
	assert.Equal(t, episodic.Embedding, record.Vector)

	record.Score = 0.93
	decoded := archive.EpisodicFromRecord(record)
	assert.Equal(t, "epi-9", decoded.ID)
	assert.Equal(t, 0.93, decoded.Score)
	assert.Equal(t, record.Vector, decoded.Embedding)

	semantic := &types.SemanticMemory{ID: "sem-9", Title: "t", Embedding: []float64{0.3}}
	semRecord := archive.RecordFromSemantic(semantic)
	semRecord.Score = 0.8
	decodedSem := archive.SemanticFromRecord(semRecord)
	assert.Equal(t, "sem-9", decodedSem.ID)
	assert.Equal(t, 0.8, decodedSem.Score)
}

package retrieval_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/collectiq/agentmem-go/pkg/retrieval"
	"github.com/collectiq/agentmem-go/pkg/types"
)

func interactions(total, successful int) []*types.EpisodicMemory {
	out := make([]*types.EpisodicMemory, total)
	for i := range out {
		out[i] = &types.EpisodicMemory{
			ID:      fmt.Sprintf("epi-%d", i),
			Outcome: types.Outcome{Success: i < successful},
		}
	}
	return out
}

func strategies(rates ...float64) []*types.SemanticMemory {
	out := make([]*types.SemanticMemory, len(rates))
	for i, rate := range rates {
		out[i] = &types.SemanticMemory{ID: fmt.Sprintf("sem-%d", i), SuccessRate: rate}
	}
	return out
}

func TestConfidenceScore(t *testing.T) {
	simple := &retrieval.QueryIntent{Type: retrieval.QueryTypeSimple}
	complexIntent := &retrieval.QueryIntent{Type: retrieval.QueryTypeComplex}

	tests := []struct {
		name     string
		intent   *retrieval.QueryIntent
		episodic []*types.EpisodicMemory
		semantic []*types.SemanticMemory
		want     float64
	}{
		{
			name:   "zero matches scores the base regardless of intent",
			intent: simple,
			want:   0.5,
		},
		{
			name:     "two matches earn no volume bonus",
			intent:   complexIntent,
			episodic: interactions(2, 1),
			want:     0.55,
		},
		{
			name:     "three matches earn the small volume bonus",
			intent:   complexIntent,
			episodic: interactions(3, 0),
			want:     0.6,
		},
		{
			name:     "five matches earn the full volume bonus",
			intent:   complexIntent,
			episodic: interactions(5, 0),
			want:     0.7,
		},
		{
			name:     "six successful interactions with a simple intent",
			intent:   simple,
			episodic: interactions(6, 6),
			want:     0.9,
		},
		{
			name:     "proven strategies earn a bonus each",
			intent:   complexIntent,
			semantic: strategies(0.9, 0.85),
			want:     0.7,
		},
		{
			name:     "a success rate of exactly 0.8 earns nothing",
			intent:   complexIntent,
			semantic: strategies(0.8),
			want:     0.5,
		},
		{
			name:     "nil intent earns no simple bonus",
			intent:   nil,
			episodic: interactions(6, 6),
			want:     0.8,
		},
		{
			name:     "score clamps at one",
			intent:   simple,
			episodic: interactions(4, 4),
			semantic: strategies(0.9, 0.9, 0.95),
			want:     1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := retrieval.ConfidenceScore(tt.intent, tt.episodic, tt.semantic)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

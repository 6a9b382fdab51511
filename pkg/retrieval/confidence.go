package retrieval

import (
	"github.com/collectiq/agentmem-go/pkg/types"
)

// ConfidenceScore is the deterministic confidence heuristic for an
// assembled context. Zero matches score exactly the 0.5 base: with
// nothing retrieved there is nothing to be confident about. Otherwise:
// +0.2 for five or more merged matches (else +0.1 for three or more),
// +0.1 per semantic match with a success rate above 0.8, +0.1 scaled by
// the fraction of successful episodic matches, +0.1 for a simple intent,
// clamped to [0, 1].
func ConfidenceScore(intent *QueryIntent, episodic []*types.EpisodicMemory, semantic []*types.SemanticMemory) float64 {
	merged := len(episodic) + len(semantic)
	if merged == 0 {
		return 0.5
	}

	confidence := 0.5

	if merged >= 5 {
		confidence += 0.2
	} else if merged >= 3 {
		confidence += 0.1
	}

	for _, strategy := range semantic {
		if strategy.SuccessRate > 0.8 {
			confidence += 0.1
		}
	}

	if len(episodic) > 0 {
		successful := 0
		for _, interaction := range episodic {
			if interaction.Outcome.Success {
				successful++
			}
		}
		confidence += 0.1 * float64(successful) / float64(len(episodic))
	}

	if intent != nil && intent.Type == QueryTypeSimple {
		confidence += 0.1
	}

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

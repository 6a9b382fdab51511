package retrieval

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/logging"
)

// Base result limits per query type.
const (
	simpleLimit    = 3
	complexLimit   = 7
	multiStepLimit = 10
)

// strategyKeywords mark intents asking "what works" rather than "what
// happened"; those narrow retrieval to proven, successful records.
var strategyKeywords = []string{"strategy", "approach", "recommend", "what works"}

// Planner chooses the retrieval strategy for a classified query.
//
// Planning is deterministic given the intent, the request, and the current
// performance metrics: base limits by query type, success-only narrowing
// for strategy-seeking intents, and adaptive widening for (query type,
// risk tier) segments with a poor track record.
type Planner struct {
	metrics  *PerformanceTracker
	maxLimit int
	log      *logrus.Entry
}

// NewPlanner creates a planner reading feedback from the given tracker.
func NewPlanner(metrics *PerformanceTracker, maxLimit int) *Planner {
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	return &Planner{
		metrics:  metrics,
		maxLimit: maxLimit,
		log:      logging.Component("retrieval.planner"),
	}
}

// Plan builds the strategy for one query.
func (p *Planner) Plan(intent *QueryIntent, req *Request) *Strategy {
	strategy := &Strategy{
		UseEpisodic: true,
		UseSemantic: true,
		Limit:       simpleLimit,
	}

	if intent != nil {
		switch intent.Type {
		case QueryTypeComplex:
			strategy.Limit = complexLimit
			strategy.Rerank = true
		case QueryTypeMultiStep:
			strategy.Limit = multiStepLimit
			strategy.Rerank = true
		}
	}

	filter := archive.Filter{}
	if req != nil {
		filter.CustomerID = req.CustomerID
		filter.CampaignID = req.CampaignID
		filter.AgentType = req.AgentType
		if req.Context != nil && req.Context.RiskTier != "" {
			filter.RiskTiers = []string{req.Context.RiskTier}
		}
	}

	seekingStrategy := intent != nil && isStrategySeeking(intent.Intent)
	if seekingStrategy {
		filter.SuccessOnly = true
		filter.MinSuccessRate = 0.7
		filter.MinConfidence = 0.7
	}

	// Adaptive widening: a segment that keeps producing bad outcomes gets
	// a wider, less picky search on its next queries.
	if p.metrics != nil && intent != nil {
		riskTier := ""
		if req != nil && req.Context != nil {
			riskTier = req.Context.RiskTier
		}
		if segment, ok := p.metrics.Segment(string(intent.Type), riskTier); ok &&
			segment.TotalCount > 0 && segment.SuccessRate() < 0.5 {
			widened := strategy.Limit * 2
			if widened > p.maxLimit {
				widened = p.maxLimit
			}
			strategy.Limit = widened
			filter.SuccessOnly = false
			filter.MinSuccessRate = 0
			filter.MinConfidence = 0
			p.log.WithFields(logrus.Fields{
				"query_type": intent.Type,
				"risk_tier":  riskTier,
				"limit":      strategy.Limit,
			}).Debug("widened retrieval for underperforming segment")
		}
	}

	if !filter.IsZero() {
		strategy.Filter = &filter
	}
	return strategy
}

func isStrategySeeking(intentText string) bool {
	lowered := strings.ToLower(intentText)
	for _, keyword := range strategyKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

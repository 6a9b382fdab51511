package archive

import (
	"time"

	"github.com/collectiq/agentmem-go/pkg/types"
)

// Kind identifies which collection a payload belongs to. Filter fields
// bind to the collection that owns them: customer scoping, outcome and
// tags constrain episodic records, while category, success-rate and
// confidence floors constrain semantic records. A combined filter passed
// to both searches therefore narrows each tier independently instead of
// excluding one of them wholesale.
type Kind int

const (
	KindEpisodic Kind = iota
	KindSemantic
)

// KindOf maps the well-known collection names to their kind. Unknown
// names default to episodic; backends validate collection names before
// calling this.
func KindOf(collection string) Kind {
	if collection == CollectionSemantic {
		return KindSemantic
	}
	return KindEpisodic
}

// IndexFields are the payload fields backends index or filter on. SQL
// backends materialize them as columns; chromem stores them as metadata.
type IndexFields struct {
	CustomerID  string
	CampaignID  string
	AgentType   string
	RiskTier    string
	Success     bool
	Category    string
	SuccessRate float64
	Confidence  float64
	Timestamp   time.Time
}

// ExtractIndexFields pulls the filterable fields out of a payload map. The
// episodic timestamp and the semantic created_at both land in Timestamp,
// which is what the retention purge compares against.
func ExtractIndexFields(payload map[string]interface{}) IndexFields {
	outcome := types.MapValue(payload, "outcome")
	snapshot := types.MapValue(payload, "context")

	fields := IndexFields{
		CustomerID:  types.StringValue(payload, "customer_id"),
		CampaignID:  types.StringValue(payload, "campaign_id"),
		AgentType:   types.StringValue(payload, "agent_type"),
		RiskTier:    types.StringValue(snapshot, "risk_tier"),
		Success:     types.BoolValue(outcome, "success"),
		Category:    types.StringValue(payload, "category"),
		SuccessRate: types.FloatValue(payload, "success_rate"),
		Confidence:  types.FloatValue(payload, "confidence"),
		Timestamp:   types.TimeValue(payload, "timestamp"),
	}
	if fields.Timestamp.IsZero() {
		fields.Timestamp = types.TimeValue(payload, "created_at")
	}
	return fields
}

// FilterMatches evaluates a filter against a payload in process. Backends
// without full native filtering (sqlite and chromem residuals) and tests
// share this one evaluator so every backend excludes the same records.
func FilterMatches(f *Filter, kind Kind, payload map[string]interface{}) bool {
	if f.IsZero() {
		return true
	}

	fields := ExtractIndexFields(payload)

	switch kind {
	case KindEpisodic:
		if f.CustomerID != "" && fields.CustomerID != f.CustomerID {
			return false
		}
		if f.CampaignID != "" && fields.CampaignID != f.CampaignID {
			return false
		}
		if f.AgentType != "" && fields.AgentType != f.AgentType {
			return false
		}
		if f.SuccessOnly && !fields.Success {
			return false
		}
		// A record without a tier cannot prove membership.
		if len(f.RiskTiers) > 0 && !containsString(f.RiskTiers, fields.RiskTier) {
			return false
		}
		if len(f.Tags) > 0 {
			tags := types.StringSliceValue(payload, "tags")
			for _, want := range f.Tags {
				if !containsString(tags, want) {
					return false
				}
			}
		}

	case KindSemantic:
		if f.Category != "" && fields.Category != f.Category {
			return false
		}
		if f.MinSuccessRate > 0 && fields.SuccessRate < f.MinSuccessRate {
			return false
		}
		if f.MinConfidence > 0 && fields.Confidence < f.MinConfidence {
			return false
		}
		if len(f.RiskTiers) > 0 && !tierListApplies(f.RiskTiers, payload) {
			return false
		}
	}

	if f.OlderThan != nil && !fields.Timestamp.Before(*f.OlderThan) {
		return false
	}

	return true
}

// tierListApplies checks a semantic record's applicability tier list. An
// empty or absent list means the strategy applies to every tier.
func tierListApplies(want []string, payload map[string]interface{}) bool {
	applicability := types.MapValue(payload, "applicability")
	tiers := types.StringSliceValue(applicability, "risk_tiers")
	if len(tiers) == 0 {
		return true
	}
	for _, tier := range tiers {
		if containsString(want, tier) {
			return true
		}
	}
	return false
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

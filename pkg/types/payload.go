package types

import (
	"time"
)

// Payload keys shared by every archive backend. The stored payload is the
// schema analytics and audit tooling read, so keys are stable.
const (
	keyID              = "id"
	keyTimestamp       = "timestamp"
	keyCustomerID      = "customer_id"
	keyCampaignID      = "campaign_id"
	keyAgentType       = "agent_type"
	keyTranscript      = "transcript"
	keyDurationSeconds = "duration_seconds"
	keyChannel         = "channel"
	keyOutcome         = "outcome"
	keySuccess         = "success"
	keyPaymentReceived = "payment_received"
	keyAmount          = "amount"
	keyNextAction      = "next_action"
	keyContext         = "context"
	keyRiskTier        = "risk_tier"
	keyPaymentHistory  = "payment_history"
	keyPriorAttempts   = "prior_attempts"
	keyTags            = "tags"
	keySentiment       = "sentiment"
	keyCategory        = "category"
	keyTitle           = "title"
	keyDescription     = "description"
	keyContent         = "content"
	keyDerivedFrom     = "derived_from"
	keySuccessRate     = "success_rate"
	keyTimesApplied    = "times_applied"
	keyApplicability   = "applicability"
	keyRiskTiers       = "risk_tiers"
	keyMinAmount       = "min_amount"
	keyMaxAmount       = "max_amount"
	keyMaxDaysOverdue  = "max_days_overdue"
	keyMaxPrior        = "max_prior_attempts"
	keyConfidence      = "confidence"
	keyCreatedAt       = "created_at"
	keyLastUpdated     = "last_updated"
)

// Payload converts the episodic memory into its persisted payload map.
// The embedding travels separately as the record vector.
func (m *EpisodicMemory) Payload() map[string]interface{} {
	return map[string]interface{}{
		keyID:              m.ID,
		keyTimestamp:       m.Timestamp.UTC().Format(time.RFC3339Nano),
		keyCustomerID:      m.CustomerID,
		keyCampaignID:      m.CampaignID,
		keyAgentType:       string(m.AgentType),
		keyTranscript:      m.Transcript,
		keyDurationSeconds: m.DurationSeconds,
		keyChannel:         m.Channel,
		keyOutcome: map[string]interface{}{
			keySuccess:         m.Outcome.Success,
			keyPaymentReceived: m.Outcome.PaymentReceived,
			keyAmount:          m.Outcome.Amount,
			keyNextAction:      m.Outcome.NextAction,
		},
		keyContext: map[string]interface{}{
			keyRiskTier:       m.Context.RiskTier,
			keyPaymentHistory: m.Context.PaymentHistory,
			keyPriorAttempts:  m.Context.PriorAttempts,
		},
		keyTags:      toInterfaceSlice(m.Tags),
		keySentiment: string(m.Sentiment),
	}
}

// EpisodicFromPayload decodes a persisted payload map. Decoding is
// tolerant: missing or mistyped fields fall back to zero values, because
// payloads round-trip through JSON in some backends and numeric types vary.
func EpisodicFromPayload(payload map[string]interface{}) *EpisodicMemory {
	outcome := MapValue(payload, keyOutcome)
	snapshot := MapValue(payload, keyContext)

	return &EpisodicMemory{
		ID:              StringValue(payload, keyID),
		Timestamp:       TimeValue(payload, keyTimestamp),
		CustomerID:      StringValue(payload, keyCustomerID),
		CampaignID:      StringValue(payload, keyCampaignID),
		AgentType:       AgentType(StringValue(payload, keyAgentType)),
		Transcript:      StringValue(payload, keyTranscript),
		DurationSeconds: IntValue(payload, keyDurationSeconds),
		Channel:         StringValue(payload, keyChannel),
		Outcome: Outcome{
			Success:         BoolValue(outcome, keySuccess),
			PaymentReceived: BoolValue(outcome, keyPaymentReceived),
			Amount:          FloatValue(outcome, keyAmount),
			NextAction:      StringValue(outcome, keyNextAction),
		},
		Context: ContextSnapshot{
			RiskTier:       StringValue(snapshot, keyRiskTier),
			PaymentHistory: StringValue(snapshot, keyPaymentHistory),
			PriorAttempts:  IntValue(snapshot, keyPriorAttempts),
		},
		Tags:      StringSliceValue(payload, keyTags),
		Sentiment: Sentiment(StringValue(payload, keySentiment)),
	}
}

// Payload converts the semantic memory into its persisted payload map.
func (m *SemanticMemory) Payload() map[string]interface{} {
	return map[string]interface{}{
		keyID:          m.ID,
		keyCategory:    m.Category,
		keyTitle:       m.Title,
		keyDescription: m.Description,
		keyContent:     m.Content,
		keyDerivedFrom: toInterfaceSlice(m.DerivedFrom),
		keySuccessRate: m.SuccessRate,
		keyTimesApplied: m.TimesApplied,
		keyApplicability: map[string]interface{}{
			keyRiskTiers:      toInterfaceSlice(m.Applicability.RiskTiers),
			keyMinAmount:      m.Applicability.MinAmount,
			keyMaxAmount:      m.Applicability.MaxAmount,
			keyMaxDaysOverdue: m.Applicability.MaxDaysOverdue,
			keyMaxPrior:       m.Applicability.MaxPriorAttempts,
		},
		keyConfidence:  m.Confidence,
		keyCreatedAt:   m.CreatedAt.UTC().Format(time.RFC3339Nano),
		keyLastUpdated: m.LastUpdated.UTC().Format(time.RFC3339Nano),
	}
}

// SemanticFromPayload decodes a persisted payload map, tolerantly.
func SemanticFromPayload(payload map[string]interface{}) *SemanticMemory {
	applicability := MapValue(payload, keyApplicability)

	return &SemanticMemory{
		ID:           StringValue(payload, keyID),
		Category:     StringValue(payload, keyCategory),
		Title:        StringValue(payload, keyTitle),
		Description:  StringValue(payload, keyDescription),
		Content:      StringValue(payload, keyContent),
		DerivedFrom:  StringSliceValue(payload, keyDerivedFrom),
		SuccessRate:  FloatValue(payload, keySuccessRate),
		TimesApplied: IntValue(payload, keyTimesApplied),
		Applicability: Applicability{
			RiskTiers:        StringSliceValue(applicability, keyRiskTiers),
			MinAmount:        FloatValue(applicability, keyMinAmount),
			MaxAmount:        FloatValue(applicability, keyMaxAmount),
			MaxDaysOverdue:   IntValue(applicability, keyMaxDaysOverdue),
			MaxPriorAttempts: IntValue(applicability, keyMaxPrior),
		},
		Confidence:  FloatValue(payload, keyConfidence),
		CreatedAt:   TimeValue(payload, keyCreatedAt),
		LastUpdated: TimeValue(payload, keyLastUpdated),
	}
}

// StringValue extracts a string from a payload map, tolerating nil maps.
func StringValue(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

// FloatValue extracts a float64 from a payload map. JSON decoding yields
// float64, but int and int64 also appear when maps are built in process.
func FloatValue(payload map[string]interface{}, key string) float64 {
	if payload == nil {
		return 0
	}
	switch v := payload[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// IntValue extracts an int from a payload map, accepting float64 values
// produced by JSON decoding.
func IntValue(payload map[string]interface{}, key string) int {
	if payload == nil {
		return 0
	}
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	}
	return 0
}

// BoolValue extracts a bool from a payload map.
func BoolValue(payload map[string]interface{}, key string) bool {
	if payload == nil {
		return false
	}
	if v, ok := payload[key].(bool); ok {
		return v
	}
	return false
}

// StringSliceValue extracts a string slice, accepting both []string and the
// []interface{} form JSON decoding produces.
func StringSliceValue(payload map[string]interface{}, key string) []string {
	if payload == nil {
		return nil
	}
	switch v := payload[key].(type) {
	case []string:
		if len(v) == 0 {
			return nil
		}
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return nil
}

// TimeValue extracts an RFC 3339 timestamp from a payload map. Backends
// that keep native time values can also store time.Time directly.
func TimeValue(payload map[string]interface{}, key string) time.Time {
	if payload == nil {
		return time.Time{}
	}
	switch v := payload[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// MapValue extracts a nested payload map.
func MapValue(payload map[string]interface{}, key string) map[string]interface{} {
	if payload == nil {
		return nil
	}
	if v, ok := payload[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

func toInterfaceSlice(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

package consolidation

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

// SessionAnalysis is what the analyzer extracts from a finished
// conversation.
type SessionAnalysis struct {
	Outcome   types.Outcome
	Sentiment types.Sentiment
	Tags      []string
}

// SessionAnalyzer turns a raw transcript into an outcome, a sentiment,
// and tags. Analysis is best-effort: any LLM or parse failure yields the
// conservative fallback of an unsuccessful, neutral interaction.
type SessionAnalyzer struct {
	llm llm.Provider
	log *logrus.Entry
}

// NewSessionAnalyzer creates an analyzer.
func NewSessionAnalyzer(provider llm.Provider) *SessionAnalyzer {
	return &SessionAnalyzer{
		llm: provider,
		log: logging.Component("consolidation.analyzer"),
	}
}

// Analyze inspects the transcript. Never fails.
func (a *SessionAnalyzer) Analyze(ctx context.Context, transcript string) *SessionAnalysis {
	fallback := &SessionAnalysis{
		Outcome:   types.Outcome{Success: false},
		Sentiment: types.SentimentNeutral,
	}
	if strings.TrimSpace(transcript) == "" {
		return fallback
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: a.systemPrompt()},
		{Role: llm.RoleUser, Content: transcript},
	}
	completion, err := a.llm.Complete(ctx, messages,
		llm.WithTemperature(0.1),
		llm.WithMaxTokens(400),
		llm.WithJSONResponse(),
	)
	if err != nil {
		a.log.WithError(err).Warn("session analysis failed, recording unsuccessful neutral outcome")
		return fallback
	}

	analysis, err := a.parseAnalysisResponse(completion.Content)
	if err != nil {
		a.log.WithError(err).Warn("analysis response unparseable, recording unsuccessful neutral outcome")
		return fallback
	}
	return analysis
}

func (a *SessionAnalyzer) systemPrompt() string {
	return `You analyze finished debt-collection conversations.

Decide whether the interaction achieved its goal (payment, payment promise, or an agreed plan count as success), whether a payment was actually collected and for how much, what follow-up the agent committed to, the customer's overall sentiment, and a few short lowercase tags (e.g. "payment_plan", "hardship", "disputed_debt").

Return JSON only:
{"success": <bool>, "payment_received": <bool>, "amount": <number>, "next_action": "<text or empty>", "sentiment": "positive|neutral|negative", "tags": ["<tag>", ...]}`
}

func (a *SessionAnalyzer) parseAnalysisResponse(response string) (*SessionAnalysis, error) {
	cleaned := llm.CleanJSONResponse(response)

	var result struct {
		Success         bool     `json:"success"`
		PaymentReceived bool     `json:"payment_received"`
		Amount          float64  `json:"amount"`
		NextAction      string   `json:"next_action"`
		Sentiment       string   `json:"sentiment"`
		Tags            []string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	sentiment := types.Sentiment(strings.ToLower(strings.TrimSpace(result.Sentiment)))
	if !sentiment.Valid() {
		sentiment = types.SentimentNeutral
	}

	tags := make([]string, 0, len(result.Tags))
	for _, tag := range result.Tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}

	return &SessionAnalysis{
		Outcome: types.Outcome{
			Success:         result.Success,
			PaymentReceived: result.PaymentReceived,
			Amount:          result.Amount,
			NextAction:      strings.TrimSpace(result.NextAction),
		},
		Sentiment: sentiment,
		Tags:      tags,
	}, nil
}

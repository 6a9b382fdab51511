package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/collectiq/agentmem-go/pkg/llm"
	"github.com/collectiq/agentmem-go/pkg/logging"
)

// IntentClassifier decides what kind of query the pipeline is dealing with.
//
// Classification is advisory: on any LLM or parse failure the classifier
// falls back to a simple intent with complexity 0.5 instead of failing the
// query.
type IntentClassifier struct {
	llm llm.Provider
	log *logrus.Entry
}

// NewIntentClassifier creates an intent classifier.
func NewIntentClassifier(provider llm.Provider) *IntentClassifier {
	return &IntentClassifier{
		llm: provider,
		log: logging.Component("retrieval.intent"),
	}
}

// Classify analyzes the query and returns its intent. Never fails: the
// fallback intent carries the raw query as intent text so downstream
// keyword checks still work.
func (c *IntentClassifier) Classify(ctx context.Context, query string) *QueryIntent {
	fallback := &QueryIntent{
		Type:       QueryTypeSimple,
		Intent:     query,
		Complexity: 0.5,
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: c.systemPrompt()},
		{Role: llm.RoleUser, Content: query},
	}

	completion, err := c.llm.Complete(ctx, messages,
		llm.WithTemperature(0.1),
		llm.WithMaxTokens(300),
		llm.WithJSONResponse(),
	)
	if err != nil {
		c.log.WithError(err).Warn("intent analysis failed, falling back to simple")
		return fallback
	}

	intent, err := c.parseIntentResponse(completion.Content)
	if err != nil {
		c.log.WithError(err).Warn("intent response unparseable, falling back to simple")
		return fallback
	}
	if intent.Intent == "" {
		intent.Intent = query
	}
	return intent
}

func (c *IntentClassifier) systemPrompt() string {
	return `You classify queries from debt-collection agents asking an agent memory system for help.

Classify the query into exactly one type:
- "simple": one fact or one straightforward lookup
- "complex": needs several angles on the same question
- "multi_step": needs an ordered sequence of sub-questions

Return JSON only:
{"type": "simple|complex|multi_step", "intent": "<one-line restatement of what the agent wants>", "complexity": <0.0-1.0>, "required_information": ["<item>", ...]}`
}

func (c *IntentClassifier) parseIntentResponse(response string) (*QueryIntent, error) {
	cleaned := llm.CleanJSONResponse(response)

	var intent QueryIntent
	if err := json.Unmarshal([]byte(cleaned), &intent); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	switch QueryType(strings.ToLower(strings.TrimSpace(string(intent.Type)))) {
	case QueryTypeSimple:
		intent.Type = QueryTypeSimple
	case QueryTypeComplex:
		intent.Type = QueryTypeComplex
	case QueryTypeMultiStep:
		intent.Type = QueryTypeMultiStep
	default:
		return nil, fmt.Errorf("unknown query type %q", intent.Type)
	}

	if intent.Complexity < 0 || intent.Complexity > 1 {
		return nil, fmt.Errorf("complexity %v out of range", intent.Complexity)
	}
	return &intent, nil
}

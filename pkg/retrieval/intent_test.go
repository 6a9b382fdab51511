package retrieval_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collectiq/agentmem-go/pkg/retrieval"
)

func TestClassifyParsesResponse(t *testing.T) {
	provider := &scriptedLLM{responses: []string{
		`{"type": "complex", "intent": "find what worked for hardship cases", "complexity": 0.8, "required_information": ["payment history", "prior offers"]}`,
	}}
	classifier := retrieval.NewIntentClassifier(provider)

	intent := classifier.Classify(context.Background(), "what should I offer a customer who lost their job?")

	require.NotNil(t, intent)
	assert.Equal(t, retrieval.QueryTypeComplex, intent.Type)
	assert.Equal(t, "find what worked for hardship cases", intent.Intent)
	assert.Equal(t, 0.8, intent.Complexity)
	assert.Equal(t, []string{"payment history", "prior offers"}, intent.RequiredInformation)
}

func TestClassifyNormalizesType(t *testing.T) {
	provider := &scriptedLLM{responses: []string{`{"type": " MULTI_STEP ", "complexity": 0.9}`}}
	classifier := retrieval.NewIntentClassifier(provider)

	intent := classifier.Classify(context.Background(), "walk me through the escalation")

	assert.Equal(t, retrieval.QueryTypeMultiStep, intent.Type)
	// Empty intent text falls back to the query so keyword checks still work.
	assert.Equal(t, "walk me through the escalation", intent.Intent)
}

func TestClassifyFallsBackOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		provider *scriptedLLM
	}{
		{"completion error", &scriptedLLM{err: errors.New("model unavailable")}},
		{"unparseable response", &scriptedLLM{responses: []string{"it is a simple one"}}},
		{"unknown query type", &scriptedLLM{responses: []string{`{"type": "trivial", "complexity": 0.2}`}}},
		{"complexity out of range", &scriptedLLM{responses: []string{`{"type": "simple", "complexity": 1.4}`}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := retrieval.NewIntentClassifier(tt.provider)
			intent := classifier.Classify(context.Background(), "when did they last pay?")

			require.NotNil(t, intent)
			assert.Equal(t, retrieval.QueryTypeSimple, intent.Type)
			assert.Equal(t, "when did they last pay?", intent.Intent)
			assert.Equal(t, 0.5, intent.Complexity)
		})
	}
}

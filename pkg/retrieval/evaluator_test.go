package retrieval_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collectiq/agentmem-go/pkg/retrieval"
)

func TestEvaluateParsesAssessment(t *testing.T) {
	provider := &scriptedLLM{responses: []string{
		`{"accuracy": 0.9, "relevance": 0.85, "completeness": 0.8, "compliance": 1.0, "overall": 0.88, "feedback": "grounded and compliant"}`,
	}}
	evaluator := retrieval.NewEvaluator(provider)

	assessment := evaluator.Evaluate(context.Background(),
		"I can set up a split payment today.", &retrieval.AssembledContext{Query: "q"})

	require.NotNil(t, assessment)
	assert.Equal(t, 0.9, assessment.Accuracy)
	assert.Equal(t, 1.0, assessment.Compliance)
	assert.Equal(t, 0.88, assessment.Overall)
	assert.True(t, assessment.Passed)
	assert.Equal(t, "grounded and compliant", assessment.Feedback)
}

func TestEvaluatePassBoundary(t *testing.T) {
	tests := []struct {
		name    string
		overall float64
		passed  bool
	}{
		{"above threshold", 0.71, true},
		{"at threshold", 0.7, true},
		{"below threshold", 0.69, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &scriptedLLM{responses: []string{fmt.Sprintf(
				`{"accuracy": 0.7, "relevance": 0.7, "completeness": 0.7, "compliance": 0.7, "overall": %v}`, tt.overall)}}
			evaluator := retrieval.NewEvaluator(provider)

			assessment := evaluator.Evaluate(context.Background(), "response", nil)
			assert.Equal(t, tt.passed, assessment.Passed)
		})
	}
}

func TestEvaluateNeutralOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		provider *scriptedLLM
	}{
		{"completion error", &scriptedLLM{err: errors.New("model unavailable")}},
		{"unparseable response", &scriptedLLM{responses: []string{"looks fine to me"}}},
		{"score out of range", &scriptedLLM{responses: []string{
			`{"accuracy": 1.4, "relevance": 0.7, "completeness": 0.7, "compliance": 0.7, "overall": 0.7}`,
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluator := retrieval.NewEvaluator(tt.provider)
			assessment := evaluator.Evaluate(context.Background(), "response", nil)

			require.NotNil(t, assessment)
			assert.Equal(t, 0.7, assessment.Accuracy)
			assert.Equal(t, 0.7, assessment.Overall)
			assert.True(t, assessment.Passed)
			assert.Equal(t, "evaluation unavailable, neutral assessment applied", assessment.Feedback)
		})
	}
}

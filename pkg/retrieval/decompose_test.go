package retrieval_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/collectiq/agentmem-go/pkg/retrieval"
)

func TestDecomposeSimplePassthrough(t *testing.T) {
	provider := &scriptedLLM{}
	decomposer := retrieval.NewDecomposer(provider, 5)

	subtasks := decomposer.Decompose(context.Background(), "last payment date?",
		&retrieval.QueryIntent{Type: retrieval.QueryTypeSimple})
	assert.Equal(t, []string{"last payment date?"}, subtasks)

	subtasks = decomposer.Decompose(context.Background(), "last payment date?", nil)
	assert.Equal(t, []string{"last payment date?"}, subtasks)

	assert.Zero(t, provider.callCount())
}

func TestDecomposeParsesSubtasks(t *testing.T) {
	provider := &scriptedLLM{responses: []string{
		`{"subtasks": ["hardship program eligibility", "  ", "payment plan outcomes for high risk"]}`,
	}}
	decomposer := retrieval.NewDecomposer(provider, 5)

	subtasks := decomposer.Decompose(context.Background(), "how do I help a customer who lost their job?",
		&retrieval.QueryIntent{Type: retrieval.QueryTypeComplex, Intent: "hardship options"})

	assert.Equal(t, []string{"hardship program eligibility", "payment plan outcomes for high risk"}, subtasks)
}

func TestDecomposeCapsSubtasks(t *testing.T) {
	provider := &scriptedLLM{responses: []string{`{"subtasks": ["a", "b", "c", "d"]}`}}
	decomposer := retrieval.NewDecomposer(provider, 2)

	subtasks := decomposer.Decompose(context.Background(), "plan the outreach",
		&retrieval.QueryIntent{Type: retrieval.QueryTypeMultiStep, Intent: "sequencing"})

	assert.Equal(t, []string{"a", "b"}, subtasks)
}

func TestDecomposeFallsBackToQuery(t *testing.T) {
	tests := []struct {
		name     string
		provider *scriptedLLM
	}{
		{"completion error", &scriptedLLM{err: errors.New("model unavailable")}},
		{"unparseable response", &scriptedLLM{responses: []string{"split it however you like"}}},
		{"empty subtasks", &scriptedLLM{responses: []string{`{"subtasks": []}`}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decomposer := retrieval.NewDecomposer(tt.provider, 5)
			subtasks := decomposer.Decompose(context.Background(), "complex ask",
				&retrieval.QueryIntent{Type: retrieval.QueryTypeComplex, Intent: "several angles"})
			assert.Equal(t, []string{"complex ask"}, subtasks)
		})
	}
}

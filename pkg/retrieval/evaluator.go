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

// passThreshold is the overall score at or above which a response passes.
const passThreshold = 0.7

// Evaluator scores a candidate agent response against the context it was
// generated from. Advisory only: every failure path yields a neutral
// passing assessment so evaluation never blocks the caller.
type Evaluator struct {
	llm llm.Provider
	log *logrus.Entry
}

// NewEvaluator creates an evaluator.
func NewEvaluator(provider llm.Provider) *Evaluator {
	return &Evaluator{
		llm: provider,
		log: logging.Component("retrieval.evaluator"),
	}
}

// Evaluate scores accuracy, relevance, completeness, and regulatory
// compliance of the response, each in [0, 1]. Passed derives from the
// overall score against the pass threshold.
func (e *Evaluator) Evaluate(ctx context.Context, response string, assembled *AssembledContext) *QualityAssessment {
	messages := []llm.Message{
		{Role: llm.RoleUser, Content: buildEvaluationPrompt(response, assembled)},
	}
	completion, err := e.llm.Complete(ctx, messages,
		llm.WithTemperature(0),
		llm.WithMaxTokens(300),
		llm.WithJSONResponse(),
	)
	if err != nil {
		e.log.WithError(err).Warn("response evaluation failed, using neutral assessment")
		return neutralAssessment()
	}

	assessment, err := parseAssessmentResponse(completion.Content)
	if err != nil {
		e.log.WithError(err).Warn("evaluation response unparseable, using neutral assessment")
		return neutralAssessment()
	}
	return assessment
}

func buildEvaluationPrompt(response string, assembled *AssembledContext) string {
	var b strings.Builder
	b.WriteString("You audit a debt-collection agent's response for quality and regulatory compliance (FDCPA: no threats, no misrepresentation, no harassment).\n")

	if assembled != nil {
		fmt.Fprintf(&b, "\nQuery the agent was answering: %s\n", assembled.Query)
		if len(assembled.Recommendations) > 0 {
			b.WriteString("\nContext recommendations the agent had:\n")
			for _, rec := range assembled.Recommendations {
				fmt.Fprintf(&b, "- %s\n", rec)
			}
		}
		if len(assembled.KeyInsights) > 0 {
			b.WriteString("\nContext insights:\n")
			for _, insight := range assembled.KeyInsights {
				fmt.Fprintf(&b, "- %s\n", insight)
			}
		}
	}

	fmt.Fprintf(&b, "\nAgent response to evaluate:\n%s\n", response)
	b.WriteString(`
Score each dimension from 0.0 to 1.0 and return JSON only:
{"accuracy": <0-1>, "relevance": <0-1>, "completeness": <0-1>, "compliance": <0-1>, "overall": <0-1>, "feedback": "<one sentence>"}`)
	return b.String()
}

func parseAssessmentResponse(response string) (*QualityAssessment, error) {
	cleaned := llm.CleanJSONResponse(response)

	var assessment QualityAssessment
	if err := json.Unmarshal([]byte(cleaned), &assessment); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	for _, score := range []float64{
		assessment.Accuracy, assessment.Relevance, assessment.Completeness,
		assessment.Compliance, assessment.Overall,
	} {
		if score < 0 || score > 1 {
			return nil, fmt.Errorf("score %v out of range", score)
		}
	}

	assessment.Passed = assessment.Overall >= passThreshold
	return &assessment, nil
}

func neutralAssessment() *QualityAssessment {
	return &QualityAssessment{
		Accuracy:     0.7,
		Relevance:    0.7,
		Completeness: 0.7,
		Compliance:   0.7,
		Overall:      0.7,
		Passed:       true,
		Feedback:     "evaluation unavailable, neutral assessment applied",
	}
}

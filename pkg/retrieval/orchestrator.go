// Package retrieval implements the agentic context pipeline: intent
// analysis, task decomposition, retrieval planning, parallel execution
// against the archive, optional LLM re-ranking, context assembly,
// confidence scoring, and response quality evaluation.
//
// Every LLM-backed step degrades to a documented fallback instead of
// failing the query; the only fatal pipeline error is the archive being
// unreachable for every subtask, surfaced as memerr.ErrTransient.
package retrieval

import (
	"context"
	"strings"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/embedder"
	"github.com/collectiq/agentmem-go/pkg/llm"
	"github.com/collectiq/agentmem-go/pkg/logging"
	"github.com/collectiq/agentmem-go/pkg/memerr"
)

// Pipeline defaults.
const (
	DefaultMaxConcurrentRetrievals = 4
	DefaultMaxSubtasks             = 5
	DefaultMaxLimit                = 20
	DefaultScoreThreshold          = 0.7
)

// Config tunes the pipeline.
type Config struct {
	// MaxConcurrentRetrievals bounds the search fan-out worker pool.
	MaxConcurrentRetrievals int

	// MaxSubtasks caps how many sub-queries decomposition may produce.
	MaxSubtasks int

	// MaxLimit caps the result limit after adaptive widening.
	MaxLimit int

	// ScoreThreshold excludes matches scoring below it. Negative
	// disables the floor; zero uses DefaultScoreThreshold.
	ScoreThreshold float64

	// EpisodicCollection and SemanticCollection name the archive
	// collections. Empty uses the archive defaults.
	EpisodicCollection string
	SemanticCollection string
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrentRetrievals <= 0 {
		c.MaxConcurrentRetrievals = DefaultMaxConcurrentRetrievals
	}
	if c.MaxSubtasks <= 0 {
		c.MaxSubtasks = DefaultMaxSubtasks
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = DefaultMaxLimit
	}
	if c.ScoreThreshold == 0 {
		c.ScoreThreshold = DefaultScoreThreshold
	} else if c.ScoreThreshold < 0 {
		c.ScoreThreshold = 0
	}
	if c.EpisodicCollection == "" {
		c.EpisodicCollection = archive.CollectionEpisodic
	}
	if c.SemanticCollection == "" {
		c.SemanticCollection = archive.CollectionSemantic
	}
	return c
}

// Orchestrator runs the pipeline end to end and owns its worker pool.
type Orchestrator struct {
	classifier *IntentClassifier
	decomposer *Decomposer
	planner    *Planner
	executor   *Executor
	reranker   *Reranker
	assembler  *Assembler
	evaluator  *Evaluator
	metrics    *PerformanceTracker
	pool       *ants.Pool
	log        *logrus.Entry
}

// NewOrchestrator wires the pipeline against the given archive, LLM, and
// embedder. Call Close when done to release the worker pool.
func NewOrchestrator(store archive.Store, llmProvider llm.Provider, embedProvider embedder.Provider, cfg Config) (*Orchestrator, error) {
	cfg = cfg.withDefaults()

	pool, err := ants.NewPool(cfg.MaxConcurrentRetrievals)
	if err != nil {
		return nil, memerr.New("retrieval.new", err)
	}

	metrics := NewPerformanceTracker()
	return &Orchestrator{
		classifier: NewIntentClassifier(llmProvider),
		decomposer: NewDecomposer(llmProvider, cfg.MaxSubtasks),
		planner:    NewPlanner(metrics, cfg.MaxLimit),
		executor: NewExecutor(store, embedProvider, pool, ExecutorConfig{
			EpisodicCollection: cfg.EpisodicCollection,
			SemanticCollection: cfg.SemanticCollection,
			ScoreThreshold:     cfg.ScoreThreshold,
		}),
		reranker:  NewReranker(llmProvider),
		assembler: NewAssembler(llmProvider, cfg.SemanticCollection),
		evaluator: NewEvaluator(llmProvider),
		metrics:   metrics,
		pool:      pool,
		log:       logging.Component("retrieval"),
	}, nil
}

// RetrieveContext runs the full pipeline for one query.
func (o *Orchestrator) RetrieveContext(ctx context.Context, req *Request) (*AssembledContext, error) {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return nil, memerr.Validation("retrieval.retrieve", "query is required")
	}

	intent := o.classifier.Classify(ctx, req.Query)
	subtasks := o.decomposer.Decompose(ctx, req.Query, intent)
	strategy := o.planner.Plan(intent, req)

	candidates, err := o.executor.Execute(ctx, subtasks, strategy)
	if err != nil {
		return nil, err
	}

	if strategy.Rerank && len(candidates) > strategy.Limit {
		candidates = o.reranker.Rerank(ctx, req.Query, candidates)
	}
	if strategy.Limit > 0 && len(candidates) > strategy.Limit {
		candidates = candidates[:strategy.Limit]
	}

	assembled := o.assembler.Assemble(ctx, req, intent, candidates)
	assembled.Confidence = ConfidenceScore(intent, assembled.Episodic, assembled.Semantic)

	o.log.WithFields(logrus.Fields{
		"query_type": intent.Type,
		"subtasks":   len(subtasks),
		"matches":    assembled.MergedCount(),
		"confidence": assembled.Confidence,
	}).Debug("assembled retrieval context")
	return assembled, nil
}

// EvaluateResponse scores a candidate response against its context.
func (o *Orchestrator) EvaluateResponse(ctx context.Context, response string, assembled *AssembledContext) *QualityAssessment {
	return o.evaluator.Evaluate(ctx, response, assembled)
}

// RecordFeedback folds an interaction outcome into the performance
// metrics that bias future planning.
func (o *Orchestrator) RecordFeedback(queryType, riskTier string, success bool, confidence float64) {
	o.metrics.Record(queryType, riskTier, success, confidence)
}

// Metrics exposes the performance tracker, mainly for stats reporting.
func (o *Orchestrator) Metrics() *PerformanceTracker {
	return o.metrics
}

// Close releases the worker pool.
func (o *Orchestrator) Close() error {
	o.pool.Release()
	return nil
}

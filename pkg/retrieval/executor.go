package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/embedder"
	"github.com/collectiq/agentmem-go/pkg/logging"
	"github.com/collectiq/agentmem-go/pkg/memerr"
)

// Executor runs the planned searches: one archive search per
// (subtask, collection) pair through a bounded worker pool, then merges
// and deduplicates the hits.
//
// Individual search failures are logged and skipped. Only all searches
// failing is fatal, surfaced as memerr.ErrTransient.
type Executor struct {
	store    archive.Store
	embedder embedder.Provider
	pool     *ants.Pool

	episodicCollection string
	semanticCollection string
	scoreThreshold     float64

	log *logrus.Entry
}

// ExecutorConfig carries the executor's collection names and score floor.
type ExecutorConfig struct {
	// EpisodicCollection names the interaction collection. Empty uses
	// archive.CollectionEpisodic.
	EpisodicCollection string

	// SemanticCollection names the strategy collection. Empty uses
	// archive.CollectionSemantic.
	SemanticCollection string

	// ScoreThreshold excludes weak matches from every search. Zero
	// disables the floor.
	ScoreThreshold float64
}

// NewExecutor creates an executor sharing the given worker pool. The pool
// is borrowed: the owner releases it.
func NewExecutor(store archive.Store, provider embedder.Provider, pool *ants.Pool, cfg ExecutorConfig) *Executor {
	if cfg.EpisodicCollection == "" {
		cfg.EpisodicCollection = archive.CollectionEpisodic
	}
	if cfg.SemanticCollection == "" {
		cfg.SemanticCollection = archive.CollectionSemantic
	}
	return &Executor{
		store:              store,
		embedder:           provider,
		pool:               pool,
		episodicCollection: cfg.EpisodicCollection,
		semanticCollection: cfg.SemanticCollection,
		scoreThreshold:     cfg.ScoreThreshold,
		log:                logging.Component("retrieval.executor"),
	}
}

// Execute embeds the subtasks, searches every enabled collection for each
// of them, and returns the merged candidates deduplicated by memory id and
// sorted by similarity. The strategy limit is NOT applied here: re-ranking
// decides the final cut.
func (e *Executor) Execute(ctx context.Context, subtasks []string, strategy *Strategy) ([]Candidate, error) {
	collections := e.collections(strategy)
	if len(subtasks) == 0 || len(collections) == 0 {
		return nil, nil
	}

	vectors, err := e.embedder.EmbedBatch(ctx, subtasks)
	if err != nil {
		return nil, memerr.Transient("retrieval.execute", fmt.Errorf("embed subtasks: %w", err))
	}

	params := &archive.SearchParams{
		Filter:         strategy.Filter,
		Limit:          strategy.Limit,
		ScoreThreshold: e.scoreThreshold,
	}

	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		candidates []Candidate
		failures   int
		submitted  int
	)

submit:
	for i := range vectors {
		vector := vectors[i]
		subtask := subtasks[i]
		for _, collection := range collections {
			if ctx.Err() != nil {
				break submit
			}
			collection := collection
			submitted++
			wg.Add(1)
			err := e.pool.Submit(func() {
				defer wg.Done()
				if ctx.Err() != nil {
					mu.Lock()
					failures++
					mu.Unlock()
					return
				}
				records, err := e.store.Search(ctx, collection, vector, params)
				if err != nil {
					e.log.WithError(err).WithFields(logrus.Fields{
						"collection": collection,
						"subtask":    subtask,
					}).Warn("subtask search failed, skipping")
					mu.Lock()
					failures++
					mu.Unlock()
					return
				}
				mu.Lock()
				for _, record := range records {
					candidates = append(candidates, Candidate{Collection: collection, Record: record})
				}
				mu.Unlock()
			})
			if err != nil {
				wg.Done()
				mu.Lock()
				failures++
				mu.Unlock()
			}
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if submitted > 0 && failures == submitted {
		return nil, memerr.Transient("retrieval.execute", errors.New("all subtask searches failed"))
	}

	merged := dedupeCandidates(candidates)
	sortCandidates(merged)
	return merged, nil
}

func (e *Executor) collections(strategy *Strategy) []string {
	if strategy == nil {
		return []string{e.episodicCollection, e.semanticCollection}
	}
	var collections []string
	if strategy.UseEpisodic {
		collections = append(collections, e.episodicCollection)
	}
	if strategy.UseSemantic {
		collections = append(collections, e.semanticCollection)
	}
	return collections
}

// dedupeCandidates drops repeated memory ids, keeping the best-scoring
// hit for each. Subtask searches overlap heavily on broad queries.
func dedupeCandidates(candidates []Candidate) []Candidate {
	seen := make(map[string]int, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Record == nil {
			continue
		}
		idx, ok := seen[candidate.Record.ID]
		if !ok {
			seen[candidate.Record.ID] = len(out)
			out = append(out, candidate)
			continue
		}
		if candidate.Record.Score > out[idx].Record.Score {
			out[idx] = candidate
		}
	}
	return out
}

func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Record.Score > candidates[j].Record.Score
	})
}

package core

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/memerr"
	"github.com/collectiq/agentmem-go/pkg/types"
)

const (
	// batchConcurrency bounds the concurrent upserts of one bulk import.
	batchConcurrency = 8

	// batchChunkSize is how many records travel in one upsert.
	batchChunkSize = 100
)

// BatchStoreResult reports the outcome of a bulk interaction import.
type BatchStoreResult struct {
	// StoredIDs lists the archived record ids, in input order.
	StoredIDs []string `json:"stored_ids"`

	// Failures maps input indexes to the error that rejected them.
	Failures map[int]error `json:"-"`
}

// Stored is the number of inputs that reached the archive.
func (r *BatchStoreResult) Stored() int {
	return len(r.StoredIDs)
}

// Failed is the number of inputs that were rejected.
func (r *BatchStoreResult) Failed() int {
	return len(r.Failures)
}

// BatchStoreInteractions imports episodic memories in bulk, for historical
// backfills. Inputs missing an embedding are embedded together in one batch
// call; the records are then upserted in chunks with bounded concurrency.
//
// Invalid inputs (nil, or missing both a transcript and an embedding) are
// reported per index in the result rather than failing the call. The call
// itself fails only when the input is empty, the batch embedding fails, or
// the context is cancelled.
func (c *Client) BatchStoreInteractions(ctx context.Context, memories []*types.EpisodicMemory) (*BatchStoreResult, error) {
	if len(memories) == 0 {
		return nil, memerr.Validation("core.batch_store", "at least one memory is required")
	}

	result := &BatchStoreResult{Failures: make(map[int]error)}
	now := time.Now().UTC()

	// Fill defaults and collect the transcripts that still need vectors.
	var (
		pending []*types.EpisodicMemory
		texts   []string
	)
	valid := make([]bool, len(memories))
	for i, memory := range memories {
		if memory == nil {
			result.Failures[i] = memerr.Validation("core.batch_store", "memory %d is nil", i)
			continue
		}
		fillInteractionDefaults(memory, now)
		if len(memory.Embedding) == 0 {
			if memory.Transcript == "" {
				result.Failures[i] = memerr.Validation("core.batch_store", "memory %d has neither a transcript nor an embedding", i)
				continue
			}
			pending = append(pending, memory)
			texts = append(texts, memory.Transcript)
		}
		valid[i] = true
	}

	if len(texts) > 0 {
		vectors, err := c.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, memerr.Transient("core.batch_store", err)
		}
		if len(vectors) != len(pending) {
			return nil, memerr.Consistency("core.batch_store", "embedded %d of %d transcripts", len(vectors), len(pending))
		}
		for i, memory := range pending {
			memory.Embedding = vectors[i]
		}
	}

	// Chunk the valid records and upsert the chunks concurrently.
	type chunk struct {
		indexes []int
		records []*archive.Record
	}
	var (
		chunks  []chunk
		current chunk
	)
	for i, memory := range memories {
		if !valid[i] {
			continue
		}
		current.indexes = append(current.indexes, i)
		current.records = append(current.records, archive.RecordFromEpisodic(memory))
		if len(current.records) == batchChunkSize {
			chunks = append(chunks, current)
			current = chunk{}
		}
	}
	if len(current.records) > 0 {
		chunks = append(chunks, current)
	}

	pool, err := ants.NewPool(batchConcurrency)
	if err != nil {
		return nil, memerr.New("core.batch_store", err)
	}
	defer pool.Release()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	ids := make([]string, len(memories))
submit:
	for _, ch := range chunks {
		if err := ctx.Err(); err != nil {
			break submit
		}
		ch := ch
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				mu.Lock()
				for _, idx := range ch.indexes {
					result.Failures[idx] = memerr.New("core.batch_store", err)
				}
				mu.Unlock()
				return
			}
			err := c.archive.Upsert(ctx, c.config.Archive.EpisodicCollection, ch.records)
			mu.Lock()
			if err != nil {
				for _, idx := range ch.indexes {
					result.Failures[idx] = err
				}
			} else {
				for _, idx := range ch.indexes {
					ids[idx] = memories[idx].ID
				}
			}
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			for _, idx := range ch.indexes {
				result.Failures[idx] = memerr.New("core.batch_store", submitErr)
			}
			mu.Unlock()
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, memerr.New("core.batch_store", err)
	}

	for _, id := range ids {
		if id != "" {
			result.StoredIDs = append(result.StoredIDs, id)
		}
	}

	c.log.WithField("stored", result.Stored()).WithField("failed", result.Failed()).
		Info("bulk interaction import complete")
	return result, nil
}

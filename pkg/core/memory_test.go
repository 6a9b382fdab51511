package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/core"
	"github.com/collectiq/agentmem-go/pkg/memerr"
	"github.com/collectiq/agentmem-go/pkg/session/memory"
	"github.com/collectiq/agentmem-go/pkg/types"
)

func setupClient(t *testing.T, store *fakeArchive, provider *scriptedLLM) *core.Client {
	t.Helper()

	cfg := core.DefaultConfig()
	cfg.Consolidation.Enabled = false

	client, err := core.NewClient(cfg,
		core.WithSessionStore(memory.NewStore()),
		core.WithArchiveStore(store),
		core.WithLLM(provider),
		core.WithEmbedder(&fakeEmbedder{dims: 4}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, client.Close())
	})
	return client
}

func storedInteraction(id, customerID string, success bool) *archive.Record {
	mem := &types.EpisodicMemory{
		ID:         id,
		Timestamp:  time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC),
		CustomerID: customerID,
		CampaignID: "q2-loans",
		AgentType:  types.AgentTypePhone,
		Transcript: "agent: can you pay?\ncustomer: half now",
		Channel:    "phone",
		Outcome:    types.Outcome{Success: success},
		Context:    types.ContextSnapshot{RiskTier: "medium"},
		Sentiment:  types.SentimentNeutral,
	}
	return &archive.Record{ID: id, Score: 0.9, Payload: mem.Payload()}
}

func storedStrategy(id string) *archive.Record {
	mem := &types.SemanticMemory{
		ID:           id,
		Category:     "negotiation_tactics",
		Title:        "Split payment offer",
		Description:  "offer half now when full payment is refused",
		SuccessRate:  0.8,
		TimesApplied: 10,
		Confidence:   0.8,
	}
	return &archive.Record{ID: id, Score: 0.85, Payload: mem.Payload()}
}

func TestQueryValidatesInput(t *testing.T) {
	client := setupClient(t, newFakeArchive(), &scriptedLLM{})

	_, err := client.Query(context.Background(), "   ")
	assert.True(t, memerr.IsValidation(err))
}

func TestQueryMergesTiersAndDeduplicates(t *testing.T) {
	store := newFakeArchive()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, archive.CollectionEpisodic, []*archive.Record{
		storedInteraction("epi-1", "cust-1", true),
		storedInteraction("dup-1", "cust-1", false),
	}))
	require.NoError(t, store.Upsert(ctx, archive.CollectionSemantic, []*archive.Record{
		storedStrategy("sem-1"),
		storedStrategy("dup-1"),
	}))

	client := setupClient(t, store, &scriptedLLM{})
	result, err := client.Query(ctx, "payment plan objections")
	require.NoError(t, err)

	// The shared id surfaces once, from the episodic tier.
	assert.Len(t, result.EpisodicMemories, 2)
	assert.Len(t, result.SemanticMemories, 1)
	assert.Equal(t, 3, result.TotalResults)
	assert.Equal(t, "sem-1", result.SemanticMemories[0].ID)

	seen := make(map[string]int)
	for _, m := range result.EpisodicMemories {
		seen[m.ID]++
	}
	for _, m := range result.SemanticMemories {
		seen[m.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "memory %s returned more than once", id)
	}
}

func TestQueryTierToggles(t *testing.T) {
	store := newFakeArchive()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, archive.CollectionEpisodic, []*archive.Record{
		storedInteraction("epi-1", "cust-1", true),
	}))
	require.NoError(t, store.Upsert(ctx, archive.CollectionSemantic, []*archive.Record{
		storedStrategy("sem-1"),
	}))

	client := setupClient(t, store, &scriptedLLM{})

	result, err := client.Query(ctx, "objections", core.WithIncludeSemantic(false))
	require.NoError(t, err)
	assert.Len(t, result.EpisodicMemories, 1)
	assert.Empty(t, result.SemanticMemories)

	result, err = client.Query(ctx, "objections", core.WithIncludeEpisodic(false))
	require.NoError(t, err)
	assert.Empty(t, result.EpisodicMemories)
	assert.Len(t, result.SemanticMemories, 1)
}

func TestQueryResolvesNewestLiveSession(t *testing.T) {
	client := setupClient(t, newFakeArchive(), &scriptedLLM{})
	ctx := context.Background()

	older := &types.Session{
		SessionID:  "sess-old",
		CustomerID: "cust-1",
		AgentType:  types.AgentTypePhone,
		CreatedAt:  time.Now().Add(-time.Hour),
	}
	newer := &types.Session{
		SessionID:  "sess-new",
		CustomerID: "cust-1",
		AgentType:  types.AgentTypeSMS,
		CreatedAt:  time.Now().Add(-time.Minute),
	}
	require.NoError(t, client.StoreSession(ctx, older))
	require.NoError(t, client.StoreSession(ctx, newer))

	result, err := client.Query(ctx, "current state", core.WithCustomerID("cust-1"))
	require.NoError(t, err)
	require.NotNil(t, result.CurrentSession)
	assert.Equal(t, "sess-new", result.CurrentSession.SessionID)

	// No live session is not an error.
	result, err = client.Query(ctx, "current state", core.WithCustomerID("cust-unknown"))
	require.NoError(t, err)
	assert.Nil(t, result.CurrentSession)
}

func TestStoreInteractionFillsDefaults(t *testing.T) {
	store := newFakeArchive()
	client := setupClient(t, store, &scriptedLLM{})
	ctx := context.Background()

	id, err := client.StoreInteraction(ctx, &types.EpisodicMemory{
		CustomerID: "cust-1",
		AgentType:  types.AgentTypeEmail,
		Transcript: "agent: reminder sent\ncustomer: will pay friday",
		Outcome:    types.Outcome{Success: true},
		Sentiment:  types.SentimentNeutral,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	record, err := store.GetByID(ctx, archive.CollectionEpisodic, id)
	require.NoError(t, err)
	assert.NotEmpty(t, record.Vector, "missing embeddings are generated from the transcript")
	got := types.EpisodicFromPayload(record.Payload)
	assert.Equal(t, "email", got.Channel)
	assert.False(t, got.Timestamp.IsZero())
}

func TestStoreInteractionValidation(t *testing.T) {
	client := setupClient(t, newFakeArchive(), &scriptedLLM{})
	ctx := context.Background()

	_, err := client.StoreInteraction(ctx, nil)
	assert.True(t, memerr.IsValidation(err))

	_, err = client.StoreInteraction(ctx, &types.EpisodicMemory{CustomerID: "cust-1"})
	assert.True(t, memerr.IsValidation(err), "neither transcript nor embedding")
}

func TestStoreStrategyFillsNewRecordDefaults(t *testing.T) {
	store := newFakeArchive()
	client := setupClient(t, store, &scriptedLLM{})
	ctx := context.Background()

	id, err := client.StoreStrategy(ctx, &types.SemanticMemory{
		Title:       "Lead with empathy",
		Description: "acknowledge hardship before discussing amounts",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	record, err := store.GetByID(ctx, archive.CollectionSemantic, id)
	require.NoError(t, err)
	got := types.SemanticFromPayload(record.Payload)
	assert.Equal(t, 1, got.TimesApplied)
	assert.Equal(t, 1.0, got.SuccessRate)
	assert.Equal(t, 0.7, got.Confidence)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = client.StoreStrategy(ctx, &types.SemanticMemory{Description: "no title"})
	assert.True(t, memerr.IsValidation(err))
}

func TestConsolidateSessionThroughFacade(t *testing.T) {
	store := newFakeArchive()
	client := setupClient(t, store, &scriptedLLM{err: errors.New("llm down")})
	ctx := context.Background()

	sess := &types.Session{
		SessionID:  "sess-1",
		CustomerID: "cust-1",
		AgentType:  types.AgentTypePhone,
		ConversationHistory: []types.Message{
			{Role: "agent", Content: "hello"},
			{Role: "customer", Content: "paying now"},
		},
	}
	require.NoError(t, client.StoreSession(ctx, sess))

	got, err := client.ConsolidateSession(ctx, "sess-1", &types.Outcome{Success: false})
	require.NoError(t, err)
	assert.Equal(t, types.EpisodicIDForSession("sess-1"), got.ID)

	_, err = client.GetSession(ctx, "sess-1")
	assert.True(t, memerr.IsNotFound(err))

	_, err = client.ConsolidateSession(ctx, "sess-1", nil)
	assert.True(t, memerr.IsNotFound(err))

	count, err := store.Count(ctx, archive.CollectionEpisodic, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRetrieveContextFallsBackWithoutLLM(t *testing.T) {
	store := newFakeArchive()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, archive.CollectionEpisodic, []*archive.Record{
		storedInteraction("epi-1", "cust-1", true),
	}))

	// Every LLM step degrades: fallback intent, no rerank, the default
	// recommendation. The request still succeeds.
	client := setupClient(t, store, &scriptedLLM{err: errors.New("llm down")})
	assembled, err := client.RetrieveContext(ctx, "how should I open this call?")
	require.NoError(t, err)
	assert.Equal(t, 1, assembled.MergedCount())
	assert.NotEmpty(t, assembled.Recommendations)
	assert.GreaterOrEqual(t, assembled.Confidence, 0.0)
	assert.LessOrEqual(t, assembled.Confidence, 1.0)
}

func TestBatchStoreInteractionsReportsPerIndexFailures(t *testing.T) {
	store := newFakeArchive()
	client := setupClient(t, store, &scriptedLLM{})
	ctx := context.Background()

	result, err := client.BatchStoreInteractions(ctx, []*types.EpisodicMemory{
		{CustomerID: "cust-1", AgentType: types.AgentTypePhone, Transcript: "agent: hi\ncustomer: paying"},
		nil,
		{CustomerID: "cust-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stored())
	assert.Equal(t, 2, result.Failed())
	assert.True(t, memerr.IsValidation(result.Failures[1]))
	assert.True(t, memerr.IsValidation(result.Failures[2]))

	_, err = client.BatchStoreInteractions(ctx, nil)
	assert.True(t, memerr.IsValidation(err))
}

func TestStatsAggregatesTiersAndSegments(t *testing.T) {
	store := newFakeArchive()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, archive.CollectionEpisodic, []*archive.Record{
		storedInteraction("epi-1", "cust-1", true),
		storedInteraction("epi-2", "cust-2", false),
	}))
	require.NoError(t, store.Upsert(ctx, archive.CollectionSemantic, []*archive.Record{
		storedStrategy("sem-1"),
	}))

	client := setupClient(t, store, &scriptedLLM{})
	require.NoError(t, client.StoreSession(ctx, &types.Session{
		SessionID:  "sess-1",
		CustomerID: "cust-1",
		AgentType:  types.AgentTypePhone,
	}))
	client.RecordFeedback("simple", "medium", true, 0.8)

	stats, err := client.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.LiveSessions)
	assert.Equal(t, int64(2), stats.EpisodicCount)
	assert.Equal(t, int64(1), stats.SemanticCount)
	require.Contains(t, stats.Segments, "simple|medium")
	assert.Equal(t, 1, stats.Segments["simple|medium"].TotalCount)

	assert.NoError(t, client.Health(ctx))
}

package core

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/collectiq/agentmem-go/pkg/archive"
	chromemStore "github.com/collectiq/agentmem-go/pkg/archive/chromem"
	postgresStore "github.com/collectiq/agentmem-go/pkg/archive/postgres"
	qdrantStore "github.com/collectiq/agentmem-go/pkg/archive/qdrant"
	sqliteStore "github.com/collectiq/agentmem-go/pkg/archive/sqlite"
	"github.com/collectiq/agentmem-go/pkg/consolidation"
	"github.com/collectiq/agentmem-go/pkg/embedder"
	openaiEmbedder "github.com/collectiq/agentmem-go/pkg/embedder/openai"
	"github.com/collectiq/agentmem-go/pkg/llm"
	anthropicLLM "github.com/collectiq/agentmem-go/pkg/llm/anthropic"
	openaiLLM "github.com/collectiq/agentmem-go/pkg/llm/openai"
	"github.com/collectiq/agentmem-go/pkg/logging"
	"github.com/collectiq/agentmem-go/pkg/memerr"
	"github.com/collectiq/agentmem-go/pkg/retrieval"
	"github.com/collectiq/agentmem-go/pkg/session"
	memorySession "github.com/collectiq/agentmem-go/pkg/session/memory"
	redisSession "github.com/collectiq/agentmem-go/pkg/session/redis"
	"github.com/collectiq/agentmem-go/pkg/types"
)

// Client is the agentmem memory facade.
//
// It owns both memory tiers and everything built on top of them:
//   - Session cache: live conversation state under a TTL
//   - Vector archive: episodic interactions and semantic strategies
//   - Retrieval orchestrator: the agentic context pipeline
//   - Consolidator: scheduled expired-session draining and retention
//
// The client is safe for concurrent use from multiple goroutines.
//
// Example usage:
//
//	cfg, _ := core.LoadConfigFromEnv()
//	client, _ := core.NewClient(cfg)
//	defer client.Close()
//
//	_ = client.Start(ctx) // launch consolidation schedules
//
//	assembled, _ := client.RetrieveContext(ctx, "how should I open this call?",
//	    core.WithCustomerIDForRetrieve("cust_001"),
//	)
type Client struct {
	// config contains the client configuration.
	config *Config

	// sessions is the TTL cache holding live conversations.
	sessions session.Store

	// archive is the vector store holding both long-term collections.
	archive archive.Store

	// llm is the language model provider behind the pipeline steps.
	llm llm.Provider

	// embedder is the embedding provider for vector generation.
	embedder embedder.Provider

	// orchestrator runs the retrieval pipeline.
	orchestrator *retrieval.Orchestrator

	// consolidator drains expired sessions into the archive.
	consolidator *consolidation.Consolidator

	// snowflakeNode generates semantic memory ids.
	snowflakeNode *snowflake.Node

	log *logrus.Entry
}

// NewClient creates a new agentmem client.
//
// Components are built from the configuration factories: session store
// (redis or in-memory), archive store (qdrant, postgres, sqlite, or
// chromem), LLM provider (openai, anthropic), and embedding provider
// (openai, optionally wrapped in a read-through cache). ClientOptions
// inject pre-built components instead; an injected component skips its
// factory and its config section entirely.
//
// Example:
//
//	cfg := core.DefaultConfig()
//	cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
//	cfg.Embedder.APIKey = cfg.LLM.APIKey
//	client, err := core.NewClient(cfg)
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	injected := applyClientOptions(opts)

	logging.SetLevel(cfg.Logging.Level)
	logging.SetFormat(cfg.Logging.Format)

	// Components built here are closed again if a later step fails.
	// Injected components stay owned by the caller.
	var built []func() error
	fail := func(err error) (*Client, error) {
		for i := len(built) - 1; i >= 0; i-- {
			_ = built[i]()
		}
		return nil, err
	}

	sessions := injected.sessions
	if sessions == nil {
		if err := cfg.validateSession(); err != nil {
			return nil, err
		}
		store, err := initSessionStore(&cfg.Session)
		if err != nil {
			return nil, err
		}
		sessions = store
		built = append(built, store.Close)
	}

	archiveStore := injected.archive
	if archiveStore == nil {
		if err := cfg.validateArchive(); err != nil {
			return fail(err)
		}
		store, err := initArchiveStore(&cfg.Archive)
		if err != nil {
			return fail(err)
		}
		archiveStore = store
		built = append(built, store.Close)
	}

	llmProvider := injected.llm
	if llmProvider == nil {
		if err := cfg.validateLLM(); err != nil {
			return fail(err)
		}
		provider, err := initLLM(&cfg.LLM)
		if err != nil {
			return fail(err)
		}
		llmProvider = provider
		built = append(built, provider.Close)
	}

	embedderProvider := injected.embedder
	if embedderProvider == nil {
		if err := cfg.validateEmbedder(); err != nil {
			return fail(err)
		}
		provider, err := initEmbedder(&cfg.Embedder)
		if err != nil {
			return fail(err)
		}
		embedderProvider = provider
		built = append(built, provider.Close)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return fail(memerr.New("core.new", err))
	}

	orchestrator, err := retrieval.NewOrchestrator(archiveStore, llmProvider, embedderProvider, retrieval.Config{
		MaxConcurrentRetrievals: cfg.Retrieval.MaxConcurrentRetrievals,
		MaxSubtasks:             cfg.Retrieval.MaxSubtasks,
		MaxLimit:                cfg.Retrieval.MaxLimit,
		ScoreThreshold:          cfg.Retrieval.ScoreThreshold,
		EpisodicCollection:      cfg.Archive.EpisodicCollection,
		SemanticCollection:      cfg.Archive.SemanticCollection,
	})
	if err != nil {
		return fail(err)
	}
	built = append(built, orchestrator.Close)

	consolidator, err := consolidation.NewConsolidator(sessions, archiveStore, llmProvider, embedderProvider, node, consolidation.Config{
		SweepInterval:          cfg.Consolidation.SweepInterval,
		RetentionInterval:      cfg.Consolidation.RetentionInterval,
		RetentionMaxAge:        cfg.Consolidation.RetentionMaxAge,
		SweepBatchSize:         cfg.Consolidation.SweepBatchSize,
		Concurrency:            cfg.Consolidation.Concurrency,
		StrategyMergeThreshold: cfg.Consolidation.StrategyMergeThreshold,
		EpisodicCollection:     cfg.Archive.EpisodicCollection,
		SemanticCollection:     cfg.Archive.SemanticCollection,
	})
	if err != nil {
		return fail(err)
	}

	return &Client{
		config:        cfg,
		sessions:      sessions,
		archive:       archiveStore,
		llm:           llmProvider,
		embedder:      embedderProvider,
		orchestrator:  orchestrator,
		consolidator:  consolidator,
		snowflakeNode: node,
		log:           logging.Component("client"),
	}, nil
}

// Start launches the consolidation schedules (expired-session sweep and
// retention purge) when consolidation is enabled in the configuration.
// With consolidation disabled Start is a no-op; RunSweep and RunRetention
// stay available for explicit runs either way.
func (c *Client) Start(ctx context.Context) error {
	if !c.config.Consolidation.Enabled {
		c.log.Debug("consolidation disabled, schedules not started")
		return nil
	}
	return c.consolidator.Start(ctx)
}

// Query runs a two-tier lookup: the query is embedded once, both archive
// collections are searched concurrently, and when a customer id is given the
// customer's newest live session is resolved alongside.
//
// The merged result never contains two entries sharing a memory id.
//
// Example:
//
//	result, err := client.Query(ctx, "payment plan objections",
//	    core.WithCustomerID("cust_001"),
//	    core.WithQueryLimit(5),
//	)
func (c *Client) Query(ctx context.Context, query string, opts ...QueryOption) (*QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, memerr.Validation("core.query", "query is required")
	}
	queryOpts := applyQueryOptions(opts)
	started := time.Now()

	vector, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, memerr.Transient("core.query", err)
	}

	filter := &archive.Filter{
		CustomerID:  queryOpts.CustomerID,
		CampaignID:  queryOpts.CampaignID,
		AgentType:   string(queryOpts.AgentType),
		RiskTiers:   queryOpts.RiskTiers,
		Tags:        queryOpts.Tags,
		SuccessOnly: queryOpts.SuccessfulOnly,
	}
	if filter.IsZero() {
		filter = nil
	}
	params := &archive.SearchParams{
		Filter:         filter,
		Limit:          queryOpts.Limit,
		ScoreThreshold: queryOpts.MinScore,
	}

	var (
		episodicRecords []*archive.Record
		semanticRecords []*archive.Record
		currentSession  *types.Session
	)
	g, gctx := errgroup.WithContext(ctx)
	if queryOpts.IncludeEpisodic {
		g.Go(func() error {
			records, err := c.archive.Search(gctx, c.config.Archive.EpisodicCollection, vector, params)
			if err != nil {
				return err
			}
			episodicRecords = records
			return nil
		})
	}
	if queryOpts.IncludeSemantic {
		g.Go(func() error {
			records, err := c.archive.Search(gctx, c.config.Archive.SemanticCollection, vector, params)
			if err != nil {
				return err
			}
			semanticRecords = records
			return nil
		})
	}
	if queryOpts.CustomerID != "" {
		g.Go(func() error {
			sess, err := c.newestLiveSession(gctx, queryOpts.CustomerID)
			if err != nil {
				return err
			}
			currentSession = sess
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &QueryResult{
		CurrentSession:   currentSession,
		EpisodicMemories: make([]*types.EpisodicMemory, 0, len(episodicRecords)),
		SemanticMemories: make([]*types.SemanticMemory, 0, len(semanticRecords)),
	}
	seen := make(map[string]struct{}, len(episodicRecords)+len(semanticRecords))
	for _, record := range episodicRecords {
		if _, dup := seen[record.ID]; dup {
			continue
		}
		seen[record.ID] = struct{}{}
		result.EpisodicMemories = append(result.EpisodicMemories, archive.EpisodicFromRecord(record))
	}
	for _, record := range semanticRecords {
		if _, dup := seen[record.ID]; dup {
			continue
		}
		seen[record.ID] = struct{}{}
		result.SemanticMemories = append(result.SemanticMemories, archive.SemanticFromRecord(record))
	}
	result.TotalResults = len(result.EpisodicMemories) + len(result.SemanticMemories)
	result.QueryTime = time.Since(started)

	c.log.WithFields(logrus.Fields{
		"episodic": len(result.EpisodicMemories),
		"semantic": len(result.SemanticMemories),
		"took":     result.QueryTime,
	}).Debug("query complete")
	return result, nil
}

// newestLiveSession resolves the customer's most recently created live
// session. No live session is not an error; the result is just nil.
func (c *Client) newestLiveSession(ctx context.Context, customerID string) (*types.Session, error) {
	ids, err := c.sessions.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	var newest *types.Session
	for _, id := range ids {
		sess, err := c.sessions.Get(ctx, id)
		if err != nil {
			// Sessions can expire between the listing and the read.
			if memerr.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if newest == nil || sess.CreatedAt.After(newest.CreatedAt) {
			newest = sess
		}
	}
	return newest, nil
}

// StoreSession stores a live session in the cache under the configured TTL.
// An existing entry for the same id is replaced.
func (c *Client) StoreSession(ctx context.Context, sess *types.Session, opts ...SessionOption) error {
	sessionOpts := applySessionOptions(opts)
	ttl := sessionOpts.TTL
	if ttl <= 0 {
		ttl = c.config.Session.TTL
	}
	return c.sessions.Put(ctx, sess, ttl)
}

// UpdateSession applies a partial update to a live session and refreshes its
// TTL. A nil update still refreshes the deadline, which makes it a touch.
func (c *Client) UpdateSession(ctx context.Context, id string, update *types.SessionUpdate) (*types.Session, error) {
	return c.sessions.Update(ctx, id, func(s *types.Session) error {
		update.Apply(s)
		return nil
	})
}

// AppendMessage appends one conversation turn to a live session and
// refreshes its TTL.
func (c *Client) AppendMessage(ctx context.Context, id string, msg types.Message) (*types.Session, error) {
	return c.sessions.AppendMessage(ctx, id, msg)
}

// GetSession returns a live session, or memerr.ErrNotFound once it expired,
// was deleted, or was consolidated.
func (c *Client) GetSession(ctx context.Context, id string) (*types.Session, error) {
	return c.sessions.Get(ctx, id)
}

// DeleteSession removes a live session without archiving it.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.sessions.Delete(ctx, id)
}

// ListSessionsByCustomer returns the ids of the customer's live sessions.
func (c *Client) ListSessionsByCustomer(ctx context.Context, customerID string) ([]string, error) {
	return c.sessions.ListByCustomer(ctx, customerID)
}

// StoreInteraction writes one episodic memory directly to the archive,
// outside of session consolidation (historical imports, external systems).
//
// Zero-valued fields are filled: a random UUID id, the current time as the
// timestamp, the agent type as the channel, and an embedding generated from
// the transcript when none is supplied.
func (c *Client) StoreInteraction(ctx context.Context, memory *types.EpisodicMemory) (string, error) {
	if memory == nil {
		return "", memerr.Validation("core.store_interaction", "memory is required")
	}
	fillInteractionDefaults(memory, time.Now().UTC())
	if len(memory.Embedding) == 0 {
		if memory.Transcript == "" {
			return "", memerr.Validation("core.store_interaction", "a transcript or an embedding is required")
		}
		vector, err := c.embedder.Embed(ctx, memory.Transcript)
		if err != nil {
			return "", memerr.Transient("core.store_interaction", err)
		}
		memory.Embedding = vector
	}

	records := []*archive.Record{archive.RecordFromEpisodic(memory)}
	if err := c.archive.Upsert(ctx, c.config.Archive.EpisodicCollection, records); err != nil {
		return "", err
	}
	return memory.ID, nil
}

// StoreStrategy writes one semantic memory directly to the archive, outside
// of consolidation's extract-and-merge path (curated playbooks, imports).
//
// Zero-valued fields are filled with the new-record defaults: a snowflake
// id, TimesApplied 1 with SuccessRate 1.0, Confidence 0.7, creation
// timestamps, and an embedding generated from "title: description" when
// none is supplied.
func (c *Client) StoreStrategy(ctx context.Context, memory *types.SemanticMemory) (string, error) {
	if memory == nil {
		return "", memerr.Validation("core.store_strategy", "memory is required")
	}
	if memory.Title == "" {
		return "", memerr.Validation("core.store_strategy", "title is required")
	}
	if memory.ID == "" {
		memory.ID = c.snowflakeNode.Generate().String()
	}
	now := time.Now().UTC()
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = now
	}
	if memory.LastUpdated.IsZero() {
		memory.LastUpdated = now
	}
	if memory.TimesApplied <= 0 {
		memory.TimesApplied = 1
		if memory.SuccessRate == 0 {
			memory.SuccessRate = 1.0
		}
	}
	if memory.Confidence == 0 {
		memory.Confidence = 0.7
	}
	if len(memory.Embedding) == 0 {
		vector, err := c.embedder.Embed(ctx, memory.Title+": "+memory.Description)
		if err != nil {
			return "", memerr.Transient("core.store_strategy", err)
		}
		memory.Embedding = vector
	}

	records := []*archive.Record{archive.RecordFromSemantic(memory)}
	if err := c.archive.Upsert(ctx, c.config.Archive.SemanticCollection, records); err != nil {
		return "", err
	}
	return memory.ID, nil
}

// ConsolidateSession explicitly drains one live session into the archive:
// claim the session, analyze the conversation (or use the supplied outcome),
// write the episodic record under a deterministic id, extract or reinforce a
// strategy on success, and delete the session.
//
// A second call for the same id returns memerr.ErrNotFound; the claim makes
// consolidation run at most once per session, so no duplicate episodic
// record is ever written.
func (c *Client) ConsolidateSession(ctx context.Context, id string, outcome *types.Outcome) (*types.EpisodicMemory, error) {
	return c.consolidator.ConsolidateSession(ctx, id, outcome)
}

// RunSweep drains expired sessions into the archive once, outside the
// schedule. Returns how many sessions were consolidated.
func (c *Client) RunSweep(ctx context.Context) (int, error) {
	return c.consolidator.RunSweep(ctx)
}

// RunRetention purges episodic records older than the configured maximum
// age once, outside the schedule. Returns how many records were removed.
func (c *Client) RunRetention(ctx context.Context) (int64, error) {
	return c.consolidator.RunRetention(ctx)
}

// RetrieveContext runs the agentic retrieval pipeline: intent analysis,
// decomposition, planning, concurrent execution across both tiers,
// re-ranking, context assembly, and confidence scoring.
//
// Example:
//
//	assembled, err := client.RetrieveContext(ctx,
//	    "what works for high risk customers who refuse payment plans?",
//	    core.WithCustomerContext(&retrieval.CustomerContext{RiskTier: "high"}),
//	)
func (c *Client) RetrieveContext(ctx context.Context, query string, opts ...RetrieveOption) (*retrieval.AssembledContext, error) {
	retrieveOpts := applyRetrieveOptions(opts)
	return c.orchestrator.RetrieveContext(ctx, &retrieval.Request{
		Query:      query,
		CustomerID: retrieveOpts.CustomerID,
		CampaignID: retrieveOpts.CampaignID,
		AgentType:  string(retrieveOpts.AgentType),
		Context:    retrieveOpts.Context,
	})
}

// EvaluateResponse scores a candidate agent response against an assembled
// context on accuracy, relevance, completeness, and compliance. Evaluation
// failures degrade to a neutral assessment rather than an error.
func (c *Client) EvaluateResponse(ctx context.Context, response string, assembled *retrieval.AssembledContext) (*retrieval.QualityAssessment, error) {
	if assembled == nil {
		return nil, memerr.Validation("core.evaluate", "assembled context is required")
	}
	return c.orchestrator.EvaluateResponse(ctx, response, assembled), nil
}

// RecordFeedback folds an interaction outcome into the performance metrics
// that bias future retrieval planning for the (intent type, risk tier)
// segment.
func (c *Client) RecordFeedback(intentType, riskTier string, success bool, confidence float64) {
	c.orchestrator.RecordFeedback(intentType, riskTier, success, confidence)
}

// Stats aggregates population counts across both tiers plus the performance
// metric segments.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	sessionStats, err := c.sessions.Stats(ctx)
	if err != nil {
		return nil, err
	}
	episodic, err := c.archive.Count(ctx, c.config.Archive.EpisodicCollection, nil)
	if err != nil {
		return nil, err
	}
	semantic, err := c.archive.Count(ctx, c.config.Archive.SemanticCollection, nil)
	if err != nil {
		return nil, err
	}

	return &Stats{
		LiveSessions:    sessionStats.LiveSessions,
		IndexedSessions: sessionStats.IndexedSessions,
		EpisodicCount:   episodic,
		SemanticCount:   semantic,
		Segments:        c.orchestrator.Metrics().Snapshot(),
	}, nil
}

// Health pings both tiers and returns the first failure.
func (c *Client) Health(ctx context.Context) error {
	if err := c.sessions.Ping(ctx); err != nil {
		return err
	}
	return c.archive.Ping(ctx)
}

// Close stops the consolidation schedules and releases every component the
// client owns. Returns the first error encountered.
func (c *Client) Close() error {
	var errs []error

	if c.consolidator != nil {
		if err := c.consolidator.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.orchestrator != nil {
		if err := c.orchestrator.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.sessions != nil {
		if err := c.sessions.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.archive != nil {
		if err := c.archive.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.llm != nil {
		if err := c.llm.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// initSessionStore initializes the session cache backend.
func initSessionStore(cfg *SessionConfig) (session.Store, error) {
	switch cfg.Provider {
	case "redis":
		return redisSession.NewStore(&redisSession.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.TTL,
		})
	case "memory", "":
		return memorySession.NewStore(memorySession.WithTTL(cfg.TTL)), nil
	default:
		return nil, memerr.Configuration("core.init", "unknown session provider %q", cfg.Provider)
	}
}

// initArchiveStore initializes the vector archive backend.
func initArchiveStore(cfg *ArchiveConfig) (archive.Store, error) {
	switch cfg.Provider {
	case "qdrant":
		return qdrantStore.NewClient(&qdrantStore.Config{
			Host:               cfg.Qdrant.Host,
			Port:               cfg.Qdrant.Port,
			APIKey:             cfg.Qdrant.APIKey,
			UseTLS:             cfg.Qdrant.UseTLS,
			EpisodicCollection: cfg.EpisodicCollection,
			SemanticCollection: cfg.SemanticCollection,
			Dimensions:         cfg.Dimensions,
		})
	case "postgres":
		return postgresStore.NewClient(&postgresStore.Config{
			Host:               cfg.Postgres.Host,
			Port:               cfg.Postgres.Port,
			User:               cfg.Postgres.User,
			Password:           cfg.Postgres.Password,
			DBName:             cfg.Postgres.DBName,
			SSLMode:            cfg.Postgres.SSLMode,
			EpisodicCollection: cfg.EpisodicCollection,
			SemanticCollection: cfg.SemanticCollection,
			Dimensions:         cfg.Dimensions,
		})
	case "sqlite":
		return sqliteStore.NewClient(&sqliteStore.Config{
			Path:               cfg.SQLite.Path,
			EpisodicCollection: cfg.EpisodicCollection,
			SemanticCollection: cfg.SemanticCollection,
			Dimensions:         cfg.Dimensions,
		})
	case "chromem", "":
		return chromemStore.NewStore(&chromemStore.Config{
			Path:               cfg.Chromem.Path,
			Compress:           cfg.Chromem.Compress,
			EpisodicCollection: cfg.EpisodicCollection,
			SemanticCollection: cfg.SemanticCollection,
			Dimensions:         cfg.Dimensions,
		})
	default:
		return nil, memerr.Configuration("core.init", "unknown archive provider %q", cfg.Provider)
	}
}

// initLLM initializes the LLM provider and applies the per-call timeout.
func initLLM(cfg *LLMConfig) (llm.Provider, error) {
	var (
		provider llm.Provider
		err      error
	)
	switch cfg.Provider {
	case "openai", "":
		provider, err = openaiLLM.NewClient(&openaiLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "anthropic":
		provider, err = anthropicLLM.NewClient(&anthropicLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	default:
		return nil, memerr.Configuration("core.init", "unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, memerr.New("core.init", err)
	}
	return withLLMTimeout(provider, cfg.Timeout), nil
}

// initEmbedder initializes the embedding provider, applies the per-call
// timeout, and wraps the result in a read-through cache when configured.
func initEmbedder(cfg *EmbedderConfig) (embedder.Provider, error) {
	var (
		provider embedder.Provider
		err      error
	)
	switch cfg.Provider {
	case "openai", "":
		provider, err = openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	default:
		return nil, memerr.Configuration("core.init", "unknown embedder provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, memerr.New("core.init", err)
	}

	provider = withEmbedderTimeout(provider, cfg.Timeout)
	if cfg.CacheSize > 0 {
		cached, err := embedder.NewCached(provider, cfg.CacheSize)
		if err != nil {
			return nil, memerr.New("core.init", err)
		}
		provider = cached
	}
	return provider, nil
}

// Package consolidation drains expired sessions out of the session cache
// into the archive. Each expired session is claimed (exactly one winner
// under concurrent sweeps), analyzed, and written as one episodic memory
// under a deterministic id; successful interactions additionally reinforce
// or seed a semantic strategy. A second schedule entry purges episodic
// records past the retention age.
package consolidation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/panjf2000/ants/v2"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/embedder"
	"github.com/collectiq/agentmem-go/pkg/llm"
	"github.com/collectiq/agentmem-go/pkg/logging"
	"github.com/collectiq/agentmem-go/pkg/memerr"
	"github.com/collectiq/agentmem-go/pkg/session"
	"github.com/collectiq/agentmem-go/pkg/types"
)

// Scheduling and sizing defaults.
const (
	DefaultSweepInterval     = 5 * time.Minute
	DefaultRetentionInterval = 24 * time.Hour
	DefaultRetentionMaxAge   = 180 * 24 * time.Hour
	DefaultSweepBatchSize    = 100
	DefaultConcurrency       = 4
)

// Session metadata keys the consolidator reads into the context snapshot.
const (
	metaKeyRiskTier        = "risk_tier"
	metaKeyPaymentHistory  = "payment_history"
	metaKeyPriorAttempts   = "prior_attempts"
	metaKeyDurationSeconds = "duration_seconds"
)

// Config tunes the consolidator.
type Config struct {
	// SweepInterval is how often expired sessions are drained.
	SweepInterval time.Duration

	// RetentionInterval is how often the age purge runs.
	RetentionInterval time.Duration

	// RetentionMaxAge is the episodic record age beyond which the purge
	// removes them.
	RetentionMaxAge time.Duration

	// SweepBatchSize caps how many expired sessions one sweep drains.
	SweepBatchSize int

	// Concurrency bounds the per-sweep worker pool.
	Concurrency int

	// StrategyMergeThreshold is the similarity above which extracted
	// strategies merge into existing ones.
	StrategyMergeThreshold float64

	// EpisodicCollection and SemanticCollection name the archive
	// collections. Empty uses the archive defaults.
	EpisodicCollection string
	SemanticCollection string
}

func (c Config) withDefaults() Config {
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.RetentionInterval <= 0 {
		c.RetentionInterval = DefaultRetentionInterval
	}
	if c.RetentionMaxAge <= 0 {
		c.RetentionMaxAge = DefaultRetentionMaxAge
	}
	if c.SweepBatchSize <= 0 {
		c.SweepBatchSize = DefaultSweepBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.StrategyMergeThreshold <= 0 {
		c.StrategyMergeThreshold = DefaultStrategyMergeThreshold
	}
	if c.EpisodicCollection == "" {
		c.EpisodicCollection = archive.CollectionEpisodic
	}
	if c.SemanticCollection == "" {
		c.SemanticCollection = archive.CollectionSemantic
	}
	return c
}

// Consolidator owns the sweep and retention schedules plus the
// single-session consolidation path the facade calls directly.
type Consolidator struct {
	sessions  session.Store
	archive   archive.Store
	embedder  embedder.Provider
	analyzer  *SessionAnalyzer
	extractor *StrategyExtractor

	cfg  Config
	pool *ants.Pool
	log  *logrus.Entry

	mu     sync.Mutex
	cron   *cron.Cron
	runCtx context.Context
}

// NewConsolidator wires a consolidator. Call Close when done to release
// the worker pool; Start/Stop control the schedules independently.
func NewConsolidator(sessions session.Store, store archive.Store, llmProvider llm.Provider, embedProvider embedder.Provider, node *snowflake.Node, cfg Config) (*Consolidator, error) {
	cfg = cfg.withDefaults()

	pool, err := ants.NewPool(cfg.Concurrency)
	if err != nil {
		return nil, memerr.New("consolidation.new", err)
	}

	return &Consolidator{
		sessions: sessions,
		archive:  store,
		embedder: embedProvider,
		analyzer: NewSessionAnalyzer(llmProvider),
		extractor: NewStrategyExtractor(llmProvider, embedProvider, store, node,
			cfg.SemanticCollection, cfg.StrategyMergeThreshold),
		cfg:  cfg,
		pool: pool,
		log:  logging.Component("consolidator"),
	}, nil
}

// Start launches the sweep and retention schedules. ctx parents every
// scheduled run; canceling it makes subsequent runs no-op.
func (c *Consolidator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return memerr.Validation("consolidation.start", "consolidator already started")
	}
	c.runCtx = ctx

	schedule := cron.New()
	if _, err := schedule.AddFunc(fmt.Sprintf("@every %s", c.cfg.SweepInterval), c.sweepJob); err != nil {
		return memerr.New("consolidation.start", err)
	}
	if _, err := schedule.AddFunc(fmt.Sprintf("@every %s", c.cfg.RetentionInterval), c.retentionJob); err != nil {
		return memerr.New("consolidation.start", err)
	}
	schedule.Start()
	c.cron = schedule

	c.log.WithFields(logrus.Fields{
		"sweep_interval":     c.cfg.SweepInterval,
		"retention_interval": c.cfg.RetentionInterval,
	}).Info("consolidator started")
	return nil
}

// Stop halts the schedules and waits for any running job to finish.
// RunSweep and RunRetention remain callable.
func (c *Consolidator) Stop() {
	c.mu.Lock()
	schedule := c.cron
	c.cron = nil
	c.mu.Unlock()

	if schedule != nil {
		<-schedule.Stop().Done()
		c.log.Info("consolidator stopped")
	}
}

// Close stops the schedules and releases the worker pool.
func (c *Consolidator) Close() error {
	c.Stop()
	c.pool.Release()
	return nil
}

func (c *Consolidator) sweepJob() {
	ctx := c.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}
	if _, err := c.RunSweep(ctx); err != nil {
		c.log.WithError(err).Warn("scheduled sweep failed")
	}
}

func (c *Consolidator) retentionJob() {
	ctx := c.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}
	if _, err := c.RunRetention(ctx); err != nil {
		c.log.WithError(err).Warn("scheduled retention purge failed")
	}
}

// RunSweep drains one batch of expired sessions and reports how many were
// consolidated. Per-session failures are logged and skipped; losing a
// claim race is not a failure.
func (c *Consolidator) RunSweep(ctx context.Context) (int, error) {
	expired, err := c.sessions.ListExpired(ctx, time.Now(), c.cfg.SweepBatchSize)
	if err != nil {
		return 0, memerr.New("consolidation.sweep", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	var (
		mu           sync.Mutex
		wg           sync.WaitGroup
		consolidated int
	)
	for _, expiredSession := range expired {
		if ctx.Err() != nil {
			break
		}
		id := expiredSession.SessionID
		wg.Add(1)
		err := c.pool.Submit(func() {
			defer wg.Done()
			memory, err := c.consolidateExpired(ctx, id)
			if err != nil {
				c.log.WithError(err).WithField("session_id", id).Warn("consolidation failed, session skipped")
				return
			}
			if memory != nil {
				mu.Lock()
				consolidated++
				mu.Unlock()
			}
		})
		if err != nil {
			wg.Done()
			c.log.WithError(err).WithField("session_id", id).Warn("sweep submit failed")
		}
	}
	wg.Wait()

	if consolidated > 0 {
		c.log.WithFields(logrus.Fields{
			"expired":      len(expired),
			"consolidated": consolidated,
		}).Info("sweep complete")
	}
	return consolidated, nil
}

// consolidateExpired claims one expired session and archives it. A lost
// claim race returns (nil, nil): some other sweeper owns the session.
func (c *Consolidator) consolidateExpired(ctx context.Context, id string) (*types.EpisodicMemory, error) {
	claimed, err := c.sessions.Claim(ctx, id)
	if err != nil {
		if memerr.IsNotFound(err) {
			c.log.WithField("session_id", id).Debug("session already claimed")
			return nil, nil
		}
		return nil, err
	}
	return c.archiveSession(ctx, claimed, nil)
}

// ConsolidateSession is the facade's explicit path: claim the session,
// archive it with the supplied outcome (or analyze the transcript when
// nil), and delete it. A second call for the same id observes
// memerr.ErrNotFound from the claim, never a duplicate record.
func (c *Consolidator) ConsolidateSession(ctx context.Context, id string, outcome *types.Outcome) (*types.EpisodicMemory, error) {
	claimed, err := c.sessions.Claim(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.archiveSession(ctx, claimed, outcome)
}

// archiveSession runs steps on an already-claimed session: analyze, embed,
// upsert the episodic record under its deterministic id, extract a
// strategy on success, then delete the session. The deterministic id makes
// a crash-retry overwrite the same record instead of duplicating it.
func (c *Consolidator) archiveSession(ctx context.Context, claimed *types.Session, outcome *types.Outcome) (*types.EpisodicMemory, error) {
	transcript := claimed.Transcript()

	var analysis *SessionAnalysis
	if outcome != nil {
		analysis = &SessionAnalysis{Outcome: *outcome, Sentiment: types.SentimentNeutral}
	} else {
		analysis = c.analyzer.Analyze(ctx, transcript)
	}

	vector, err := c.embedder.Embed(ctx, transcript)
	if err != nil {
		return nil, memerr.Transient("consolidation.archive", fmt.Errorf("embed transcript: %w", err))
	}

	memory := buildEpisodic(claimed, transcript, analysis, vector)
	record := archive.RecordFromEpisodic(memory)
	if err := c.archive.Upsert(ctx, c.cfg.EpisodicCollection, []*archive.Record{record}); err != nil {
		return nil, memerr.New("consolidation.archive", err)
	}

	if analysis.Outcome.Success {
		if _, err := c.extractor.ExtractAndStore(ctx, memory); err != nil {
			c.log.WithError(err).WithField("session_id", claimed.SessionID).Warn("strategy extraction failed, keeping episodic record")
		}
	}

	if err := c.sessions.Delete(ctx, claimed.SessionID); err != nil {
		// The claim already removed every index entry; the value entry
		// falls out with its physical TTL.
		c.log.WithError(err).WithField("session_id", claimed.SessionID).Warn("session delete failed after archiving")
	}

	c.log.WithFields(logrus.Fields{
		"session_id": claimed.SessionID,
		"memory_id":  memory.ID,
		"success":    analysis.Outcome.Success,
	}).Debug("session consolidated")
	return memory, nil
}

func buildEpisodic(claimed *types.Session, transcript string, analysis *SessionAnalysis, vector []float64) *types.EpisodicMemory {
	timestamp := claimed.CreatedAt
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	return &types.EpisodicMemory{
		ID:              types.EpisodicIDForSession(claimed.SessionID),
		Timestamp:       timestamp,
		CustomerID:      claimed.CustomerID,
		CampaignID:      claimed.CampaignID,
		AgentType:       claimed.AgentType,
		Transcript:      transcript,
		DurationSeconds: types.IntValue(claimed.Metadata, metaKeyDurationSeconds),
		Channel:         string(claimed.AgentType),
		Outcome:         analysis.Outcome,
		Context: types.ContextSnapshot{
			RiskTier:       types.StringValue(claimed.Metadata, metaKeyRiskTier),
			PaymentHistory: types.StringValue(claimed.Metadata, metaKeyPaymentHistory),
			PriorAttempts:  types.IntValue(claimed.Metadata, metaKeyPriorAttempts),
		},
		Embedding: vector,
		Tags:      analysis.Tags,
		Sentiment: analysis.Sentiment,
	}
}

// Package core provides the agentmem client: a two-tier memory system for
// collection agents, combining a TTL session cache with a vector archive of
// episodic interactions and distilled strategies.
package core

import (
	"time"

	"github.com/collectiq/agentmem-go/pkg/archive"
	"github.com/collectiq/agentmem-go/pkg/embedder"
	"github.com/collectiq/agentmem-go/pkg/llm"
	"github.com/collectiq/agentmem-go/pkg/retrieval"
	"github.com/collectiq/agentmem-go/pkg/session"
	"github.com/collectiq/agentmem-go/pkg/types"
)

// ClientOption is a function type for configuring NewClient.
//
// Options inject pre-built components in place of the config-driven
// factories, for tests or for embedding agentmem into a larger system that
// already owns the connections.
type ClientOption func(*clientOptions)

// clientOptions carries injected components for NewClient.
type clientOptions struct {
	sessions session.Store
	archive  archive.Store
	llm      llm.Provider
	embedder embedder.Provider
}

// WithSessionStore injects a session store, skipping the config factory.
//
// Example:
//
//	client, _ := core.NewClient(cfg, core.WithSessionStore(store))
func WithSessionStore(store session.Store) ClientOption {
	return func(opts *clientOptions) {
		opts.sessions = store
	}
}

// WithArchiveStore injects an archive store, skipping the config factory.
//
// Example:
//
//	client, _ := core.NewClient(cfg, core.WithArchiveStore(store))
func WithArchiveStore(store archive.Store) ClientOption {
	return func(opts *clientOptions) {
		opts.archive = store
	}
}

// WithLLM injects a language model provider, skipping the config factory.
//
// Example:
//
//	client, _ := core.NewClient(cfg, core.WithLLM(provider))
func WithLLM(provider llm.Provider) ClientOption {
	return func(opts *clientOptions) {
		opts.llm = provider
	}
}

// WithEmbedder injects an embedding provider, skipping the config factory.
//
// Example:
//
//	client, _ := core.NewClient(cfg, core.WithEmbedder(provider))
func WithEmbedder(provider embedder.Provider) ClientOption {
	return func(opts *clientOptions) {
		opts.embedder = provider
	}
}

// QueryOption is a function type for configuring Query operations.
type QueryOption func(*QueryOptions)

// QueryOptions contains configuration options for Query operations.
type QueryOptions struct {
	// CustomerID scopes results to one customer and resolves CurrentSession.
	CustomerID string

	// CampaignID scopes results to one campaign.
	CampaignID string

	// AgentType scopes results to one channel.
	AgentType types.AgentType

	// Limit sets the maximum number of results per tier.
	// Default: 10
	Limit int

	// IncludeEpisodic searches the episodic collection.
	// Default: true
	IncludeEpisodic bool

	// IncludeSemantic searches the semantic collection.
	// Default: true
	IncludeSemantic bool

	// RiskTiers keeps results applicable to any of the given tiers.
	RiskTiers []string

	// Tags keeps episodic results carrying all of the given tags.
	Tags []string

	// SuccessfulOnly keeps episodic results whose outcome succeeded.
	SuccessfulOnly bool

	// MinScore excludes results scoring below the threshold.
	// Default: 0.0 (no minimum)
	MinScore float64
}

// WithCustomerID scopes Query results to a customer. The customer's newest
// live session, when one exists, is returned as CurrentSession.
//
// Example:
//
//	result, _ := client.Query(ctx, "payment plan", core.WithCustomerID("cust_001"))
func WithCustomerID(customerID string) QueryOption {
	return func(opts *QueryOptions) {
		opts.CustomerID = customerID
	}
}

// WithCampaignID scopes Query results to a campaign.
//
// Example:
//
//	result, _ := client.Query(ctx, "payment plan", core.WithCampaignID("camp_q3"))
func WithCampaignID(campaignID string) QueryOption {
	return func(opts *QueryOptions) {
		opts.CampaignID = campaignID
	}
}

// WithAgentType scopes Query results to a channel.
//
// Example:
//
//	result, _ := client.Query(ctx, "payment plan", core.WithAgentType(types.AgentTypePhone))
func WithAgentType(agentType types.AgentType) QueryOption {
	return func(opts *QueryOptions) {
		opts.AgentType = agentType
	}
}

// WithQueryLimit sets the maximum number of Query results per tier.
//
// Example:
//
//	result, _ := client.Query(ctx, "payment plan", core.WithQueryLimit(20))
func WithQueryLimit(limit int) QueryOption {
	return func(opts *QueryOptions) {
		opts.Limit = limit
	}
}

// WithIncludeEpisodic sets whether Query searches archived interactions.
//
// Example:
//
//	result, _ := client.Query(ctx, "payment plan", core.WithIncludeEpisodic(false))
func WithIncludeEpisodic(include bool) QueryOption {
	return func(opts *QueryOptions) {
		opts.IncludeEpisodic = include
	}
}

// WithIncludeSemantic sets whether Query searches distilled strategies.
//
// Example:
//
//	result, _ := client.Query(ctx, "payment plan", core.WithIncludeSemantic(false))
func WithIncludeSemantic(include bool) QueryOption {
	return func(opts *QueryOptions) {
		opts.IncludeSemantic = include
	}
}

// WithRiskTiers keeps Query results applicable to any of the given tiers.
//
// Example:
//
//	result, _ := client.Query(ctx, "payment plan", core.WithRiskTiers("high", "medium"))
func WithRiskTiers(tiers ...string) QueryOption {
	return func(opts *QueryOptions) {
		opts.RiskTiers = tiers
	}
}

// WithTags keeps episodic Query results carrying all of the given tags.
//
// Example:
//
//	result, _ := client.Query(ctx, "payment plan", core.WithTags("payment_plan"))
func WithTags(tags ...string) QueryOption {
	return func(opts *QueryOptions) {
		opts.Tags = tags
	}
}

// WithSuccessfulOnly keeps episodic Query results whose outcome succeeded.
//
// Example:
//
//	result, _ := client.Query(ctx, "payment plan", core.WithSuccessfulOnly())
func WithSuccessfulOnly() QueryOption {
	return func(opts *QueryOptions) {
		opts.SuccessfulOnly = true
	}
}

// WithMinScore excludes Query results scoring below the threshold.
//
// Example:
//
//	result, _ := client.Query(ctx, "payment plan", core.WithMinScore(0.7))
func WithMinScore(score float64) QueryOption {
	return func(opts *QueryOptions) {
		opts.MinScore = score
	}
}

// RetrieveOption is a function type for configuring RetrieveContext
// operations.
type RetrieveOption func(*RetrieveOptions)

// RetrieveOptions contains configuration options for RetrieveContext
// operations.
type RetrieveOptions struct {
	// CustomerID scopes retrieval to one customer.
	CustomerID string

	// CampaignID scopes retrieval to one campaign.
	CampaignID string

	// AgentType scopes retrieval to one channel.
	AgentType types.AgentType

	// Context is the customer situation the retrieval plans around.
	Context *retrieval.CustomerContext
}

// WithCustomerIDForRetrieve scopes RetrieveContext to a customer.
//
// Example:
//
//	assembled, _ := client.RetrieveContext(ctx, "how to open",
//	    core.WithCustomerIDForRetrieve("cust_001"))
func WithCustomerIDForRetrieve(customerID string) RetrieveOption {
	return func(opts *RetrieveOptions) {
		opts.CustomerID = customerID
	}
}

// WithCampaignIDForRetrieve scopes RetrieveContext to a campaign.
//
// Example:
//
//	assembled, _ := client.RetrieveContext(ctx, "how to open",
//	    core.WithCampaignIDForRetrieve("camp_q3"))
func WithCampaignIDForRetrieve(campaignID string) RetrieveOption {
	return func(opts *RetrieveOptions) {
		opts.CampaignID = campaignID
	}
}

// WithAgentTypeForRetrieve scopes RetrieveContext to a channel.
//
// Example:
//
//	assembled, _ := client.RetrieveContext(ctx, "how to open",
//	    core.WithAgentTypeForRetrieve(types.AgentTypeSMS))
func WithAgentTypeForRetrieve(agentType types.AgentType) RetrieveOption {
	return func(opts *RetrieveOptions) {
		opts.AgentType = agentType
	}
}

// WithCustomerContext supplies the customer situation RetrieveContext plans
// around. The risk tier narrows filters and selects the performance segment
// used for adaptive widening.
//
// Example:
//
//	assembled, _ := client.RetrieveContext(ctx, "how to open",
//	    core.WithCustomerContext(&retrieval.CustomerContext{
//	        RiskTier:    "high",
//	        DaysOverdue: 45,
//	        AmountDue:   1200,
//	    }),
//	)
func WithCustomerContext(customerContext *retrieval.CustomerContext) RetrieveOption {
	return func(opts *RetrieveOptions) {
		opts.Context = customerContext
	}
}

// SessionOption is a function type for configuring StoreSession operations.
type SessionOption func(*SessionOptions)

// SessionOptions contains configuration options for StoreSession operations.
type SessionOptions struct {
	// TTL overrides the configured session lifetime for this session.
	// Zero uses the client's configured TTL.
	TTL time.Duration
}

// WithSessionTTL overrides the configured lifetime for one session.
//
// Example:
//
//	err := client.StoreSession(ctx, sess, core.WithSessionTTL(2*time.Hour))
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(opts *SessionOptions) {
		opts.TTL = ttl
	}
}

// applyClientOptions applies client options to create clientOptions.
func applyClientOptions(opts []ClientOption) *clientOptions {
	options := &clientOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// applyQueryOptions applies Query options to create QueryOptions.
func applyQueryOptions(opts []QueryOption) *QueryOptions {
	options := &QueryOptions{
		Limit:           10,
		IncludeEpisodic: true,
		IncludeSemantic: true,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// applyRetrieveOptions applies RetrieveContext options to create
// RetrieveOptions.
func applyRetrieveOptions(opts []RetrieveOption) *RetrieveOptions {
	options := &RetrieveOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// applySessionOptions applies StoreSession options to create SessionOptions.
func applySessionOptions(opts []SessionOption) *SessionOptions {
	options := &SessionOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

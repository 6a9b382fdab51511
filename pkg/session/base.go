// Package session defines the session cache contract: the TTL-bound store
// that holds live conversation state until consolidation drains it into the
// archive.
//
// Implementations must keep three structures consistent: the value entry per
// session id, a per-customer index, and an expiry-ordered index that makes
// expired-session listing cheap. The expiry-index entry doubles as the
// liveness token: Claim removes it atomically, after which the session can
// be neither listed, refreshed, nor claimed again.
package session

import (
	"context"
	"time"

	"github.com/collectiq/agentmem-go/pkg/types"
)

// DefaultTTL is the session lifetime applied when no TTL is configured.
// Every mutation pushes the deadline out by the full TTL again.
const DefaultTTL = 30 * time.Minute

// Store is the session cache interface.
//
// All implementations (redis, in-memory) must satisfy it. Mutating
// operations refresh the session TTL; read operations never do.
type Store interface {
	// Put stores a session under its id, replacing any existing entry, and
	// sets its expiry deadline to now+ttl. A non-positive ttl falls back to
	// DefaultTTL.
	Put(ctx context.Context, s *types.Session, ttl time.Duration) error

	// Get returns the live session for the id, or memerr.ErrNotFound once
	// the session expired, was deleted, or was claimed.
	Get(ctx context.Context, id string) (*types.Session, error)

	// Update applies mutate to the current session state atomically with
	// respect to other updates on the same id, refreshes the deadline by
	// the store's configured TTL, and returns the updated session. A
	// claimed, expired, or missing session reports memerr.ErrNotFound; an
	// update that keeps conflicting with concurrent writers reports
	// memerr.ErrConsistency.
	Update(ctx context.Context, id string, mutate func(*types.Session) error) (*types.Session, error)

	// AppendMessage appends one turn to the conversation history. Sugar
	// over Update.
	AppendMessage(ctx context.Context, id string, msg types.Message) (*types.Session, error)

	// Delete removes the session and its index entries.
	Delete(ctx context.Context, id string) error

	// ListByCustomer returns the ids of live sessions for a customer.
	ListByCustomer(ctx context.Context, customerID string) ([]string, error)

	// ListExpired returns up to limit sessions whose deadline is at or
	// before now, oldest first, read from the expiry index. Claimed
	// sessions never appear.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*types.Session, error)

	// Claim atomically removes the session from the expiry index and
	// returns its final state. Exactly one concurrent caller wins; every
	// other caller, and any caller naming an unknown or already-claimed
	// id, observes memerr.ErrNotFound. After a claim the session can no
	// longer be listed, updated, or claimed again; its value entry remains
	// until Delete.
	Claim(ctx context.Context, id string) (*types.Session, error)

	// Stats reports live-entry counts.
	Stats(ctx context.Context) (*Stats, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}

// Stats summarizes the cache population.
type Stats struct {
	// LiveSessions is the number of sessions currently stored.
	LiveSessions int64 `json:"live_sessions"`

	// IndexedSessions is the number of entries in the expiry index. It can
	// trail LiveSessions while claimed sessions await deletion.
	IndexedSessions int64 `json:"indexed_sessions"`
}

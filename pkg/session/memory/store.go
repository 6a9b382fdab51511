// Package memory provides an in-process session store.
//
// It implements the same contract as the redis backend and is intended for
// development and tests: no external process, same claim and expiry
// semantics.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/collectiq/agentmem-go/pkg/memerr"
	"github.com/collectiq/agentmem-go/pkg/session"
	"github.com/collectiq/agentmem-go/pkg/types"
)

// Store is an in-process session.Store backed by maps.
type Store struct {
	mu sync.RWMutex

	// sessions holds the value entries, including claimed sessions that
	// await deletion.
	sessions map[string]*types.Session

	// expiry is the expiry index: id -> deadline. Claim removes entries,
	// so membership doubles as the liveness token.
	expiry map[string]time.Time

	// byCustomer indexes live session ids per customer.
	byCustomer map[string]map[string]struct{}

	// keys serializes updates per session id.
	keys keyedMutex

	ttl time.Duration
	now func() time.Time
}

// Option configures the store.
type Option func(*Store)

// WithTTL sets the TTL used for deadline refreshes and for Put calls that
// pass a non-positive ttl.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock injects a clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty in-process session store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions:   make(map[string]*types.Session),
		expiry:     make(map[string]time.Time),
		byCustomer: make(map[string]map[string]struct{}),
		ttl:        session.DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores a session, replacing any existing entry for the id.
func (s *Store) Put(ctx context.Context, sess *types.Session, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return memerr.New("Put", err)
	}
	if sess == nil || sess.SessionID == "" {
		return memerr.Validation("Put", "session id is required")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	now := s.now()
	stored := sess.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.ExpiresAt = now.Add(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.sessions[sess.SessionID]; ok {
		s.dropCustomerRef(prev.CustomerID, sess.SessionID)
	}
	s.sessions[sess.SessionID] = stored
	s.expiry[sess.SessionID] = stored.ExpiresAt
	if stored.CustomerID != "" {
		ids, ok := s.byCustomer[stored.CustomerID]
		if !ok {
			ids = make(map[string]struct{})
			s.byCustomer[stored.CustomerID] = ids
		}
		ids[sess.SessionID] = struct{}{}
	}
	return nil
}

// Get returns the live session, or memerr.ErrNotFound once it expired, was
// claimed and deleted, or never existed.
func (s *Store) Get(ctx context.Context, id string) (*types.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, memerr.New("Get", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, memerr.NotFound("Get", "session %s", id)
	}
	if deadline, live := s.expiry[id]; !live || s.now().After(deadline) {
		// Expired but unswept, or claimed: invisible to readers.
		return nil, memerr.NotFound("Get", "session %s", id)
	}
	return sess.Clone(), nil
}

// Update applies mutate under the per-id lock and refreshes the deadline.
func (s *Store) Update(ctx context.Context, id string, mutate func(*types.Session) error) (*types.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, memerr.New("Update", err)
	}
	if mutate == nil {
		return nil, memerr.Validation("Update", "mutate function is required")
	}

	unlock := s.keys.lock(id)
	defer unlock()

	s.mu.RLock()
	sess, ok := s.sessions[id]
	deadline, live := s.expiry[id]
	now := s.now()
	s.mu.RUnlock()

	if !ok || !live || now.After(deadline) {
		return nil, memerr.NotFound("Update", "session %s", id)
	}

	updated := sess.Clone()
	if err := mutate(updated); err != nil {
		return nil, memerr.New("Update", err)
	}
	updated.SessionID = id
	updated.ExpiresAt = now.Add(s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, stillLive := s.expiry[id]; !stillLive {
		// Claimed between the read and the write.
		return nil, memerr.NotFound("Update", "session %s", id)
	}
	if prev := s.sessions[id]; prev != nil && prev.CustomerID != updated.CustomerID {
		s.dropCustomerRef(prev.CustomerID, id)
		if updated.CustomerID != "" {
			ids, ok := s.byCustomer[updated.CustomerID]
			if !ok {
				ids = make(map[string]struct{})
				s.byCustomer[updated.CustomerID] = ids
			}
			ids[id] = struct{}{}
		}
	}
	s.sessions[id] = updated
	s.expiry[id] = updated.ExpiresAt
	return updated.Clone(), nil
}

// AppendMessage appends one conversation turn.
func (s *Store) AppendMessage(ctx context.Context, id string, msg types.Message) (*types.Session, error) {
	return s.Update(ctx, id, func(sess *types.Session) error {
		sess.ConversationHistory = append(sess.ConversationHistory, msg)
		return nil
	})
}

// Delete removes the session and all its index entries.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return memerr.New("Delete", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return memerr.NotFound("Delete", "session %s", id)
	}
	delete(s.sessions, id)
	delete(s.expiry, id)
	s.dropCustomerRef(sess.CustomerID, id)
	return nil
}

// ListByCustomer returns the live session ids for a customer.
func (s *Store) ListByCustomer(ctx context.Context, customerID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, memerr.New("ListByCustomer", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.byCustomer[customerID]))
	now := s.now()
	for id := range s.byCustomer[customerID] {
		if deadline, live := s.expiry[id]; live && !now.After(deadline) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ListExpired returns up to limit expired sessions, oldest deadline first.
func (s *Store) ListExpired(ctx context.Context, now time.Time, limit int) ([]*types.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, memerr.New("ListExpired", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type candidate struct {
		id       string
		deadline time.Time
	}
	candidates := make([]candidate, 0)
	for id, deadline := range s.expiry {
		if !deadline.After(now) {
			candidates = append(candidates, candidate{id: id, deadline: deadline})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].deadline.Equal(candidates[j].deadline) {
			return candidates[i].id < candidates[j].id
		}
		return candidates[i].deadline.Before(candidates[j].deadline)
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	sessions := make([]*types.Session, 0, len(candidates))
	for _, c := range candidates {
		if sess, ok := s.sessions[c.id]; ok {
			sessions = append(sessions, sess.Clone())
		}
	}
	return sessions, nil
}

// Claim removes the session from the expiry index and returns its final
// state. Exactly one concurrent caller wins.
func (s *Store) Claim(ctx context.Context, id string) (*types.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, memerr.New("Claim", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, live := s.expiry[id]; !live {
		return nil, memerr.NotFound("Claim", "session %s", id)
	}
	delete(s.expiry, id)

	sess, ok := s.sessions[id]
	if !ok {
		return nil, memerr.NotFound("Claim", "session %s", id)
	}
	return sess.Clone(), nil
}

// Stats reports the current population.
func (s *Store) Stats(ctx context.Context) (*session.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, memerr.New("Stats", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return &session.Stats{
		LiveSessions:    int64(len(s.sessions)),
		IndexedSessions: int64(len(s.expiry)),
	}, nil
}

// Ping always succeeds for the in-process store.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close releases nothing for the in-process store.
func (s *Store) Close() error {
	return nil
}

// dropCustomerRef removes one id from a customer index entry. Caller holds
// the write lock.
func (s *Store) dropCustomerRef(customerID, id string) {
	if customerID == "" {
		return
	}
	if ids, ok := s.byCustomer[customerID]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byCustomer, customerID)
		}
	}
}

// keyedMutex hands out one mutex per key so updates to different sessions
// never contend.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*lockEntry)
	}
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

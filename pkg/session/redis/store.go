// Package redis provides the redis-backed session store.
//
// Wire layout, under a configurable key prefix:
//
//	{prefix}:session:{id}      session JSON, physical TTL = logical TTL + grace
//	{prefix}:customer:{cust}   SET of live session ids for the customer
//	{prefix}:expiry            ZSET, member = session id, score = deadline (ms)
//
// The expiry ZSET is the authority on liveness: ListExpired reads it instead
// of scanning keys, Claim removes from it atomically (ZREM admits exactly
// one winner), and refreshes re-score it with XX semantics so a claimed
// session can never be resurrected. The physical TTL runs longer than the
// logical deadline so the consolidator can still read a session that
// expired between sweeps.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/collectiq/agentmem-go/pkg/memerr"
	"github.com/collectiq/agentmem-go/pkg/session"
	"github.com/collectiq/agentmem-go/pkg/types"
)

const (
	// maxTxRetries bounds the optimistic-transaction retry loop in Update.
	maxTxRetries = 5

	// defaultEvictionGrace is how long a session outlives its logical
	// deadline physically, giving the consolidator time to drain it.
	defaultEvictionGrace = time.Hour
)

// Config contains configuration for the redis session store.
type Config struct {
	// Addr is the redis host:port. Required.
	Addr string

	// Password authenticates the connection (empty for none).
	Password string

	// DB selects the redis logical database.
	DB int

	// KeyPrefix namespaces all keys. Defaults to "agentmem".
	KeyPrefix string

	// TTL is the logical session lifetime, refreshed on every mutation.
	// Defaults to session.DefaultTTL.
	TTL time.Duration

	// EvictionGrace extends the physical TTL past the logical deadline.
	// Defaults to one hour.
	EvictionGrace time.Duration
}

// Store implements session.Store on redis.
type Store struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	grace  time.Duration
}

// NewStore connects to redis and verifies the connection.
func NewStore(cfg *Config) (*Store, error) {
	if cfg == nil || cfg.Addr == "" {
		return nil, memerr.Configuration("NewStore", "redis addr is required")
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "agentmem"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = session.DefaultTTL
	}
	grace := cfg.EvictionGrace
	if grace <= 0 {
		grace = defaultEvictionGrace
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, memerr.Transient("NewStore", err)
	}

	return &Store{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		grace:  grace,
	}, nil
}

// Put stores a session, replacing any existing entry for the id.
func (s *Store) Put(ctx context.Context, sess *types.Session, ttl time.Duration) error {
	if sess == nil || sess.SessionID == "" {
		return memerr.Validation("Put", "session id is required")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	now := time.Now()
	stored := sess.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.ExpiresAt = now.Add(ttl)

	payload, err := json.Marshal(stored)
	if err != nil {
		return memerr.New("Put", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(stored.SessionID), payload, ttl+s.grace)
		pipe.ZAdd(ctx, s.expiryKey(), goredis.Z{
			Score:  deadlineScore(stored.ExpiresAt),
			Member: stored.SessionID,
		})
		if stored.CustomerID != "" {
			custKey := s.customerKey(stored.CustomerID)
			pipe.SAdd(ctx, custKey, stored.SessionID)
			pipe.Expire(ctx, custKey, ttl+s.grace)
		}
		return nil
	})
	if err != nil {
		return memerr.Transient("Put", err)
	}
	return nil
}

// Get returns the live session for the id.
func (s *Store) Get(ctx context.Context, id string) (*types.Session, error) {
	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, s.sessionKey(id))
	scoreCmd := pipe.ZScore(ctx, s.expiryKey(), id)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, memerr.Transient("Get", err)
	}

	raw, err := getCmd.Result()
	if errors.Is(err, goredis.Nil) {
		return nil, memerr.NotFound("Get", "session %s", id)
	}
	if err != nil {
		return nil, memerr.Transient("Get", err)
	}
	if errors.Is(scoreCmd.Err(), goredis.Nil) {
		// Claimed: value entry lingers until the consolidator deletes it.
		return nil, memerr.NotFound("Get", "session %s", id)
	}

	sess, err := decodeSession([]byte(raw))
	if err != nil {
		return nil, memerr.New("Get", err)
	}
	if time.Now().After(sess.ExpiresAt) {
		return nil, memerr.NotFound("Get", "session %s", id)
	}
	return sess, nil
}

// Update applies mutate inside an optimistic WATCH transaction on the value
// key, refreshing the deadline. The expiry index is re-scored with XX
// semantics, so an update racing a claim cannot resurrect the session.
func (s *Store) Update(ctx context.Context, id string, mutate func(*types.Session) error) (*types.Session, error) {
	if mutate == nil {
		return nil, memerr.Validation("Update", "mutate function is required")
	}

	valueKey := s.sessionKey(id)
	var updated *types.Session

	op := func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, valueKey).Result()
		if errors.Is(err, goredis.Nil) {
			return memerr.NotFound("Update", "session %s", id)
		}
		if err != nil {
			return memerr.Transient("Update", err)
		}
		if err := tx.ZScore(ctx, s.expiryKey(), id).Err(); errors.Is(err, goredis.Nil) {
			return memerr.NotFound("Update", "session %s", id)
		} else if err != nil {
			return memerr.Transient("Update", err)
		}

		sess, err := decodeSession([]byte(raw))
		if err != nil {
			return memerr.New("Update", err)
		}
		now := time.Now()
		if now.After(sess.ExpiresAt) {
			return memerr.NotFound("Update", "session %s", id)
		}

		if err := mutate(sess); err != nil {
			return memerr.New("Update", err)
		}
		sess.SessionID = id
		sess.ExpiresAt = now.Add(s.ttl)

		payload, err := json.Marshal(sess)
		if err != nil {
			return memerr.New("Update", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, valueKey, payload, s.ttl+s.grace)
			pipe.ZAddXX(ctx, s.expiryKey(), goredis.Z{
				Score:  deadlineScore(sess.ExpiresAt),
				Member: id,
			})
			if sess.CustomerID != "" {
				custKey := s.customerKey(sess.CustomerID)
				pipe.SAdd(ctx, custKey, id)
				pipe.Expire(ctx, custKey, s.ttl+s.grace)
			}
			return nil
		})
		if err != nil {
			return memerr.Transient("Update", err)
		}
		updated = sess
		return nil
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, op, valueKey)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, memerr.Consistency("Update", "session %s: retries exhausted", id)
}

// AppendMessage appends one conversation turn.
func (s *Store) AppendMessage(ctx context.Context, id string, msg types.Message) (*types.Session, error) {
	return s.Update(ctx, id, func(sess *types.Session) error {
		sess.ConversationHistory = append(sess.ConversationHistory, msg)
		return nil
	})
}

// Delete removes the session value and both index entries.
func (s *Store) Delete(ctx context.Context, id string) error {
	raw, err := s.client.Get(ctx, s.sessionKey(id)).Result()
	if errors.Is(err, goredis.Nil) {
		// Hygiene: drop a dangling index entry left by physical eviction.
		_ = s.client.ZRem(ctx, s.expiryKey(), id).Err()
		return memerr.NotFound("Delete", "session %s", id)
	}
	if err != nil {
		return memerr.Transient("Delete", err)
	}

	var customerID string
	if sess, decodeErr := decodeSession([]byte(raw)); decodeErr == nil {
		customerID = sess.CustomerID
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(id))
		pipe.ZRem(ctx, s.expiryKey(), id)
		if customerID != "" {
			pipe.SRem(ctx, s.customerKey(customerID), id)
		}
		return nil
	})
	if err != nil {
		return memerr.Transient("Delete", err)
	}
	return nil
}

// ListByCustomer returns the live session ids for a customer, pruning ids
// whose sessions have been physically evicted.
func (s *Store) ListByCustomer(ctx context.Context, customerID string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.customerKey(customerID)).Result()
	if err != nil {
		return nil, memerr.Transient("ListByCustomer", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.sessionKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, memerr.Transient("ListByCustomer", err)
	}

	now := time.Now()
	live := make([]string, 0, len(ids))
	var stale []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		sess, err := decodeSession([]byte(raw))
		if err != nil || now.After(sess.ExpiresAt) {
			continue
		}
		live = append(live, ids[i])
	}
	if len(stale) > 0 {
		_ = s.client.SRem(ctx, s.customerKey(customerID), stale...).Err()
	}
	return live, nil
}

// ListExpired returns up to limit expired sessions, oldest deadline first.
func (s *Store) ListExpired(ctx context.Context, now time.Time, limit int) ([]*types.Session, error) {
	rangeBy := &goredis.ZRangeBy{
		Min: "-inf",
		Max: formatScore(deadlineScore(now)),
	}
	if limit > 0 {
		rangeBy.Count = int64(limit)
	}
	ids, err := s.client.ZRangeByScore(ctx, s.expiryKey(), rangeBy).Result()
	if err != nil {
		return nil, memerr.Transient("ListExpired", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.sessionKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, memerr.Transient("ListExpired", err)
	}

	sessions := make([]*types.Session, 0, len(ids))
	var evicted []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Physically evicted past the grace window; drop the index entry.
			evicted = append(evicted, ids[i])
			continue
		}
		sess, err := decodeSession([]byte(raw))
		if err != nil {
			continue
		}
		sessions = append(sessions, sess)
	}
	if len(evicted) > 0 {
		_ = s.client.ZRem(ctx, s.expiryKey(), evicted...).Err()
	}
	return sessions, nil
}

// Claim removes the session from the expiry index and returns its final
// state. ZREM reports how many members it removed, so exactly one
// concurrent caller wins.
func (s *Store) Claim(ctx context.Context, id string) (*types.Session, error) {
	removed, err := s.client.ZRem(ctx, s.expiryKey(), id).Result()
	if err != nil {
		return nil, memerr.Transient("Claim", err)
	}
	if removed == 0 {
		return nil, memerr.NotFound("Claim", "session %s", id)
	}

	raw, err := s.client.Get(ctx, s.sessionKey(id)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, memerr.NotFound("Claim", "session %s evicted before claim", id)
	}
	if err != nil {
		return nil, memerr.Transient("Claim", err)
	}

	sess, err := decodeSession([]byte(raw))
	if err != nil {
		return nil, memerr.New("Claim", err)
	}
	return sess, nil
}

// Stats reports the expiry-index cardinality.
func (s *Store) Stats(ctx context.Context) (*session.Stats, error) {
	indexed, err := s.client.ZCard(ctx, s.expiryKey()).Result()
	if err != nil {
		return nil, memerr.Transient("Stats", err)
	}
	return &session.Stats{
		LiveSessions:    indexed,
		IndexedSessions: indexed,
	}, nil
}

// Ping verifies the redis connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return memerr.Transient("Ping", err)
	}
	return nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

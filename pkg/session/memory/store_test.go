package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collectiq/agentmem-go/pkg/memerr"
	"github.com/collectiq/agentmem-go/pkg/session/memory"
	"github.com/collectiq/agentmem-go/pkg/types"
)

// fakeClock lets tests move time forward deterministically.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func setupStore(t *testing.T) (*memory.Store, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	store := memory.NewStore(
		memory.WithTTL(10*time.Minute),
		memory.WithClock(clock.Now),
	)
	return store, clock
}

func newSession(id, customerID string) *types.Session {
	return &types.Session{
		SessionID:  id,
		CustomerID: customerID,
		CampaignID: "q2-loans",
		AgentType:  types.AgentTypePhone,
		ConversationHistory: []types.Message{
			{Role: "agent", Content: "hello"},
		},
		CurrentState: "negotiating",
	}
}

func TestStorePutAndGet(t *testing.T) {
	store, clock := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newSession("sess-1", "cust-1"), 0))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, "cust-1", got.CustomerID)
	assert.Equal(t, clock.Now(), got.CreatedAt, "zero CreatedAt defaults to now")
	assert.Equal(t, clock.Now().Add(10*time.Minute), got.ExpiresAt)
}

func TestStorePutValidation(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	assert.True(t, memerr.IsValidation(store.Put(ctx, nil, 0)))
	assert.True(t, memerr.IsValidation(store.Put(ctx, &types.Session{}, 0)))
}

func TestStoreGetReturnsCopy(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newSession("sess-1", "cust-1"), 0))

	first, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	first.ConversationHistory[0].Content = "tampered"
	first.CurrentState = "tampered"

	second, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", second.ConversationHistory[0].Content)
	assert.Equal(t, "negotiating", second.CurrentState)
}

func TestStoreGetExpired(t *testing.T) {
	store, clock := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newSession("sess-1", "cust-1"), 5*time.Minute))

	clock.Advance(5 * time.Minute)
	_, err := store.Get(ctx, "sess-1")
	require.NoError(t, err, "exactly at the deadline is still live")

	clock.Advance(time.Second)
	_, err = store.Get(ctx, "sess-1")
	assert.True(t, memerr.IsNotFound(err))
}

func TestStoreUpdateRefreshesDeadline(t *testing.T) {
	store, clock := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newSession("sess-1", "cust-1"), 0))

	// Touch the session 8 minutes in: the deadline moves to minute 18
	clock.Advance(8 * time.Minute)
	updated, err := store.AppendMessage(ctx, "sess-1", types.Message{Role: "customer", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(10*time.Minute), updated.ExpiresAt)

	// Minute 16 would have been past the original deadline
	clock.Advance(8 * time.Minute)
	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, got.ConversationHistory, 2)

	clock.Advance(3 * time.Minute)
	_, err = store.Get(ctx, "sess-1")
	assert.True(t, memerr.IsNotFound(err))
}

func TestStoreUpdateMissingOrExpired(t *testing.T) {
	store, clock := setupStore(t)
	ctx := context.Background()

	_, err := store.Update(ctx, "nope", func(s *types.Session) error { return nil })
	assert.True(t, memerr.IsNotFound(err))

	require.NoError(t, store.Put(ctx, newSession("sess-1", "cust-1"), time.Minute))
	clock.Advance(2 * time.Minute)
	_, err = store.AppendMessage(ctx, "sess-1", types.Message{Role: "agent", Content: "late"})
	assert.True(t, memerr.IsNotFound(err), "expired sessions reject updates")
}

func TestStoreConcurrentAppends(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newSession("sess-1", "cust-1"), 0))

	const goroutines = 8
	const perGoroutine = 25

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				_, err := store.AppendMessage(ctx, "sess-1", types.Message{
					Role:    "customer",
					Content: fmt.Sprintf("g%d-%d", g, i),
				})
				assert.NoError(t, err)
			}
		}(g)
	}
	wg.Wait()

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	// The seed message plus every appended turn, none lost
	assert.Len(t, got.ConversationHistory, 1+goroutines*perGoroutine)
}

func TestStoreListByCustomer(t *testing.T) {
	store, clock := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newSession("sess-b", "cust-a"), 0))
	require.NoError(t, store.Put(ctx, newSession("sess-a", "cust-a"), 0))
	require.NoError(t, store.Put(ctx, newSession("sess-short", "cust-a"), time.Minute))
	require.NoError(t, store.Put(ctx, newSession("sess-other", "cust-b"), 0))

	clock.Advance(2 * time.Minute)

	ids, err := store.ListByCustomer(ctx, "cust-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-a", "sess-b"}, ids, "expired sessions drop out, order is stable")

	ids, err = store.ListByCustomer(ctx, "cust-none")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStoreListExpired(t *testing.T) {
	store, clock := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newSession("sess-1", "cust-1"), 1*time.Minute))
	require.NoError(t, store.Put(ctx, newSession("sess-2", "cust-2"), 2*time.Minute))
	require.NoError(t, store.Put(ctx, newSession("sess-3", "cust-3"), 60*time.Minute))

	clock.Advance(5 * time.Minute)

	expired, err := store.ListExpired(ctx, clock.Now(), 10)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, "sess-1", expired[0].SessionID, "oldest deadline first")
	assert.Equal(t, "sess-2", expired[1].SessionID)

	// The limit caps the batch
	expired, err = store.ListExpired(ctx, clock.Now(), 1)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "sess-1", expired[0].SessionID)
}

func TestStoreClaimSingleWinner(t *testing.T) {
	store, clock := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newSession("sess-1", "cust-1"), time.Minute))
	clock.Advance(2 * time.Minute)

	const claimers = 16
	var wg sync.WaitGroup
	wins := make([]bool, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := store.Claim(ctx, "sess-1"); err == nil {
				wins[i] = true
			} else {
				assert.True(t, memerr.IsNotFound(err))
			}
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, won := range wins {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one concurrent claimer wins")
}

func TestStoreClaimedSessionIsInvisible(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newSession("sess-1", "cust-1"), 0))

	claimed, err := store.Claim(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claimed.SessionID)

	// Readers, writers, and the sweep all treat it as gone
	_, err = store.Get(ctx, "sess-1")
	assert.True(t, memerr.IsNotFound(err))

	_, err = store.AppendMessage(ctx, "sess-1", types.Message{Role: "agent", Content: "x"})
	assert.True(t, memerr.IsNotFound(err))

	expired, err := store.ListExpired(ctx, claimed.ExpiresAt.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, expired)

	// The value entry remains until the consolidator deletes it
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.LiveSessions)
	assert.Equal(t, int64(0), stats.IndexedSessions)

	require.NoError(t, store.Delete(ctx, "sess-1"))
	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.LiveSessions)
}

func TestStorePutReplacesCustomerIndex(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newSession("sess-1", "cust-a"), 0))

	moved := newSession("sess-1", "cust-b")
	require.NoError(t, store.Put(ctx, moved, 0))

	idsA, err := store.ListByCustomer(ctx, "cust-a")
	require.NoError(t, err)
	assert.Empty(t, idsA)

	idsB, err := store.ListByCustomer(ctx, "cust-b")
	require.NoError(t, err)
	assert.Equal(t, []string{"sess-1"}, idsB)
}

func TestStoreDeleteMissing(t *testing.T) {
	store, _ := setupStore(t)
	err := store.Delete(context.Background(), "nope")
	assert.True(t, memerr.IsNotFound(err))
}

func TestStorePingAndClose(t *testing.T) {
	store, _ := setupStore(t)
	assert.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, store.Close())
}

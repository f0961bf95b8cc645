package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/storygrab/igaccounts/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, clock *fakeClock) (*PoolManager, *memPoolRepo) {
	t.Helper()
	repo := &memPoolRepo{}
	return NewPoolManager(context.Background(), repo, clock, nil), repo
}

func TestFirstAccountBecomesCurrent(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pool, _ := newTestPool(t, clock)

	pool.AddOrUpdate(context.Background(), "alice", "p1")

	current, ok := pool.GetCurrent()
	require.True(t, ok)
	assert.Equal(t, domain.AccountID("alice"), current.ID)
	assert.Equal(t, domain.StatusAvailable, current.Status)
	assert.Equal(t, domain.DefaultDailyLimit, current.DailyLimit)
}

func TestAddOrUpdateExistingReplacesSecretOnly(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pool, _ := newTestPool(t, clock)

	pool.AddOrUpdate(context.Background(), "alice", "p1")
	require.True(t, pool.RecordRequest(context.Background(), "alice", true))

	pool.AddOrUpdate(context.Background(), "alice", "p2")

	account, ok := pool.Get("alice")
	require.True(t, ok)
	assert.Equal(t, "p2", account.Secret)
	assert.Equal(t, 1, account.RequestCount)
	assert.Equal(t, 1, account.TotalRequests)
}

func TestRemoveUnknownAccountReturnsFalse(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pool, _ := newTestPool(t, clock)

	assert.False(t, pool.Remove(context.Background(), "nobody"))
}

func TestRemoveCurrentReselectsNewCurrent(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pool, _ := newTestPool(t, clock)

	pool.AddOrUpdate(context.Background(), "alice", "p1")
	pool.AddOrUpdate(context.Background(), "bob", "p2")

	require.True(t, pool.Remove(context.Background(), "alice"))

	current, ok := pool.GetCurrent()
	require.True(t, ok)
	assert.Equal(t, domain.AccountID("bob"), current.ID)
}

func TestRemoveLastAccountLeavesNoCurrent(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pool, _ := newTestPool(t, clock)

	pool.AddOrUpdate(context.Background(), "alice", "p1")
	require.True(t, pool.Remove(context.Background(), "alice"))

	_, ok := pool.GetCurrent()
	assert.False(t, ok)
	assert.Empty(t, pool.List())
}

func TestRecordRequestUnknownAccountReturnsFalse(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pool, _ := newTestPool(t, clock)

	assert.False(t, pool.RecordRequest(context.Background(), "nobody", true))
}

func TestRecordRequestFailureIncrementsErrorCount(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pool, _ := newTestPool(t, clock)

	pool.AddOrUpdate(context.Background(), "alice", "p1")
	require.True(t, pool.RecordRequest(context.Background(), "", false))

	account, _ := pool.Get("alice")
	assert.Equal(t, 1, account.ErrorCount)
	assert.Equal(t, 1, account.RequestCount)
	assert.Equal(t, clock.Now(), account.LastUsedAt)
}

func TestDailyLimitTransitionsToCoolingExactlyOnce(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pool, _ := newTestPool(t, clock)

	pool.AddOrUpdate(context.Background(), "alice", "p1")
	require.True(t, pool.SetDailyLimit(context.Background(), "alice", 2))

	require.True(t, pool.RecordRequest(context.Background(), "", true))
	account, _ := pool.Get("alice")
	assert.Equal(t, domain.StatusAvailable, account.Status)

	require.True(t, pool.RecordRequest(context.Background(), "", true))
	account, _ = pool.Get("alice")
	assert.Equal(t, domain.StatusCooling, account.Status)

	// Further records exceed the limit but must not re-trigger the
	// transition or another rotation attempt.
	require.True(t, pool.RecordRequest(context.Background(), "", true))
	account, _ = pool.Get("alice")
	assert.Equal(t, domain.StatusCooling, account.Status)
	assert.Equal(t, 3, account.RequestCount)

	// With a single registered account the fallback keeps it current.
	ok, oldID, newID := pool.Rotate(context.Background(), true)
	assert.True(t, ok)
	assert.Equal(t, domain.AccountID("alice"), oldID)
	assert.Equal(t, domain.AccountID("alice"), newID)
}

func TestRotateNotForcedUnderLimitIsNoOp(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pool, repo := newTestPool(t, clock)

	pool.AddOrUpdate(context.Background(), "alice", "p1")
	pool.AddOrUpdate(context.Background(), "bob", "p2")
	saves := repo.saveCount()

	ok, oldID, newID := pool.Rotate(context.Background(), false)
	assert.True(t, ok)
	assert.Equal(t, domain.AccountID("alice"), oldID)
	assert.Equal(t, domain.AccountID("alice"), newID)
	assert.Equal(t, saves, repo.saveCount())
}

func TestRotateReselectingSameAccountPersistsCooldownReset(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pool, repo := newTestPool(t, clock)

	pool.AddOrUpdate(context.Background(), "alice", "p1")
	require.True(t, pool.SetDailyLimit(context.Background(), "alice", 1))
	require.True(t, pool.RecordRequest(context.Background(), "alice", true))
	clock.Advance(25 * time.Hour)
	saves := repo.saveCount()

	// Selection lands on the same account but resets its expired
	// cooldown, and that reset must reach the repository.
	ok, oldID, newID := pool.Rotate(context.Background(), false)
	require.True(t, ok)
	assert.Equal(t, oldID, newID)
	assert.Equal(t, saves+1, repo.saveCount())

	reloaded, _ := NewPoolManager(context.Background(), repo, clock, nil).Get("alice")
	assert.Equal(t, domain.StatusAvailable, reloaded.Status)
	assert.Equal(t, 0, reloaded.RequestCount)
}

func TestRotateEmptyPoolFails(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pool, _ := newTestPool(t, clock)

	ok, _, newID := pool.Rotate(context.Background(), true)
	assert.False(t, ok)
	assert.Empty(t, newID)
}

func TestForcedRotatePicksLowestRequestCount(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pool, _ := newTestPool(t, clock)

	pool.AddOrUpdate(context.Background(), "alice", "p1")
	pool.AddOrUpdate(context.Background(), "bob", "p2")
	for i := 0; i < 5; i++ {
		require.True(t, pool.RecordRequest(context.Background(), "alice", true))
	}
	require.True(t, pool.RecordRequest(context.Background(), "bob", true))

	ok, oldID, newID := pool.Rotate(context.Background(), true)
	assert.True(t, ok)
	assert.Equal(t, domain.AccountID("alice"), oldID)
	assert.Equal(t, domain.AccountID("bob"), newID)

	current, _ := pool.GetCurrent()
	assert.Equal(t, domain.AccountID("bob"), current.ID)
}

func TestBannedAccountIsNeverSelected(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pool, _ := newTestPool(t, clock)

	pool.AddOrUpdate(context.Background(), "alice", "p1")
	pool.AddOrUpdate(context.Background(), "bob", "p2")

	require.True(t, pool.MarkBanned(context.Background(), "alice"))

	current, ok := pool.GetCurrent()
	require.True(t, ok)
	assert.Equal(t, domain.AccountID("bob"), current.ID)

	for i := 0; i < 10; i++ {
		ok, _, newID := pool.Rotate(context.Background(), true)
		require.True(t, ok)
		assert.Equal(t, domain.AccountID("bob"), newID)
	}

	banned, _ := pool.Get("alice")
	assert.Equal(t, domain.StatusBanned, banned.Status)
	assert.Contains(t, banned.Notes, "banned")
}

func TestMarkBannedDefaultsToCurrent(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pool, _ := newTestPool(t, clock)

	pool.AddOrUpdate(context.Background(), "alice", "p1")
	require.True(t, pool.MarkBanned(context.Background(), ""))

	account, _ := pool.Get("alice")
	assert.Equal(t, domain.StatusBanned, account.Status)
}

func TestCooldownExpiryResetsRequestCount(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pool, _ := newTestPool(t, clock)

	pool.AddOrUpdate(context.Background(), "alice", "p1")
	require.True(t, pool.SetDailyLimit(context.Background(), "alice", 2))
	require.True(t, pool.RecordRequest(context.Background(), "", true))
	require.True(t, pool.RecordRequest(context.Background(), "", true))

	account, _ := pool.Get("alice")
	require.Equal(t, domain.StatusCooling, account.Status)

	clock.Advance(25 * time.Hour)

	ok, _, newID := pool.Rotate(context.Background(), true)
	assert.True(t, ok)
	assert.Equal(t, domain.AccountID("alice"), newID)

	account, _ = pool.Get("alice")
	assert.Equal(t, domain.StatusAvailable, account.Status)
	assert.Equal(t, 0, account.RequestCount)
}

func TestAllCoolingFallsBackToOldestUsed(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pool, _ := newTestPool(t, clock)

	pool.AddOrUpdate(context.Background(), "alice", "p1")
	pool.AddOrUpdate(context.Background(), "bob", "p2")
	require.True(t, pool.SetDailyLimit(context.Background(), "alice", 1))
	require.True(t, pool.SetDailyLimit(context.Background(), "bob", 1))

	require.True(t, pool.RecordRequest(context.Background(), "alice", true))
	clock.Advance(time.Hour)
	require.True(t, pool.RecordRequest(context.Background(), "bob", true))

	ok, _, newID := pool.Rotate(context.Background(), true)
	assert.True(t, ok)
	assert.Equal(t, domain.AccountID("alice"), newID)
}

func TestPoolStateRoundTripsThroughRepository(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := &memPoolRepo{}
	pool := NewPoolManager(context.Background(), repo, clock, nil)

	pool.AddOrUpdate(context.Background(), "alice", "p1")
	pool.AddOrUpdate(context.Background(), "bob", "p2")
	require.True(t, pool.RecordRequest(context.Background(), "alice", true))
	require.True(t, pool.SetCooldownHours(context.Background(), "bob", 48))

	reloaded := NewPoolManager(context.Background(), repo, clock, nil)

	assert.Equal(t, pool.List(), reloaded.List())
	current, ok := reloaded.GetCurrent()
	require.True(t, ok)
	assert.Equal(t, domain.AccountID("alice"), current.ID)
}

func TestPersistFailureKeepsInMemoryState(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := &memPoolRepo{saveErr: errors.New("disk full")}
	pool := NewPoolManager(context.Background(), repo, clock, nil)

	pool.AddOrUpdate(context.Background(), "alice", "p1")

	current, ok := pool.GetCurrent()
	require.True(t, ok)
	assert.Equal(t, domain.AccountID("alice"), current.ID)
}

func TestLoadFailureStartsEmpty(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := &memPoolRepo{loadErr: errors.New("corrupt file")}
	pool := NewPoolManager(context.Background(), repo, clock, nil)

	assert.Empty(t, pool.List())
}

func TestSetLimitsRequireKnownAccount(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pool, _ := newTestPool(t, clock)

	assert.False(t, pool.SetDailyLimit(context.Background(), "nobody", 5))
	assert.False(t, pool.SetCooldownHours(context.Background(), "nobody", 5))
}

package application

import (
	"context"
	"sync"
	"time"

	"github.com/storygrab/igaccounts/internal/domain"
	"github.com/storygrab/igaccounts/internal/ports"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeSleeper advances the fake clock instead of sleeping, so tests that
// exercise stalls finish instantly.
type fakeSleeper struct {
	clock *fakeClock
}

func (s fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.clock.Advance(d)
	return nil
}

type memPoolRepo struct {
	mu      sync.Mutex
	state   domain.PoolState
	saves   int
	saveErr error
	loadErr error
}

var _ ports.PoolRepository = (*memPoolRepo)(nil)

func (r *memPoolRepo) Load(_ context.Context) (domain.PoolState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return domain.PoolState{}, r.loadErr
	}
	return r.state.Clone(), nil
}

func (r *memPoolRepo) Save(_ context.Context, state domain.PoolState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.state = state.Clone()
	r.saves++
	return nil
}

func (r *memPoolRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

package application

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/storygrab/igaccounts/internal/ports"
	"go.uber.org/zap"
)

const (
	DefaultCheckInterval    = 15 * time.Minute
	DefaultRequestThreshold = 0.75
	DefaultRandomVariation  = 0.2
	defaultStopTimeout      = 5 * time.Second

	// Worst-case gap between cancellation polls during a long wait.
	maxWaitSlice = 5 * time.Minute
)

type RotatorConfig struct {
	CheckInterval    time.Duration
	RequestThreshold float64
	RandomVariation  float64
	StopTimeout      time.Duration
}

func (c *RotatorConfig) applyDefaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	if c.RequestThreshold <= 0 {
		c.RequestThreshold = DefaultRequestThreshold
	}
	if c.RandomVariation <= 0 {
		c.RandomVariation = DefaultRandomVariation
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = defaultStopTimeout
	}
}

// RotatorStatus is a read-only snapshot, safe to request from any
// goroutine.
type RotatorStatus struct {
	Active           bool
	RotationCount    int
	LastRotation     time.Time
	CheckInterval    time.Duration
	RequestThreshold float64
}

// Rotator periodically checks the current account's usage and forces a
// pool rotation once it crosses the configured threshold. One background
// goroutine runs between Start and Stop; a failing check is logged and
// the loop keeps going.
type Rotator struct {
	pool    *PoolManager
	cfg     RotatorConfig
	clock   ports.Clock
	sleeper ports.Sleeper
	logger  *zap.Logger

	mu            sync.Mutex
	rng           *rand.Rand
	running       bool
	cancel        context.CancelFunc
	done          chan struct{}
	rotationCount int
	lastRotation  time.Time
}

func NewRotator(pool *PoolManager, cfg RotatorConfig, clock ports.Clock, sleeper ports.Sleeper, logger *zap.Logger) *Rotator {
	cfg.applyDefaults()
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if sleeper == nil {
		sleeper = ports.SystemSleeper{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Rotator{
		pool:    pool,
		cfg:     cfg,
		clock:   clock,
		sleeper: sleeper,
		logger:  logger,
		rng:     rand.New(rand.NewSource(clock.Now().UnixNano())),
	}
}

// Start launches the check loop. Starting an already-running rotator is a
// no-op returning true; a rotator without a pool cannot start.
func (r *Rotator) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pool == nil {
		r.logger.Error("cannot start rotation without a pool")
		return false
	}
	if r.running {
		r.logger.Info("rotation loop already running")
		return true
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go r.loop(ctx, r.done)

	r.logger.Info("rotation loop started",
		zap.Duration("check_interval", r.cfg.CheckInterval),
		zap.Float64("threshold", r.cfg.RequestThreshold))
	return true
}

// Stop signals the loop and waits up to StopTimeout for it to exit. The
// rotator is considered stopped either way; false reports that the loop
// missed the deadline.
func (r *Rotator) Stop() bool {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		r.logger.Info("rotation loop is not running")
		return true
	}

	r.running = false
	r.cancel()
	done := r.done
	r.mu.Unlock()

	select {
	case <-done:
		r.logger.Info("rotation loop stopped")
		return true
	case <-time.After(r.cfg.StopTimeout):
		r.logger.Warn("rotation loop did not stop in time",
			zap.Duration("timeout", r.cfg.StopTimeout))
		return false
	}
}

func (r *Rotator) Status() RotatorStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RotatorStatus{
		Active:           r.running,
		RotationCount:    r.rotationCount,
		LastRotation:     r.lastRotation,
		CheckInterval:    r.cfg.CheckInterval,
		RequestThreshold: r.cfg.RequestThreshold,
	}
}

func (r *Rotator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		r.checkOnce(ctx)

		wait := r.nextWait()
		if err := r.sleep(ctx, wait); err != nil {
			return
		}
	}
}

// nextWait jitters the check interval by ±RandomVariation.
func (r *Rotator) nextWait() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := 1 + r.cfg.RandomVariation*(2*r.rng.Float64()-1)
	return time.Duration(float64(r.cfg.CheckInterval) * span)
}

func (r *Rotator) checkOnce(ctx context.Context) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("rotation check panicked", zap.Any("panic", v))
		}
	}()

	current, ok := r.pool.GetCurrent()
	if !ok {
		r.logger.Debug("no current account, skipping rotation check")
		return
	}
	if current.DailyLimit <= 0 {
		return
	}

	ratio := current.UsageRatio()
	if ratio < r.cfg.RequestThreshold {
		return
	}

	r.logger.Info("usage threshold crossed, forcing rotation",
		zap.String("account", string(current.ID)),
		zap.Float64("ratio", ratio))

	ok, oldID, newID := r.pool.Rotate(ctx, true)
	switch {
	case ok && oldID != newID:
		r.mu.Lock()
		r.rotationCount++
		r.lastRotation = r.clock.Now()
		r.mu.Unlock()
	case ok:
		r.logger.Info("rotation was a no-op, no better account available")
	default:
		r.logger.Error("forced rotation failed")
	}
}

func (r *Rotator) sleep(ctx context.Context, d time.Duration) error {
	for d > 0 {
		slice := d
		if slice > maxWaitSlice {
			slice = maxWaitSlice
		}
		if err := r.sleeper.Sleep(ctx, slice); err != nil {
			return err
		}
		d -= slice
	}
	return ctx.Err()
}

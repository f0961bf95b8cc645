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
	DefaultMaxPerDay  = 200
	DefaultMaxPerHour = 50
	DefaultMinDelay   = 2 * time.Second
	DefaultMaxDelay   = 5 * time.Second
	DefaultBurstSize  = 5
	defaultRefill     = 5 * time.Second

	// Suspensions happen in slices no longer than this so cancellation
	// is observed promptly even mid-stall.
	sleepSlice = 5 * time.Second
)

type RateLimiterConfig struct {
	MaxPerDay   int
	MaxPerHour  int
	MinDelay    time.Duration
	MaxDelay    time.Duration
	BurstSize   int
	RefillEvery time.Duration
}

func (c *RateLimiterConfig) applyDefaults() {
	if c.MaxPerDay <= 0 {
		c.MaxPerDay = DefaultMaxPerDay
	}
	if c.MaxPerHour <= 0 {
		c.MaxPerHour = DefaultMaxPerHour
	}
	if c.MinDelay <= 0 {
		c.MinDelay = DefaultMinDelay
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.BurstSize <= 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.RefillEvery <= 0 {
		c.RefillEvery = defaultRefill
	}
}

// RateLimiter paces outbound requests process-wide: rolling day/hour
// window caps, a token bucket for burst control, and an adaptive
// randomized delay between consecutive calls. It never inspects account
// identity. Wait serializes concurrent callers; each queued caller is
// evaluated against the counters its predecessors updated.
type RateLimiter struct {
	cfg     RateLimiterConfig
	clock   ports.Clock
	sleeper ports.Sleeper
	logger  *zap.Logger

	mu          sync.Mutex
	rng         *rand.Rand
	dailyCount  int
	hourlyCount int
	dayStart    time.Time
	hourStart   time.Time
	tokens      int
	lastRefill  time.Time
	lastRequest time.Time
}

func NewRateLimiter(cfg RateLimiterConfig, clock ports.Clock, sleeper ports.Sleeper, logger *zap.Logger) *RateLimiter {
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

	now := clock.Now()
	l := &RateLimiter{
		cfg:         cfg,
		clock:       clock,
		sleeper:     sleeper,
		logger:      logger,
		rng:         rand.New(rand.NewSource(now.UnixNano())),
		dayStart:    startOfDay(now),
		hourStart:   startOfHour(now),
		tokens:      cfg.BurstSize,
		lastRefill:  now,
		lastRequest: now,
	}

	logger.Info("rate limiter initialized",
		zap.Int("max_per_day", cfg.MaxPerDay),
		zap.Int("max_per_hour", cfg.MaxPerHour))

	return l
}

// Wait blocks until the next request may proceed and returns how long the
// caller was suspended. It stalls rather than fails on window exhaustion;
// the only error is a canceled context.
func (l *RateLimiter) Wait(ctx context.Context) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total time.Duration

	l.rollWindows()

	// Hard backstops: stall past the window boundary plus jitter, then
	// re-evaluate with the rolled counters.
	if l.dailyCount >= l.cfg.MaxPerDay {
		until := l.dayStart.AddDate(0, 0, 1).Sub(l.clock.Now())
		stall := until + l.jitterBetween(60*time.Second, 300*time.Second)
		l.logger.Warn("daily request cap reached, stalling until tomorrow",
			zap.Int("cap", l.cfg.MaxPerDay),
			zap.Duration("stall", stall))
		if err := l.sleep(ctx, stall); err != nil {
			return total, err
		}
		total += stall
		l.rollWindows()
	}

	if l.hourlyCount >= l.cfg.MaxPerHour {
		until := l.hourStart.Add(time.Hour).Sub(l.clock.Now())
		stall := until + l.jitterBetween(10*time.Second, 60*time.Second)
		l.logger.Warn("hourly request cap reached, stalling until next hour",
			zap.Int("cap", l.cfg.MaxPerHour),
			zap.Duration("stall", stall))
		if err := l.sleep(ctx, stall); err != nil {
			return total, err
		}
		total += stall
		l.rollWindows()
	}

	l.refillTokens()
	for l.tokens < 1 {
		if err := l.sleep(ctx, l.cfg.RefillEvery); err != nil {
			return total, err
		}
		total += l.cfg.RefillEvery
		l.refillTokens()
	}

	delay := l.adaptiveDelay()
	sinceLast := l.clock.Now().Sub(l.lastRequest)
	if sinceLast < delay {
		remainder := delay - sinceLast
		if err := l.sleep(ctx, remainder); err != nil {
			return total, err
		}
		total += remainder
	}

	l.lastRequest = l.clock.Now()
	l.dailyCount++
	l.hourlyCount++
	l.tokens--

	l.logger.Debug("request permitted",
		zap.Int("daily", l.dailyCount),
		zap.Int("hourly", l.hourlyCount),
		zap.Int("tokens", l.tokens),
		zap.Duration("waited", total))

	return total, nil
}

func (l *RateLimiter) rollWindows() {
	now := l.clock.Now()

	if day := startOfDay(now); day.After(l.dayStart) {
		l.logger.Info("new day, resetting daily counter", zap.Int("was", l.dailyCount))
		l.dailyCount = 0
		l.dayStart = day
	}

	if hour := startOfHour(now); hour.After(l.hourStart) {
		l.logger.Info("new hour, resetting hourly counter", zap.Int("was", l.hourlyCount))
		l.hourlyCount = 0
		l.hourStart = hour
	}
}

func (l *RateLimiter) refillTokens() {
	now := l.clock.Now()
	earned := int(now.Sub(l.lastRefill) / l.cfg.RefillEvery)
	if earned <= 0 {
		return
	}

	l.tokens += earned
	if l.tokens > l.cfg.BurstSize {
		l.tokens = l.cfg.BurstSize
	}
	l.lastRefill = now
}

// adaptiveDelay samples a base delay and scales it as the hourly and
// daily windows fill, with an occasional multiplied pause so the cadence
// reads as human.
func (l *RateLimiter) adaptiveDelay() time.Duration {
	base := l.jitterBetween(l.cfg.MinDelay, l.cfg.MaxDelay)

	hourFactor := float64(l.hourlyCount) / float64(l.cfg.MaxPerHour)
	if hourFactor > 0.7 {
		base += time.Duration(float64(base) * hourFactor * 1.5)
	}

	dayFactor := float64(l.dailyCount) / float64(l.cfg.MaxPerDay)
	if dayFactor > 0.8 {
		base += time.Duration(float64(base) * dayFactor * 2)
	}

	if l.rng.Float64() < 0.1 {
		base = time.Duration(float64(base) * (2 + 2*l.rng.Float64()))
	}

	return base
}

func (l *RateLimiter) jitterBetween(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(l.rng.Int63n(int64(hi-lo)))
}

func (l *RateLimiter) sleep(ctx context.Context, d time.Duration) error {
	for d > 0 {
		slice := d
		if slice > sleepSlice {
			slice = sleepSlice
		}
		if err := l.sleeper.Sleep(ctx, slice); err != nil {
			return err
		}
		d -= slice
	}
	return ctx.Err()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func startOfHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/storygrab/igaccounts/internal/domain"
	"github.com/storygrab/igaccounts/internal/ports"
	"go.uber.org/zap"
)

const DefaultMaxFallbackRequests = 100

type OrchestratorConfig struct {
	// MaxFallbackRequests caps total requests when no accounts are
	// registered and the pool cannot meter usage.
	MaxFallbackRequests int
}

func (c *OrchestratorConfig) applyDefaults() {
	if c.MaxFallbackRequests <= 0 {
		c.MaxFallbackRequests = DefaultMaxFallbackRequests
	}
}

// Orchestrator sequences one outbound content request: pick or rotate the
// account, re-authenticate when the account changed, record usage, and
// dispatch through the rate-limited client.
type Orchestrator struct {
	pool   *PoolManager
	client ports.StoryClient
	auth   ports.Authenticator
	cfg    OrchestratorConfig
	logger *zap.Logger

	mu            sync.Mutex
	fallbackCount int
}

func NewOrchestrator(pool *PoolManager, limiter *RateLimiter, auth ports.Authenticator, client ports.StoryClient, cfg OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		pool:   pool,
		client: NewRateLimitedClient(client, limiter),
		auth:   auth,
		cfg:    cfg,
		logger: logger,
	}
}

// FetchStories resolves a username and retrieves its stories, charging
// the request against the current account. The real dispatch outcome is
// fed back into the pool so repeated failures show up as error pressure.
func (o *Orchestrator) FetchStories(ctx context.Context, username string) ([]ports.Story, error) {
	hasAccount, err := o.prepareAccount(ctx)
	if err != nil {
		return nil, err
	}

	stories, err := o.dispatch(ctx, username)

	if hasAccount {
		o.pool.RecordRequest(ctx, "", err == nil)
	}

	return stories, err
}

// prepareAccount reports whether a pool account backs this request, after
// rotating and re-authenticating if the current account is unusable.
func (o *Orchestrator) prepareAccount(ctx context.Context) (bool, error) {
	current, ok := o.pool.GetCurrent()
	if !ok {
		// No accounts registered: a plain counter is the only guard.
		o.mu.Lock()
		defer o.mu.Unlock()
		o.fallbackCount++
		if o.fallbackCount > o.cfg.MaxFallbackRequests {
			return false, fmt.Errorf("fallback request ceiling (%d): %w",
				o.cfg.MaxFallbackRequests, domain.ErrRateLimited)
		}
		return false, nil
	}

	if current.Status == domain.StatusAvailable {
		return true, nil
	}

	ok, oldID, newID := o.pool.Rotate(ctx, false)
	if !ok {
		o.logger.Warn("all accounts unavailable or cooling")
		return false, fmt.Errorf("rotate: %w", domain.ErrRateLimited)
	}

	if newID != oldID {
		account, found := o.pool.Get(newID)
		if !found {
			return false, fmt.Errorf("rotated to %s: %w", newID, domain.ErrAccountNotFound)
		}

		o.logger.Info("re-authenticating after rotation",
			zap.String("account", string(newID)))
		if err := o.auth.Authenticate(ctx, account); err != nil {
			o.logger.Error("authentication with rotated account failed",
				zap.String("account", string(newID)),
				zap.Error(err))
			return false, fmt.Errorf("authenticate %s: %w", newID, domain.ErrAuthFailed)
		}
	}

	return true, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, username string) ([]ports.Story, error) {
	userID, err := o.client.FetchUserID(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("fetch user id: %w", err)
	}

	stories, err := o.client.FetchStories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch stories: %w", err)
	}

	return stories, nil
}

// RateLimitedClient gates each upstream operation through the limiter.
// It replaces blanket call interception with an explicit decorator over
// exactly the operations the orchestrator uses.
type RateLimitedClient struct {
	inner   ports.StoryClient
	limiter *RateLimiter
}

var _ ports.StoryClient = (*RateLimitedClient)(nil)

func NewRateLimitedClient(inner ports.StoryClient, limiter *RateLimiter) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, limiter: limiter}
}

func (c *RateLimitedClient) FetchUserID(ctx context.Context, username string) (string, error) {
	if _, err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return c.inner.FetchUserID(ctx, username)
}

func (c *RateLimitedClient) FetchStories(ctx context.Context, userID string) ([]ports.Story, error) {
	if _, err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.inner.FetchStories(ctx, userID)
}

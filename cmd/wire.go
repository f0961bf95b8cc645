package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	tomlrepo "github.com/storygrab/igaccounts/internal/adapters/repo/toml"
	"github.com/storygrab/igaccounts/internal/application"
	"github.com/storygrab/igaccounts/internal/ports"
	"go.uber.org/zap"
)

type app struct {
	config  *viper.Viper
	pool    *application.PoolManager
	rotator *application.Rotator
	logger  *zap.Logger
	now     func() time.Time
}

func wireApp() (*app, error) {
	cfg := viper.New()
	setConfigDefaults(cfg)

	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}

	// NewRepository attaches the config file search path and reads the
	// config, so the limiter and rotation keys below see user overrides.
	repo, err := tomlrepo.NewRepository(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire pool repository: %w", err)
	}

	clock := ports.SystemClock{}
	pool := application.NewPoolManager(context.Background(), repo, clock, logger)
	rotator := application.NewRotator(pool, rotatorConfigFromViper(cfg), clock, ports.SystemSleeper{}, logger)

	return &app{
		config:  cfg,
		pool:    pool,
		rotator: rotator,
		logger:  logger,
		now:     time.Now,
	}, nil
}

func setConfigDefaults(cfg *viper.Viper) {
	cfg.SetDefault("limiter.max_per_day", application.DefaultMaxPerDay)
	cfg.SetDefault("limiter.max_per_hour", application.DefaultMaxPerHour)
	cfg.SetDefault("limiter.min_delay", application.DefaultMinDelay)
	cfg.SetDefault("limiter.max_delay", application.DefaultMaxDelay)
	cfg.SetDefault("rotation.check_interval", application.DefaultCheckInterval)
	cfg.SetDefault("rotation.threshold", application.DefaultRequestThreshold)
	cfg.SetDefault("rotation.variation", application.DefaultRandomVariation)
	cfg.SetDefault("orchestrator.max_requests", application.DefaultMaxFallbackRequests)
}

func limiterConfigFromViper(cfg *viper.Viper) application.RateLimiterConfig {
	return application.RateLimiterConfig{
		MaxPerDay:  cfg.GetInt("limiter.max_per_day"),
		MaxPerHour: cfg.GetInt("limiter.max_per_hour"),
		MinDelay:   cfg.GetDuration("limiter.min_delay"),
		MaxDelay:   cfg.GetDuration("limiter.max_delay"),
	}
}

func rotatorConfigFromViper(cfg *viper.Viper) application.RotatorConfig {
	return application.RotatorConfig{
		CheckInterval:    cfg.GetDuration("rotation.check_interval"),
		RequestThreshold: cfg.GetFloat64("rotation.threshold"),
		RandomVariation:  cfg.GetFloat64("rotation.variation"),
	}
}

func orchestratorConfigFromViper(cfg *viper.Viper) application.OrchestratorConfig {
	return application.OrchestratorConfig{
		MaxFallbackRequests: cfg.GetInt("orchestrator.max_requests"),
	}
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("IGA_DEBUG") == "" {
		return zap.NewNop(), nil
	}

	return zap.NewDevelopment()
}

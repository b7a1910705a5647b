// Package bootstrap assembles the gamification engine from configuration:
// Postgres store, optional Redis leaderboard cache, feature flags and the
// facade the platform calls into.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/learnloop/learnloop-hub/config"
	"github.com/learnloop/learnloop-hub/internal/application"
	"github.com/learnloop/learnloop-hub/internal/domain/leaderboard"
	"github.com/learnloop/learnloop-hub/internal/infrastructure/persistence/postgres"
	rediscache "github.com/learnloop/learnloop-hub/internal/infrastructure/persistence/redis"
	"github.com/learnloop/learnloop-hub/pkg/logger"
	"github.com/learnloop/learnloop-hub/pkg/retry"
	"github.com/learnloop/learnloop-hub/pkg/timeutil"
)

// Engine owns the engine's connections and exposes the facade.
type Engine struct {
	Facade *application.GamificationFacade

	db    *postgres.Connection
	cache *rediscache.Cache
	log   *logger.Logger
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg config.ObservabilityConfig) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.LogLevel)
	if cfg.LogFormat != "" {
		opts.Format = cfg.LogFormat
	}
	return logger.New(opts)
}

// Settings maps configuration onto facade settings.
func Settings(cfg config.GamificationConfig) application.Settings {
	return application.Settings{
		DefaultDailyGoal:   cfg.DefaultDailyGoal,
		WeekStart:          cfg.WeekStart,
		LeaderboardDefault: cfg.LeaderboardDefaultLimit,
		LeaderboardMax:     cfg.LeaderboardMaxLimit,
	}
}

// PostgresConfig maps configuration onto pool settings.
func PostgresConfig(cfg config.DatabaseConfig) postgres.Config {
	return postgres.Config{
		URL:             cfg.URL,
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: cfg.ConnMaxLifetime,
		MaxConnIdleTime: cfg.ConnMaxIdleTime,
	}
}

// New connects to the stores and builds the facade. A Redis outage at
// start-up is logged and leaderboards are served from Postgres.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Engine, error) {
	if log == nil {
		log = NewLogger(cfg.Observability)
	}

	db, err := postgres.NewConnection(ctx, PostgresConfig(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	e := &Engine{db: db, log: log}

	var reader leaderboard.WindowReader = postgres.NewLeaderboardRepository(db)
	if !cfg.Redis.Disabled {
		cache, err := rediscache.NewCache(ctx, rediscache.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Warn("redis unavailable, leaderboard cache disabled", logger.Err(err))
		} else {
			e.cache = cache
			reader = WrapWithCache(reader, cache, cfg, log)
		}
	}

	e.Facade = application.NewGamificationFacade(application.Dependencies{
		Store:       postgres.NewGamificationStore(db),
		Leaderboard: reader,
		Roster:      postgres.NewClassRoster(db),
		Clock:       timeutil.SystemClock{},
		Logger:      log,
		Features:    cfg.Features,
		Retrier:     retry.DatabaseRetrier(postgres.IsSerializationFailure),
		Settings:    Settings(cfg.Gamification),
	})

	log.Info("gamification engine ready",
		logger.String("env", string(cfg.App.Environment)),
		logger.Bool("leaderboard_cache", e.cache != nil),
	)
	return e, nil
}

// WrapWithCache puts the Redis window cache in front of reader, gated by the
// leaderboard.cache flag.
func WrapWithCache(reader leaderboard.WindowReader, cache *rediscache.Cache, cfg *config.Config, log *logger.Logger) leaderboard.WindowReader {
	return rediscache.NewCachedWindowReader(reader, cache,
		rediscache.WithTTL(cfg.Gamification.LeaderboardCacheTTL),
		rediscache.WithToggle(cfg.Features.LeaderboardCacheEnabled),
		rediscache.WithLogger(log),
	)
}

// Ping checks Postgres and, when configured, Redis. A Redis failure is
// reported but leaderboards keep working from Postgres.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.db.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if e.cache != nil {
		if err := e.cache.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases connections.
func (e *Engine) Close() {
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			e.log.Warn("close redis", logger.Err(err))
		}
	}
	e.db.Close()
	_ = e.log.Sync()
}

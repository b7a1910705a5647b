package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnloop/learnloop-hub/config"
	"github.com/learnloop/learnloop-hub/internal/application"
	"github.com/learnloop/learnloop-hub/internal/application/saga"
	"github.com/learnloop/learnloop-hub/internal/domain/leaderboard"
	"github.com/learnloop/learnloop-hub/internal/infrastructure/persistence/memory"
	rediscache "github.com/learnloop/learnloop-hub/internal/infrastructure/persistence/redis"
	"github.com/learnloop/learnloop-hub/pkg/logger"
	"github.com/learnloop/learnloop-hub/pkg/timeutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFile("")
	require.NoError(t, err)
	return cfg
}

func TestSettingsMapping(t *testing.T) {
	cfg := testConfig(t)
	cfg.Gamification.WeekStart = time.Sunday
	cfg.Gamification.DefaultDailyGoal = 4

	s := Settings(cfg.Gamification)
	assert.Equal(t, time.Sunday, s.WeekStart)
	assert.Equal(t, 4, s.DefaultDailyGoal)
	assert.Equal(t, 10, s.LeaderboardDefault)
	assert.Equal(t, 100, s.LeaderboardMax)

	pc := PostgresConfig(config.DatabaseConfig{URL: "postgres://x", MaxConns: 7})
	assert.Equal(t, "postgres://x", pc.URL)
	assert.Equal(t, int32(7), pc.MaxConns)

	assert.NotNil(t, NewLogger(config.ObservabilityConfig{LogLevel: "debug", LogFormat: "console"}))
}

func TestWrapWithCache_FeatureToggle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig(t)
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	clock := timeutil.ClockFunc(func() time.Time { return now })
	store := memory.NewStore(clock)

	reader := WrapWithCache(store, rediscache.NewCacheFromClient(client), cfg, logger.NewNop())
	facade := application.NewGamificationFacade(application.Dependencies{
		Store:       store,
		Leaderboard: reader,
		Clock:       clock,
		Features:    cfg.Features,
		Settings:    Settings(cfg.Gamification),
	})
	ctx := context.Background()

	_, err := facade.ProcessQuizCompletion(ctx, saga.CompletionInput{
		UserID: "alice", AttemptID: "a1", Score: 10, TotalQuestions: 10,
	})
	require.NoError(t, err)

	board, err := facade.GetLeaderboard(ctx, leaderboard.PeriodWeekly, "alice", 10)
	require.NoError(t, err)
	require.Len(t, board.Entries, 1)
	assert.Len(t, mr.Keys(), 1, "window cached")

	require.NoError(t, cfg.Features.DisableFeature(config.FeatureLeaderboardCache))
	mr.FlushAll()

	_, err = facade.GetLeaderboard(ctx, leaderboard.PeriodWeekly, "alice", 10)
	require.NoError(t, err)
	assert.Empty(t, mr.Keys(), "cache bypassed while the flag is off")
}

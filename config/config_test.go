package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, time.Monday, cfg.Gamification.WeekStart)
	assert.Equal(t, 3, cfg.Gamification.DefaultDailyGoal)
	assert.Equal(t, 10, cfg.Gamification.LeaderboardDefaultLimit)
	assert.Equal(t, 100, cfg.Gamification.LeaderboardMaxLimit)
	assert.Equal(t, 30*time.Second, cfg.Gamification.LeaderboardCacheTTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, "json", cfg.Observability.LogFormat)
	require.NotNil(t, cfg.Features)
	assert.True(t, cfg.Features.LeaderboardCacheEnabled())
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/learnloop")
	t.Setenv("GAMIFICATION_WEEK_START", "sunday")
	t.Setenv("GAMIFICATION_DEFAULT_DAILY_GOAL", "5")
	t.Setenv("LEADERBOARD_CACHE_TTL", "1m")
	t.Setenv("REDIS_DISABLED", "true")
	t.Setenv("LOG_FORMAT", "CONSOLE")
	t.Setenv("FEATURE_GAMIFICATION_ACHIEVEMENTS", "false")

	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, time.Sunday, cfg.Gamification.WeekStart)
	assert.Equal(t, 5, cfg.Gamification.DefaultDailyGoal)
	assert.Equal(t, time.Minute, cfg.Gamification.LeaderboardCacheTTL)
	assert.True(t, cfg.Redis.Disabled)
	assert.Equal(t, "console", cfg.Observability.LogFormat)
	assert.False(t, cfg.Features.AchievementsEnabled("user-1"))
	assert.True(t, cfg.Features.StreakBonusEnabled("user-1"))
}

func TestLoadFile_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LEADERBOARD_MAX_LIMIT=50\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("LEADERBOARD_MAX_LIMIT") })

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Gamification.LeaderboardMaxLimit)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestLoadFile_InvalidWeekStart(t *testing.T) {
	t.Setenv("GAMIFICATION_WEEK_START", "funday")

	_, err := LoadFile("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	cfg.App.Environment = EnvProduction
	cfg.Database.URL = ""
	cfg.Gamification.DefaultDailyGoal = 0
	cfg.Gamification.LeaderboardDefaultLimit = 500
	cfg.Gamification.LeaderboardCacheTTL = 0
	cfg.Observability.LogFormat = "xml"

	err = cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "DATABASE_URL is required in production")
	assert.Contains(t, msg, "GAMIFICATION_DEFAULT_DAILY_GOAL")
	assert.Contains(t, msg, "LEADERBOARD_DEFAULT_LIMIT")
	assert.Contains(t, msg, "LEADERBOARD_CACHE_TTL")
	assert.Contains(t, msg, "LOG_FORMAT")

	cfg.App.Environment = "staging"
	assert.ErrorContains(t, cfg.Validate(), "APP_ENV")
}

package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnloop/learnloop-hub/internal/domain/leaderboard"
	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/internal/infrastructure/persistence/memory"
	"github.com/learnloop/learnloop-hub/pkg/timeutil"
)

// recordingReader captures the last query and answers with a fixed window.
type recordingReader struct {
	last   leaderboard.WindowQuery
	calls  int
	window *leaderboard.Window
	err    error
}

func (r *recordingReader) ReadLeaderboardWindow(_ context.Context, q leaderboard.WindowQuery) (*leaderboard.Window, error) {
	r.last = q
	r.calls++
	return r.window, r.err
}

var wednesday = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) timeutil.Clock {
	return timeutil.ClockFunc(func() time.Time { return t })
}

func TestLeaderboardConfig_ClampLimit(t *testing.T) {
	cfg := DefaultLeaderboardConfig()

	assert.Equal(t, 10, cfg.ClampLimit(0))
	assert.Equal(t, 10, cfg.ClampLimit(-3))
	assert.Equal(t, 25, cfg.ClampLimit(25))
	assert.Equal(t, 100, cfg.ClampLimit(1000))
}

func TestGetLeaderboard_QueryShape(t *testing.T) {
	reader := &recordingReader{window: &leaderboard.Window{Entries: []leaderboard.Entry{
		{Rank: 1, UserID: "a", XPEarned: 90},
		{Rank: 2, UserID: "b", XPEarned: 40},
	}, Viewer: &leaderboard.Entry{Rank: 7, UserID: "me", XPEarned: 5}, Participants: 12}}

	h := NewGetLeaderboardHandler(reader, memory.StaticRoster{}, fixedClock(wednesday), LeaderboardConfig{}, nil)

	board, err := h.GetLeaderboard(context.Background(), leaderboard.PeriodWeekly, "me", 500)
	require.NoError(t, err)

	assert.Equal(t, 100, reader.last.Limit)
	assert.Equal(t, "me", reader.last.ViewerID)
	assert.Equal(t, timeutil.Date(2026, 10, 12), reader.last.Period.Start)
	assert.False(t, reader.last.Scope.IsClass())

	require.NotNil(t, board.Period)
	assert.Equal(t, "weekly:2026-10-12", board.Period.Key)
	assert.Equal(t, "global", board.Scope)
	assert.Len(t, board.Entries, 2)
	assert.Equal(t, 12, board.Participants)
	require.NotNil(t, board.UserRank)
	assert.Equal(t, shared.Rank(7), *board.UserRank)
	assert.Equal(t, "me", board.UserEntry.UserID)
}

func TestGetLeaderboard_EmptyPeriod(t *testing.T) {
	reader := &recordingReader{window: &leaderboard.Window{Entries: []leaderboard.Entry{}}}
	h := NewGetLeaderboardHandler(reader, memory.StaticRoster{}, fixedClock(wednesday), LeaderboardConfig{}, nil)

	board, err := h.GetLeaderboard(context.Background(), leaderboard.PeriodMonthly, "", 0)
	require.NoError(t, err)
	assert.True(t, board.IsEmpty())
	assert.Nil(t, board.Period)
	assert.NotNil(t, board.Entries)
	assert.Nil(t, board.UserRank)
}

func TestGetLeaderboard_InvalidPeriod(t *testing.T) {
	reader := &recordingReader{}
	h := NewGetLeaderboardHandler(reader, memory.StaticRoster{}, fixedClock(wednesday), LeaderboardConfig{}, nil)

	_, err := h.GetLeaderboard(context.Background(), "daily", "", 10)
	assert.ErrorIs(t, err, shared.ErrInvalidPeriodType)
	assert.Equal(t, 0, reader.calls)

	_, err = h.PeriodInfo("yearly")
	assert.ErrorIs(t, err, shared.ErrInvalidPeriodType)
}

func TestGetLeaderboard_ReaderError(t *testing.T) {
	boom := errors.New("db down")
	h := NewGetLeaderboardHandler(&recordingReader{err: boom}, memory.StaticRoster{}, fixedClock(wednesday), LeaderboardConfig{}, nil)

	_, err := h.GetLeaderboard(context.Background(), leaderboard.PeriodWeekly, "", 10)
	assert.ErrorIs(t, err, boom)
}

func TestGetClassLeaderboard(t *testing.T) {
	reader := &recordingReader{window: &leaderboard.Window{Entries: []leaderboard.Entry{{Rank: 1, UserID: "s1", XPEarned: 10}}}}
	roster := memory.StaticRoster{"cls-1": {"s1", "s2"}}
	h := NewGetLeaderboardHandler(reader, roster, fixedClock(wednesday), LeaderboardConfig{}, nil)
	ctx := context.Background()

	board, err := h.GetClassLeaderboard(ctx, "cls-1", leaderboard.PeriodWeekly, 5)
	require.NoError(t, err)
	assert.Equal(t, "class:cls-1", board.Scope)
	assert.Equal(t, []string{"s1", "s2"}, reader.last.UserIDs)
	assert.Empty(t, reader.last.ViewerID)
	assert.Nil(t, board.UserRank)

	calls := reader.calls
	board, err = h.GetClassLeaderboard(ctx, "cls-empty", leaderboard.PeriodWeekly, 5)
	require.NoError(t, err)
	assert.True(t, board.IsEmpty())
	assert.Equal(t, calls, reader.calls, "empty roster skips the read")

	_, err = h.GetClassLeaderboard(ctx, "", leaderboard.PeriodWeekly, 5)
	assert.ErrorIs(t, err, shared.ErrEmptyClassID)

	_, err = h.GetClassLeaderboard(ctx, "cls-1", "daily", 5)
	assert.ErrorIs(t, err, shared.ErrInvalidPeriodType)
}

func TestGetLeaderboard_WeeklyBoundary(t *testing.T) {
	now := time.Date(2026, 10, 19, 0, 30, 0, 0, time.UTC) // Monday
	store := memory.NewStore(fixedClock(now))
	ctx := context.Background()

	grant := func(user string, xp shared.XP, at time.Time) {
		g, err := progress.NewGrant(user, xp, progress.ReasonQuizComplete, nil, at)
		require.NoError(t, err)
		_, _, err = store.InsertGrantIfAbsent(ctx, g)
		require.NoError(t, err)
	}
	grant("old", 500, time.Date(2026, 10, 18, 23, 59, 59, 0, time.UTC))
	grant("new", 10, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC))

	h := NewGetLeaderboardHandler(store, memory.StaticRoster{}, fixedClock(now), LeaderboardConfig{}, nil)

	board, err := h.GetLeaderboard(ctx, leaderboard.PeriodWeekly, "old", 10)
	require.NoError(t, err)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, "new", board.Entries[0].UserID)
	assert.Nil(t, board.UserRank, "last week's XP does not count")

	info, err := h.PeriodInfo(leaderboard.PeriodWeekly)
	require.NoError(t, err)
	assert.Equal(t, timeutil.Date(2026, 10, 19), info.Start)
	assert.Equal(t, timeutil.Date(2026, 10, 26), info.End)
}

func TestGetXPHistory(t *testing.T) {
	store := memory.NewStore(fixedClock(wednesday))
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		g, err := progress.NewGrant("user-1", 1, progress.ReasonAchievement, nil, wednesday.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		_, _, err = store.InsertGrantIfAbsent(ctx, g)
		require.NoError(t, err)
	}

	h := NewGetXPHistoryHandler(store)

	grants, err := h.Handle(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, grants, 20)
	assert.True(t, grants[0].CreatedAt.After(grants[1].CreatedAt), "newest first")

	grants, err = h.Handle(ctx, "nobody", 5)
	require.NoError(t, err)
	assert.NotNil(t, grants)
	assert.Empty(t, grants)

	_, err = h.Handle(ctx, "", 5)
	assert.ErrorIs(t, err, shared.ErrEmptyUserID)
}

package saga

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/learnloop/learnloop-hub/internal/application/command"
	"github.com/learnloop/learnloop-hub/internal/domain/achievement"
	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/internal/infrastructure/persistence/memory"
	"github.com/learnloop/learnloop-hub/pkg/timeutil"
)

type gate struct {
	streaks      bool
	achievements bool
}

func (g gate) StreakBonusEnabled(string) bool  { return g.streaks }
func (g gate) AchievementsEnabled(string) bool { return g.achievements }

type fixture struct {
	saga  *QuizCompletionSaga
	store *memory.Store
	now   *time.Time
	mu    *sync.Mutex
}

func newFixture(t *testing.T, features FeatureGate) *fixture {
	t.Helper()

	var mu sync.Mutex
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	clock := timeutil.ClockFunc(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})

	store := memory.NewStore(clock)
	opts := command.Options{DefaultDailyGoal: 3}
	ledger := command.NewXPLedger(store, clock, opts)
	streaks := command.NewStreakTracker(store, clock, opts)
	unlocker := command.NewAchievementUnlocker(store, ledger, achievement.NewEvaluator(), clock, nil)

	return &fixture{
		saga:  NewQuizCompletionSaga(ledger, streaks, unlocker, store, nil, features, clock, nil),
		store: store,
		now:   &now,
		mu:    &mu,
	}
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.now = f.now.Add(d)
}

func (f *fixture) complete(t *testing.T, attemptID string, score, total int) *CompletionResult {
	t.Helper()
	res, err := f.saga.Execute(context.Background(), CompletionInput{
		UserID:         "user-1",
		AttemptID:      attemptID,
		Score:          score,
		TotalQuestions: total,
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func reasons(items []BreakdownItem) map[progress.Reason]shared.XP {
	out := make(map[progress.Reason]shared.XP)
	for _, it := range items {
		if it.Applied {
			out[it.Reason] += it.Amount
		}
	}
	return out
}

func achievementIDs(list []command.UnlockedAchievement) []achievement.ID {
	out := make([]achievement.ID, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}

func TestQuizCompletion_ThreeQuizDay(t *testing.T) {
	f := newFixture(t, nil)

	// 10/10: 10 + 50 + 25, streak bonus 5, first_quiz 10.
	first := f.complete(t, "attempt-1", 10, 10)
	assert.Equal(t, shared.XP(100), first.TotalXPAwarded)
	assert.Equal(t, shared.XP(100), first.NewTotalXP)
	assert.Equal(t, shared.Level(2), first.NewLevel)
	assert.True(t, first.LeveledUp)
	assert.Equal(t, shared.XP(5), reasons(first.Breakdown)[progress.ReasonStreakBonus])
	assert.Equal(t, []achievement.ID{achievement.FirstQuiz}, achievementIDs(first.NewAchievements))
	require.NotNil(t, first.Streak)
	assert.Equal(t, 1, first.Streak.NewStreak)

	f.advance(time.Hour)

	// 5/10: 10 + 25, no bonus on the second quiz of the day.
	second := f.complete(t, "attempt-2", 5, 10)
	assert.Equal(t, shared.XP(35), second.TotalXPAwarded)
	assert.Equal(t, shared.XP(135), second.NewTotalXP)
	assert.False(t, second.LeveledUp)
	assert.NotContains(t, reasons(second.Breakdown), progress.ReasonStreakBonus)
	assert.Empty(t, second.NewAchievements)

	f.advance(time.Hour)

	// 10/10: 85, daily goal 30, perfect_2 25, daily_goal_1 20.
	third := f.complete(t, "attempt-3", 10, 10)
	assert.Equal(t, shared.XP(160), third.TotalXPAwarded)
	assert.Equal(t, shared.XP(295), third.NewTotalXP)
	assert.Equal(t, shared.Level(2), third.NewLevel)
	assert.Equal(t, shared.XP(30), reasons(third.Breakdown)[progress.ReasonDailyGoal])
	assert.Equal(t, []achievement.ID{achievement.Perfect2, achievement.DailyGoal1}, achievementIDs(third.NewAchievements))

	ctx := context.Background()
	p, err := f.store.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, shared.XP(295), p.TotalXP)
	assert.Equal(t, shared.Level(2), p.CurrentLevel)
	assert.Equal(t, 3, p.QuizzesToday)

	grants, err := f.store.ListGrants(ctx, "user-1", 0)
	require.NoError(t, err)
	counts := map[progress.Reason]int{}
	var sum shared.XP
	for _, g := range grants {
		counts[g.Reason]++
		sum += g.Amount
	}
	assert.Equal(t, shared.XP(295), sum)
	assert.Equal(t, 1, counts[progress.ReasonStreakBonus])
	assert.Equal(t, 1, counts[progress.ReasonDailyGoal])
	assert.Equal(t, 3, counts[progress.ReasonAchievement])

	stats, err := f.store.GetStats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.QuizzesCompleted)
	assert.Equal(t, 2, stats.PerfectScores)
	assert.Equal(t, 1, stats.DailyGoalsMet)
}

func TestQuizCompletion_ReplaySameAttempt(t *testing.T) {
	f := newFixture(t, nil)

	first := f.complete(t, "attempt-1", 8, 10)
	f.advance(30 * time.Minute)

	replay := f.complete(t, "attempt-1", 8, 10)

	assert.Equal(t, shared.XP(0), replay.TotalXPAwarded)
	assert.Equal(t, first.NewTotalXP, replay.NewTotalXP)
	assert.Equal(t, first.NewLevel, replay.NewLevel)
	assert.False(t, replay.LeveledUp)
	assert.Empty(t, replay.NewAchievements)
	for _, item := range replay.Breakdown {
		assert.False(t, item.Applied, "%s replayed", item.Reason)
	}
	require.NotNil(t, replay.Streak)
	assert.False(t, replay.Streak.Applied)

	p, err := f.store.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.QuizzesToday)
}

func TestQuizCompletion_ReplayWithDifferentScore(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first := f.complete(t, "attempt-1", 5, 10)
	replay := f.complete(t, "attempt-1", 10, 10)

	assert.Equal(t, shared.XP(0), replay.TotalXPAwarded)
	assert.Equal(t, first.NewTotalXP, replay.NewTotalXP)

	stored := make(map[progress.Reason]shared.XP)
	for _, item := range replay.Breakdown {
		assert.False(t, item.Applied, "%s replayed", item.Reason)
		stored[item.Reason] = item.Amount
	}
	assert.Equal(t, shared.XP(10), stored[progress.ReasonQuizComplete])
	assert.Equal(t, shared.XP(25), stored[progress.ReasonScoreBonus])
	assert.NotContains(t, stored, progress.ReasonPerfectScore)

	p, err := f.store.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first.NewTotalXP, p.TotalXP)

	stats, err := f.store.GetStats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.QuizzesCompleted)
	assert.Equal(t, 0, stats.PerfectScores)
}

func TestQuizCompletion_ConcurrentDuplicateSubmissions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var (
		mu    sync.Mutex
		total shared.XP
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			res, err := f.saga.Execute(gctx, CompletionInput{
				UserID: "user-1", AttemptID: "attempt-1", Score: 10, TotalQuestions: 10,
			})
			if err != nil {
				return err
			}
			mu.Lock()
			total += res.TotalXPAwarded
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	p, err := f.store.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, shared.XP(100), p.TotalXP)
	assert.Equal(t, p.TotalXP, total, "every applied grant is reported exactly once")
}

func TestQuizCompletion_StreakBonusNextDay(t *testing.T) {
	f := newFixture(t, nil)

	f.complete(t, "attempt-1", 0, 10)
	f.advance(24 * time.Hour)
	res := f.complete(t, "attempt-2", 0, 10)

	assert.Equal(t, 2, res.Streak.NewStreak)
	assert.Equal(t, shared.XP(10), reasons(res.Breakdown)[progress.ReasonStreakBonus])

	f.advance(72 * time.Hour)
	res = f.complete(t, "attempt-3", 0, 10)
	assert.Equal(t, 1, res.Streak.NewStreak)
	assert.False(t, res.Streak.StreakMaintained)
	assert.NotContains(t, reasons(res.Breakdown), progress.ReasonStreakBonus, "a reset streak earns no bonus")
}

func TestQuizCompletion_ValidationError(t *testing.T) {
	f := newFixture(t, nil)

	tests := []CompletionInput{
		{UserID: "user-1", AttemptID: "a", Score: 11, TotalQuestions: 10},
		{UserID: "user-1", AttemptID: "a", Score: -1, TotalQuestions: 10},
		{UserID: "user-1", AttemptID: "a", Score: 0, TotalQuestions: 0},
		{UserID: "", AttemptID: "a", Score: 1, TotalQuestions: 10},
		{UserID: "user-1", AttemptID: "", Score: 1, TotalQuestions: 10},
	}

	for _, in := range tests {
		res, err := f.saga.Execute(context.Background(), in)
		assert.Nil(t, res)
		require.Error(t, err)

		var cerr *CompletionError
		require.True(t, errors.As(err, &cerr))
		assert.Equal(t, StepValidate, cerr.Step)
		assert.True(t, shared.IsValidation(err))
	}

	_, err := f.store.GetProfile(context.Background(), "user-1")
	assert.ErrorIs(t, err, shared.ErrProfileNotFound, "nothing was written")
}

func TestQuizCompletion_FeaturesDisabled(t *testing.T) {
	f := newFixture(t, gate{})

	res := f.complete(t, "attempt-1", 10, 10)

	assert.Equal(t, shared.XP(85), res.TotalXPAwarded)
	assert.NotContains(t, reasons(res.Breakdown), progress.ReasonStreakBonus)
	assert.Empty(t, res.NewAchievements)
	assert.Equal(t, 1, res.Streak.NewStreak, "the streak is still tracked")
}

type failingStore struct {
	*memory.Store
	failStreak bool
}

var errStoreDown = errors.New("store down")

func (s *failingStore) UpsertStreak(ctx context.Context, userID, attemptID string, day time.Time, tr progress.ActivityTransition) (progress.ActivityOutcome, bool, error) {
	if s.failStreak {
		return progress.ActivityOutcome{}, false, errStoreDown
	}
	return s.Store.UpsertStreak(ctx, userID, attemptID, day, tr)
}

func (s *failingStore) WithinTx(ctx context.Context, fn func(tx progress.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx progress.Store) error {
		return fn(&failingStore{Store: tx.(*memory.Store), failStreak: s.failStreak})
	})
}

func TestQuizCompletion_PartialFailureKeepsEarlierSteps(t *testing.T) {
	clock := timeutil.ClockFunc(func() time.Time { return time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC) })
	store := &failingStore{Store: memory.NewStore(clock), failStreak: true}
	ledger := command.NewXPLedger(store, clock, command.Options{})
	streaks := command.NewStreakTracker(store, clock, command.Options{})
	s := NewQuizCompletionSaga(ledger, streaks, nil, store, nil, nil, clock, nil)

	res, err := s.Execute(context.Background(), CompletionInput{
		UserID: "user-1", AttemptID: "attempt-1", Score: 10, TotalQuestions: 10,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errStoreDown)
	var cerr *CompletionError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, StepStreak, cerr.Step)

	require.NotNil(t, res)
	assert.Equal(t, shared.XP(85), res.TotalXPAwarded)

	p, err := store.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, shared.XP(85), p.TotalXP, "base XP stays granted")

	// Once the store recovers, a retry of the same attempt completes without
	// paying the base XP twice.
	store.failStreak = false
	res, err = s.Execute(context.Background(), CompletionInput{
		UserID: "user-1", AttemptID: "attempt-1", Score: 10, TotalQuestions: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, shared.XP(5), res.TotalXPAwarded)
	assert.Equal(t, shared.XP(90), res.NewTotalXP)
}

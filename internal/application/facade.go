// Package application wires the gamification commands, queries and the quiz
// completion saga behind one entry point for the rest of the platform.
package application

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/learnloop/learnloop-hub/internal/application/command"
	"github.com/learnloop/learnloop-hub/internal/application/query"
	"github.com/learnloop/learnloop-hub/internal/application/saga"
	"github.com/learnloop/learnloop-hub/internal/domain/achievement"
	"github.com/learnloop/learnloop-hub/internal/domain/leaderboard"
	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/pkg/logger"
	"github.com/learnloop/learnloop-hub/pkg/retry"
	"github.com/learnloop/learnloop-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Settings are the tunables of the engine.
type Settings struct {
	DefaultDailyGoal   int
	WeekStart          time.Weekday
	LeaderboardDefault int
	LeaderboardMax     int
}

// Dependencies holds everything the facade needs. Store, Leaderboard and
// Roster are required; the rest have working defaults.
type Dependencies struct {
	Store       progress.Store
	Leaderboard leaderboard.WindowReader
	Roster      leaderboard.ClassRoster

	Clock     timeutil.Clock
	Logger    *logger.Logger
	Validator *validator.Validate
	Features  saga.FeatureGate
	Retrier   *retry.Retrier
	Catalog   []achievement.Definition

	Settings Settings
}

// GamificationFacade is the public surface of the engine.
type GamificationFacade struct {
	ledger      *command.XPLedger
	streaks     *command.StreakTracker
	unlocker    *command.AchievementUnlocker
	dailyGoal   *command.SetDailyGoalHandler
	completion  *saga.QuizCompletionSaga
	stats       *query.GetStatsHandler
	achieve     *query.GetAchievementsHandler
	leaderboard *query.GetLeaderboardHandler
	history     *query.GetXPHistoryHandler
}

// NewGamificationFacade builds the facade from deps.
func NewGamificationFacade(deps Dependencies) *GamificationFacade {
	if deps.Clock == nil {
		deps.Clock = timeutil.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Roster == nil {
		deps.Roster = emptyRoster{}
	}

	evaluator := achievement.NewEvaluator()
	if len(deps.Catalog) > 0 {
		evaluator = achievement.NewEvaluatorWithCatalog(deps.Catalog)
	}

	opts := command.Options{
		DefaultDailyGoal: deps.Settings.DefaultDailyGoal,
		Retrier:          deps.Retrier,
		Logger:           deps.Logger,
	}

	ledger := command.NewXPLedger(deps.Store, deps.Clock, opts)
	streaks := command.NewStreakTracker(deps.Store, deps.Clock, opts)
	unlocker := command.NewAchievementUnlocker(deps.Store, ledger, evaluator, deps.Clock, deps.Logger)

	return &GamificationFacade{
		ledger:    ledger,
		streaks:   streaks,
		unlocker:  unlocker,
		dailyGoal: command.NewSetDailyGoalHandler(deps.Store, deps.Validator, opts),
		completion: saga.NewQuizCompletionSaga(
			ledger, streaks, unlocker, deps.Store,
			deps.Validator, deps.Features, deps.Clock, deps.Logger,
		),
		stats:   query.NewGetStatsHandler(deps.Store, deps.Clock, deps.Settings.DefaultDailyGoal),
		achieve: query.NewGetAchievementsHandler(deps.Store, evaluator),
		leaderboard: query.NewGetLeaderboardHandler(
			deps.Leaderboard, deps.Roster, deps.Clock,
			query.LeaderboardConfig{
				DefaultLimit: deps.Settings.LeaderboardDefault,
				MaxLimit:     deps.Settings.LeaderboardMax,
				WeekStart:    deps.Settings.WeekStart,
			},
			deps.Logger,
		),
		history: query.NewGetXPHistoryHandler(deps.Store),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// ProcessQuizCompletion runs the full completion flow for a scored attempt.
func (f *GamificationFacade) ProcessQuizCompletion(ctx context.Context, in saga.CompletionInput) (*saga.CompletionResult, error) {
	return f.completion.Execute(ctx, in)
}

// AwardXP credits XP directly. sourceRef makes the grant idempotent.
func (f *GamificationFacade) AwardXP(
	ctx context.Context,
	userID string,
	amount shared.XP,
	reason progress.Reason,
	sourceRef *string,
) (*progress.AwardResult, error) {
	return f.ledger.AwardXP(ctx, userID, amount, reason, sourceRef)
}

// RecordCompletion updates the streak and daily counter without awarding XP.
func (f *GamificationFacade) RecordCompletion(ctx context.Context, userID, attemptID string) (*command.StreakUpdate, error) {
	return f.streaks.RecordCompletion(ctx, userID, attemptID)
}

// CheckAchievements runs an unlock pass outside a quiz completion.
func (f *GamificationFacade) CheckAchievements(ctx context.Context, userID string) (*command.UnlockResult, error) {
	return f.unlocker.RunUnlockPass(ctx, userID)
}

// SetDailyGoal changes the user's daily quiz goal.
func (f *GamificationFacade) SetDailyGoal(ctx context.Context, userID string, goal int) error {
	return f.dailyGoal.Handle(ctx, command.SetDailyGoalCommand{UserID: userID, Goal: goal})
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// GetStats returns the user's current totals.
func (f *GamificationFacade) GetStats(ctx context.Context, userID string) (*query.StatsView, error) {
	return f.stats.Handle(ctx, userID)
}

// GetUserAchievements returns earned and available achievements with progress.
func (f *GamificationFacade) GetUserAchievements(ctx context.Context, userID string) (*query.AchievementsView, error) {
	return f.achieve.Handle(ctx, userID)
}

// GetLeaderboard returns the global board for the current period.
func (f *GamificationFacade) GetLeaderboard(
	ctx context.Context,
	t leaderboard.PeriodType,
	userID string,
	limit int,
) (*leaderboard.Board, error) {
	return f.leaderboard.GetLeaderboard(ctx, t, userID, limit)
}

// GetClassLeaderboard returns the board of one class for the current period.
func (f *GamificationFacade) GetClassLeaderboard(
	ctx context.Context,
	classID string,
	t leaderboard.PeriodType,
	limit int,
) (*leaderboard.Board, error) {
	return f.leaderboard.GetClassLeaderboard(ctx, classID, t, limit)
}

// GetLeaderboardPeriodInfo returns the bounds of the current period.
func (f *GamificationFacade) GetLeaderboardPeriodInfo(t leaderboard.PeriodType) (*leaderboard.PeriodInfo, error) {
	return f.leaderboard.PeriodInfo(t)
}

// GetXPHistory lists the user's most recent grants.
func (f *GamificationFacade) GetXPHistory(ctx context.Context, userID string, limit int) ([]progress.Grant, error) {
	return f.history.Handle(ctx, userID, limit)
}

type emptyRoster struct{}

func (emptyRoster) StudentIDs(context.Context, string) ([]string, error) { return nil, nil }

package command

import (
	"context"
	"fmt"
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/pkg/logger"
	"github.com/learnloop/learnloop-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD COMPLETION COMMAND
// Counts a quiz completion towards the daily counter and the streak.
// "Today" always comes from the server clock.
// ══════════════════════════════════════════════════════════════════════════════

// StreakUpdate is the outcome of recording a completion.
type StreakUpdate struct {
	NewStreak        int       `json:"new_streak"`
	LongestStreak    int       `json:"longest_streak"`
	StreakMaintained bool      `json:"streak_maintained"`
	FirstToday       bool      `json:"first_today"`
	QuizzesToday     int       `json:"quizzes_today"`
	DailyGoal        int       `json:"daily_goal"`
	Day              time.Time `json:"day"`

	// Applied is false when the attempt had already been recorded.
	Applied bool `json:"applied"`
}

// GoalReached reports whether the daily goal is met on Day.
func (u StreakUpdate) GoalReached() bool {
	return u.DailyGoal > 0 && u.QuizzesToday >= u.DailyGoal
}

// StreakTracker handles quiz completion bookkeeping.
type StreakTracker struct {
	store progress.Store
	clock timeutil.Clock
	opts  Options
	log   *logger.Logger
}

// NewStreakTracker creates a new StreakTracker.
func NewStreakTracker(store progress.Store, clock timeutil.Clock, opts Options) *StreakTracker {
	opts = opts.withDefaults()
	return &StreakTracker{
		store: store,
		clock: clock,
		opts:  opts,
		log:   opts.Logger.With(logger.Component("streak_tracker")),
	}
}

// RecordCompletion records attemptID for userID. Recording the same attempt
// again returns the stored outcome with Applied=false.
func (t *StreakTracker) RecordCompletion(ctx context.Context, userID, attemptID string) (*StreakUpdate, error) {
	if !shared.ValidateID(userID) {
		return nil, fmt.Errorf("record_completion: %w", shared.ErrEmptyUserID)
	}
	if !shared.ValidateID(attemptID) {
		return nil, fmt.Errorf("record_completion: %w", shared.ErrEmptyAttemptID)
	}

	today := t.clock.Now()

	var (
		outcome progress.ActivityOutcome
		applied bool
	)
	err := t.opts.Retrier.Do(ctx, func(ctx context.Context) error {
		return t.store.WithinTx(ctx, func(tx progress.Store) error {
			if _, err := tx.EnsureProfile(ctx, userID, t.opts.DefaultDailyGoal); err != nil {
				return fmt.Errorf("ensure profile: %w", err)
			}
			var err error
			outcome, applied, err = tx.UpsertStreak(ctx, userID, attemptID, today, progress.RecordDailyActivity)
			if err != nil {
				return fmt.Errorf("upsert streak: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		t.log.Error("record completion failed",
			logger.UserID(userID),
			logger.AttemptID(attemptID),
			logger.Err(err),
		)
		return nil, fmt.Errorf("record_completion: %w", err)
	}

	if applied && !outcome.Streak.Maintained {
		t.log.Debug("streak reset",
			logger.UserID(userID),
			logger.Int("streak", outcome.Streak.NewStreak),
		)
	}

	return &StreakUpdate{
		NewStreak:        outcome.Streak.NewStreak,
		LongestStreak:    outcome.Streak.LongestStreak,
		StreakMaintained: outcome.Streak.Maintained,
		FirstToday:       outcome.Streak.FirstToday,
		QuizzesToday:     outcome.QuizzesToday,
		DailyGoal:        outcome.DailyGoal,
		Day:              outcome.Day,
		Applied:          applied,
	}, nil
}

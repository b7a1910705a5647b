// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STATS QUERY
// Strongly consistent profile read; never served from cache.
// ══════════════════════════════════════════════════════════════════════════════

// StatsView is the user's gamification summary.
type StatsView struct {
	UserID        string                 `json:"user_id"`
	TotalXP       shared.XP              `json:"total_xp"`
	CurrentLevel  shared.Level           `json:"current_level"`
	LevelTitle    string                 `json:"level_title"`
	CurrentStreak int                    `json:"current_streak"`
	LongestStreak int                    `json:"longest_streak"`
	QuizzesToday  int                    `json:"quizzes_today"`
	DailyGoal     int                    `json:"daily_goal"`
	LevelProgress progress.LevelProgress `json:"level_progress"`
}

// GetStatsHandler handles stats reads.
type GetStatsHandler struct {
	store            progress.Store
	clock            timeutil.Clock
	defaultDailyGoal int
}

// NewGetStatsHandler creates a new GetStatsHandler.
func NewGetStatsHandler(store progress.Store, clock timeutil.Clock, defaultDailyGoal int) *GetStatsHandler {
	if progress.ValidateDailyGoal(defaultDailyGoal) != nil {
		defaultDailyGoal = progress.DefaultDailyGoal
	}
	return &GetStatsHandler{store: store, clock: clock, defaultDailyGoal: defaultDailyGoal}
}

// Handle returns the stats for userID. A user without a profile gets the
// zero view rather than an error.
func (h *GetStatsHandler) Handle(ctx context.Context, userID string) (*StatsView, error) {
	if !shared.ValidateID(userID) {
		return nil, fmt.Errorf("get_stats: %w", shared.ErrEmptyUserID)
	}

	p, err := h.store.GetProfile(ctx, userID)
	if errors.Is(err, shared.ErrProfileNotFound) {
		p = progress.NewProfile(userID, h.defaultDailyGoal, h.clock.Now())
	} else if err != nil {
		return nil, fmt.Errorf("get_stats: %w", err)
	}

	today := h.clock.Now()
	streak := p.CurrentStreak
	if p.LastActivityDate == nil || timeutil.DaysBetween(*p.LastActivityDate, today) > 1 {
		// The stored streak is only alive while yesterday or today is active.
		streak = 0
	}

	return &StatsView{
		UserID:        p.UserID,
		TotalXP:       p.TotalXP,
		CurrentLevel:  p.CurrentLevel,
		LevelTitle:    p.CurrentLevel.Title(),
		CurrentStreak: streak,
		LongestStreak: p.LongestStreak,
		QuizzesToday:  p.QuizzesOn(today),
		DailyGoal:     p.DailyGoal,
		LevelProgress: progress.ProgressFor(p.TotalXP),
	}, nil
}

package progress

import (
	"time"

	"github.com/learnloop/learnloop-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK STATE MACHINE
// Days are UTC calendar days taken from the server clock.
// ══════════════════════════════════════════════════════════════════════════════

// StreakState is the persisted streak state of one user.
type StreakState struct {
	CurrentStreak    int
	LongestStreak    int
	LastActivityDate *time.Time
}

// StreakResult describes one transition.
type StreakResult struct {
	NewStreak     int  `json:"new_streak"`
	LongestStreak int  `json:"longest_streak"`
	Maintained    bool `json:"streak_maintained"`
	FirstToday    bool `json:"first_today"`
}

// NextStreak applies an activity on day today to state.
//
//   - same day: no change, FirstToday=false
//   - previous day: streak continues
//   - no previous activity: streak starts at 1
//   - gap of two or more days: streak resets to 1, Maintained=false
func NextStreak(state StreakState, today time.Time) (StreakState, StreakResult) {
	today = timeutil.StartOfDay(today)
	next := state

	if state.LastActivityDate == nil {
		next.CurrentStreak = 1
		next.LastActivityDate = &today
		return finishStreak(next, true, true)
	}

	switch diff := timeutil.DaysBetween(*state.LastActivityDate, today); {
	case diff <= 0:
		// Already counted today. A stored date ahead of the clock is treated
		// the same way so a skewed row never shortens a streak.
		return finishStreak(next, true, false)
	case diff == 1:
		next.CurrentStreak = state.CurrentStreak + 1
		next.LastActivityDate = &today
		return finishStreak(next, true, true)
	default:
		next.CurrentStreak = 1
		next.LastActivityDate = &today
		return finishStreak(next, false, true)
	}
}

func finishStreak(s StreakState, maintained, firstToday bool) (StreakState, StreakResult) {
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	return s, StreakResult{
		NewStreak:     s.CurrentStreak,
		LongestStreak: s.LongestStreak,
		Maintained:    maintained,
		FirstToday:    firstToday,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY ACTIVITY
// ══════════════════════════════════════════════════════════════════════════════

// ActivityState is the part of a profile touched by a quiz completion.
type ActivityState struct {
	StreakState
	QuizzesToday int
	DailyGoal    int
}

// ActivityOutcome is the snapshot produced by one completion. It is stored
// per attempt so replays return it unchanged.
type ActivityOutcome struct {
	Streak       StreakResult `json:"streak"`
	Day          time.Time    `json:"day"`
	QuizzesToday int          `json:"quizzes_today"`
	DailyGoal    int          `json:"daily_goal"`
}

// GoalReached reports whether the daily goal has been met on Day.
func (o ActivityOutcome) GoalReached() bool {
	return o.DailyGoal > 0 && o.QuizzesToday >= o.DailyGoal
}

// RecordDailyActivity counts one completion on day today: the per-day quiz
// counter restarts on a new day and the streak machine runs.
func RecordDailyActivity(state ActivityState, today time.Time) (ActivityState, ActivityOutcome) {
	today = timeutil.StartOfDay(today)

	quizzes := 1
	if state.LastActivityDate != nil && timeutil.IsSameDay(*state.LastActivityDate, today) {
		quizzes = state.QuizzesToday + 1
	}

	streak, result := NextStreak(state.StreakState, today)

	next := ActivityState{
		StreakState:  streak,
		QuizzesToday: quizzes,
		DailyGoal:    state.DailyGoal,
	}
	return next, ActivityOutcome{
		Streak:       result,
		Day:          today,
		QuizzesToday: quizzes,
		DailyGoal:    state.DailyGoal,
	}
}

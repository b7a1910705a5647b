// Package achievement defines the static achievement catalog and evaluates
// unlock predicates against canonical progress stats.
package achievement

import (
	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// ID is a stable achievement identifier. It is also the source ref of the
// achievement's XP grant.
type ID string

const (
	FirstQuiz  ID = "first_quiz"
	Quizzes10  ID = "quizzes_10"
	Quizzes50  ID = "quizzes_50"
	Perfect2   ID = "perfect_2"
	Perfect10  ID = "perfect_10"
	Streak3    ID = "streak_3"
	Streak7    ID = "streak_7"
	Streak30   ID = "streak_30"
	DailyGoal1 ID = "daily_goal_1"
	DailyGoal7 ID = "daily_goal_7"
	Level5     ID = "level_5"
	Level10    ID = "level_10"
	XP1000     ID = "xp_1000"
)

// Metric names the canonical stat a predicate reads.
type Metric string

const (
	MetricQuizzesCompleted Metric = "quizzes_completed"
	MetricPerfectScores    Metric = "perfect_scores"
	MetricLongestStreak    Metric = "longest_streak"
	MetricDailyGoalsMet    Metric = "daily_goals_met"
	MetricLevel            Metric = "level"
	MetricTotalXP          Metric = "total_xp"
)

// Value reads the metric from stats.
func (m Metric) Value(s progress.Stats) int64 {
	switch m {
	case MetricQuizzesCompleted:
		return int64(s.QuizzesCompleted)
	case MetricPerfectScores:
		return int64(s.PerfectScores)
	case MetricLongestStreak:
		return int64(s.LongestStreak)
	case MetricDailyGoalsMet:
		return int64(s.DailyGoalsMet)
	case MetricLevel:
		return int64(s.Level)
	case MetricTotalXP:
		return int64(s.TotalXP)
	default:
		return 0
	}
}

// Definition describes one achievement. Its predicate is
// Metric.Value(stats) >= Threshold.
type Definition struct {
	ID          ID        `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	XPReward    shared.XP `json:"xp_reward"`
	Metric      Metric    `json:"metric"`
	Threshold   int64     `json:"threshold"`
}

// IsMet evaluates the unlock predicate.
func (d Definition) IsMet(s progress.Stats) bool {
	return d.Metric.Value(s) >= d.Threshold
}

var catalog = []Definition{
	{FirstQuiz, "First Steps", "Complete your first quiz", "🎯", 10, MetricQuizzesCompleted, 1},
	{Quizzes10, "Quiz Regular", "Complete 10 quizzes", "📘", 50, MetricQuizzesCompleted, 10},
	{Quizzes50, "Quiz Veteran", "Complete 50 quizzes", "📚", 200, MetricQuizzesCompleted, 50},
	{Perfect2, "Sharpshooter", "Get 2 perfect scores", "💯", 25, MetricPerfectScores, 2},
	{Perfect10, "Flawless", "Get 10 perfect scores", "🏅", 100, MetricPerfectScores, 10},
	{Streak3, "On a Roll", "Keep a 3 day streak", "🔥", 30, MetricLongestStreak, 3},
	{Streak7, "Week of Fire", "Keep a 7 day streak", "🔥", 75, MetricLongestStreak, 7},
	{Streak30, "Iron Will", "Keep a 30 day streak", "💪", 300, MetricLongestStreak, 30},
	{DailyGoal1, "Goal Getter", "Meet your daily goal", "✅", 20, MetricDailyGoalsMet, 1},
	{DailyGoal7, "Consistent", "Meet your daily goal 7 times", "📅", 100, MetricDailyGoalsMet, 7},
	{Level5, "Apprentice", "Reach level 5", "⭐", 50, MetricLevel, 5},
	{Level10, "Adept", "Reach level 10", "🌟", 150, MetricLevel, 10},
	{XP1000, "Thousand Club", "Earn 1000 XP", "💎", 100, MetricTotalXP, 1000},
}

// Catalog returns the achievement definitions in display order.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a definition by id.
func Lookup(id ID) (Definition, error) {
	for _, def := range catalog {
		if def.ID == id {
			return def, nil
		}
	}
	return Definition{}, shared.ErrAchievementNotFound
}

package progress

import (
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/pkg/timeutil"
)

// Daily goal bounds (quizzes per day).
const (
	MinDailyGoal     = 1
	MaxDailyGoal     = 20
	DefaultDailyGoal = 3
)

// ValidateDailyGoal checks that goal is within bounds.
func ValidateDailyGoal(goal int) error {
	if goal < MinDailyGoal || goal > MaxDailyGoal {
		return shared.ErrInvalidDailyGoal
	}
	return nil
}

// Profile is the 1:1 gamification state of a user. It is created lazily on
// the first gamification touch. CurrentLevel always equals LevelFor(TotalXP).
type Profile struct {
	UserID           string
	TotalXP          shared.XP
	CurrentLevel     shared.Level
	CurrentStreak    int
	LongestStreak    int
	LastActivityDate *time.Time
	QuizzesToday     int
	DailyGoal        int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewProfile creates an empty profile.
func NewProfile(userID string, dailyGoal int, now time.Time) *Profile {
	if ValidateDailyGoal(dailyGoal) != nil {
		dailyGoal = DefaultDailyGoal
	}
	return &Profile{
		UserID:       userID,
		CurrentLevel: shared.MinLevel,
		DailyGoal:    dailyGoal,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
}

// QuizzesOn returns the completion count for day. The stored counter only
// applies to the day of the last activity.
func (p *Profile) QuizzesOn(day time.Time) int {
	if p.LastActivityDate == nil || !timeutil.IsSameDay(*p.LastActivityDate, day) {
		return 0
	}
	return p.QuizzesToday
}

// ActivityState extracts the state RecordDailyActivity operates on.
func (p *Profile) ActivityState() ActivityState {
	return ActivityState{
		StreakState: StreakState{
			CurrentStreak:    p.CurrentStreak,
			LongestStreak:    p.LongestStreak,
			LastActivityDate: p.LastActivityDate,
		},
		QuizzesToday: p.QuizzesToday,
		DailyGoal:    p.DailyGoal,
	}
}

// ApplyActivity writes an ActivityState back into the profile.
func (p *Profile) ApplyActivity(s ActivityState, now time.Time) {
	p.CurrentStreak = s.CurrentStreak
	p.LongestStreak = s.LongestStreak
	p.LastActivityDate = s.LastActivityDate
	p.QuizzesToday = s.QuizzesToday
	p.UpdatedAt = now.UTC()
}

// Stats are the canonical aggregates both achievement progress and unlocking
// are computed from.
type Stats struct {
	UserID           string       `json:"user_id"`
	TotalXP          shared.XP    `json:"total_xp"`
	Level            shared.Level `json:"level"`
	CurrentStreak    int          `json:"current_streak"`
	LongestStreak    int          `json:"longest_streak"`
	QuizzesCompleted int          `json:"quizzes_completed"`
	PerfectScores    int          `json:"perfect_scores"`
	DailyGoalsMet    int          `json:"daily_goals_met"`
}

// EarnedAchievement is a UserAchievement row: unique per (UserID, AchievementID).
type EarnedAchievement struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	EarnedAt      time.Time `json:"earned_at"`
}

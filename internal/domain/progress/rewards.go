package progress

import (
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// XP magnitudes for quiz-driven grants.
const (
	QuizCompleteXP    shared.XP = 10
	ScoreBonusMaxXP   shared.XP = 50
	PerfectScoreXP    shared.XP = 25
	StreakBonusPerDay shared.XP = 5
	StreakBonusCapXP  shared.XP = 50
	DailyGoalXP       shared.XP = 30
)

// Reward is one component of a quiz completion payout.
type Reward struct {
	Reason Reason
	Amount shared.XP
}

// QuizRewardReasons lists the base components of an attempt in award order.
// They share the attempt id as source ref and are credited together.
func QuizRewardReasons() []Reason {
	return []Reason{ReasonQuizComplete, ReasonScoreBonus, ReasonPerfectScore}
}

// QuizRewards returns the base XP components for a scored quiz, in award
// order. Zero-amount components are omitted.
func QuizRewards(score, total int) []Reward {
	rewards := []Reward{{Reason: ReasonQuizComplete, Amount: QuizCompleteXP}}
	if total <= 0 || score < 0 {
		return rewards
	}
	if score > total {
		score = total
	}

	if bonus := shared.XP(int64(score) * int64(ScoreBonusMaxXP) / int64(total)); bonus > 0 {
		rewards = append(rewards, Reward{Reason: ReasonScoreBonus, Amount: bonus})
	}
	if score == total {
		rewards = append(rewards, Reward{Reason: ReasonPerfectScore, Amount: PerfectScoreXP})
	}
	return rewards
}

// StreakBonus returns the bonus for the first completion of a day at the given
// streak length.
func StreakBonus(streak int) shared.XP {
	if streak <= 0 {
		return 0
	}
	bonus := StreakBonusPerDay * shared.XP(streak)
	if bonus > StreakBonusCapXP {
		return StreakBonusCapXP
	}
	return bonus
}

package achievement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnloop/learnloop-hub/internal/domain/progress"
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

func ids(defs []Definition) []ID {
	out := make([]ID, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.ID)
	}
	return out
}

func TestCatalog(t *testing.T) {
	defs := Catalog()
	require.Len(t, defs, 13)

	seen := make(map[ID]bool)
	for _, d := range defs {
		assert.False(t, seen[d.ID], "duplicate id %s", d.ID)
		seen[d.ID] = true
		assert.Positive(t, int64(d.XPReward))
		assert.Positive(t, d.Threshold)
	}

	// Mutating the copy leaves the catalog intact.
	defs[0].XPReward = 0
	def, err := Lookup(FirstQuiz)
	require.NoError(t, err)
	assert.Equal(t, shared.XP(10), def.XPReward)

	_, err = Lookup("nope")
	assert.ErrorIs(t, err, shared.ErrAchievementNotFound)
	assert.True(t, shared.IsNotFound(err))
}

func TestEvaluator_Unlockable(t *testing.T) {
	e := NewEvaluator()

	stats := progress.Stats{
		QuizzesCompleted: 3,
		PerfectScores:    2,
		DailyGoalsMet:    1,
		LongestStreak:    1,
		Level:            2,
		TotalXP:          250,
	}

	got := e.Unlockable(stats, nil)
	assert.Equal(t, []ID{FirstQuiz, Perfect2, DailyGoal1}, ids(got))

	earned := []progress.EarnedAchievement{{UserID: "u", AchievementID: string(FirstQuiz)}}
	got = e.Unlockable(stats, earned)
	assert.Equal(t, []ID{Perfect2, DailyGoal1}, ids(got))
}

func TestEvaluator_Progress(t *testing.T) {
	e := NewEvaluator()

	progressList := e.Progress(progress.Stats{QuizzesCompleted: 12, TotalXP: 400, Level: 3})
	require.Len(t, progressList, len(Catalog()))

	byID := make(map[ID]Progress)
	for _, p := range progressList {
		byID[p.AchievementID] = p
	}

	assert.Equal(t, int64(1), byID[FirstQuiz].Current, "capped at the threshold")
	assert.True(t, byID[FirstQuiz].Complete())
	assert.Equal(t, int64(10), byID[Quizzes10].Current)
	assert.Equal(t, int64(12), byID[Quizzes50].Current)
	assert.False(t, byID[Quizzes50].Complete())
	assert.Equal(t, int64(400), byID[XP1000].Current)
	assert.Equal(t, int64(3), byID[Level5].Current)
}

func TestEvaluator_Split(t *testing.T) {
	e := NewEvaluatorWithCatalog([]Definition{
		{ID: "a", XPReward: 1, Metric: MetricQuizzesCompleted, Threshold: 1},
		{ID: "b", XPReward: 1, Metric: MetricQuizzesCompleted, Threshold: 2},
	})

	earned, available := e.Split([]progress.EarnedAchievement{{AchievementID: "b"}})
	assert.Equal(t, []ID{"b"}, ids(earned))
	assert.Equal(t, []ID{"a"}, ids(available))
}

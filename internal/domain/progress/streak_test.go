package progress

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnloop/learnloop-hub/pkg/timeutil"
)

func dayPtr(t time.Time) *time.Time {
	return &t
}

func TestNextStreak(t *testing.T) {
	today := time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name           string
		state          StreakState
		wantStreak     int
		wantLongest    int
		wantMaintained bool
		wantFirstToday bool
	}{
		{
			name:           "first activity ever",
			state:          StreakState{},
			wantStreak:     1,
			wantLongest:    1,
			wantMaintained: true,
			wantFirstToday: true,
		},
		{
			name:           "same day",
			state:          StreakState{CurrentStreak: 4, LongestStreak: 6, LastActivityDate: dayPtr(timeutil.Date(2026, 10, 14))},
			wantStreak:     4,
			wantLongest:    6,
			wantMaintained: true,
			wantFirstToday: false,
		},
		{
			name:           "consecutive day",
			state:          StreakState{CurrentStreak: 4, LongestStreak: 4, LastActivityDate: dayPtr(timeutil.Date(2026, 10, 13))},
			wantStreak:     5,
			wantLongest:    5,
			wantMaintained: true,
			wantFirstToday: true,
		},
		{
			name:           "gap resets",
			state:          StreakState{CurrentStreak: 9, LongestStreak: 9, LastActivityDate: dayPtr(timeutil.Date(2026, 10, 11))},
			wantStreak:     1,
			wantLongest:    9,
			wantMaintained: false,
			wantFirstToday: true,
		},
		{
			name:           "stored date ahead of clock",
			state:          StreakState{CurrentStreak: 2, LongestStreak: 3, LastActivityDate: dayPtr(timeutil.Date(2026, 10, 15))},
			wantStreak:     2,
			wantLongest:    3,
			wantMaintained: true,
			wantFirstToday: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, res := NextStreak(tt.state, today)

			assert.Equal(t, tt.wantStreak, res.NewStreak)
			assert.Equal(t, tt.wantLongest, res.LongestStreak)
			assert.Equal(t, tt.wantMaintained, res.Maintained)
			assert.Equal(t, tt.wantFirstToday, res.FirstToday)
			assert.Equal(t, tt.wantStreak, next.CurrentStreak)
			assert.Equal(t, tt.wantLongest, next.LongestStreak)
			require.NotNil(t, next.LastActivityDate)
		})
	}
}

func TestNextStreak_NormalizesToUTCDay(t *testing.T) {
	almaty := time.FixedZone("ALMT", 5*3600)
	// 02:00 local on the 15th is still the 14th in UTC.
	local := time.Date(2026, 10, 15, 2, 0, 0, 0, almaty)

	next, _ := NextStreak(StreakState{}, local)

	require.NotNil(t, next.LastActivityDate)
	assert.Equal(t, timeutil.Date(2026, 10, 14), *next.LastActivityDate)
}

func TestRecordDailyActivity(t *testing.T) {
	day1 := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	state := ActivityState{DailyGoal: 2}

	state, out := RecordDailyActivity(state, day1)
	assert.Equal(t, 1, out.QuizzesToday)
	assert.False(t, out.GoalReached())
	assert.True(t, out.Streak.FirstToday)

	state, out = RecordDailyActivity(state, day1.Add(3*time.Hour))
	assert.Equal(t, 2, out.QuizzesToday)
	assert.True(t, out.GoalReached())
	assert.False(t, out.Streak.FirstToday)
	assert.Equal(t, timeutil.Date(2026, 10, 14), out.Day)

	state, out = RecordDailyActivity(state, day2)
	assert.Equal(t, 1, out.QuizzesToday, "counter restarts on a new day")
	assert.Equal(t, 2, out.Streak.NewStreak)
	assert.Equal(t, 2, state.CurrentStreak)
}

func TestStreakProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	start := timeutil.Date(2026, 1, 1)

	properties.Property("longest streak never below current", prop.ForAll(
		func(gaps []int) bool {
			var s StreakState
			day := start
			for _, g := range gaps {
				day = day.AddDate(0, 0, g)
				s, _ = NextStreak(s, day)
				if s.LongestStreak < s.CurrentStreak || s.CurrentStreak < 1 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 3)),
	))

	properties.Property("daily activity for n consecutive days yields streak n", prop.ForAll(
		func(n int) bool {
			var s StreakState
			for i := 0; i < n; i++ {
				s, _ = NextStreak(s, start.AddDate(0, 0, i))
			}
			return s.CurrentStreak == n && s.LongestStreak == n
		},
		gen.IntRange(1, 60),
	))

	properties.Property("repeating a day is a no-op", prop.ForAll(
		func(streak, hour int) bool {
			s := StreakState{CurrentStreak: streak, LongestStreak: streak, LastActivityDate: dayPtr(start)}
			next, res := NextStreak(s, start.Add(time.Duration(hour)*time.Hour))
			return next.CurrentStreak == streak && !res.FirstToday && res.Maintained
		},
		gen.IntRange(1, 100),
		gen.IntRange(0, 23),
	))

	properties.TestingRun(t)
}

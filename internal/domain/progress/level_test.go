package progress

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

func TestXPForLevel(t *testing.T) {
	tests := []struct {
		level shared.Level
		want  shared.XP
	}{
		{0, 0},
		{1, 0},
		{2, 100},
		{3, 300},
		{4, 600},
		{5, 1000},
		{10, 4500},
		{100, 495000},
		{150, 495000},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, XPForLevel(tt.level), "level %d", tt.level)
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		xp   shared.XP
		want shared.Level
	}{
		{-10, 1},
		{0, 1},
		{99, 1},
		{100, 2},
		{299, 2},
		{300, 3},
		{999, 4},
		{1000, 5},
		{495000, 100},
		{10_000_000, 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.xp), "xp %d", tt.xp)
	}
}

func TestProgressFor(t *testing.T) {
	p := ProgressFor(150)
	assert.Equal(t, shared.Level(2), p.Level)
	assert.Equal(t, shared.XP(50), p.XPIntoLevel)
	assert.Equal(t, shared.XP(150), p.XPForNextLevel)
	assert.Equal(t, 25, p.Percent)

	top := ProgressFor(600000)
	assert.Equal(t, shared.MaxLevel, top.Level)
	assert.Equal(t, 100, top.Percent)
	assert.Equal(t, shared.XP(0), top.XPForNextLevel)

	assert.Equal(t, shared.MinLevel, ProgressFor(-5).Level)
}

func TestLevelCurveProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("LevelFor is monotonic non-decreasing", prop.ForAll(
		func(a, b int64) bool {
			if a > b {
				a, b = b, a
			}
			return LevelFor(shared.XP(a)) <= LevelFor(shared.XP(b))
		},
		gen.Int64Range(0, 1_000_000),
		gen.Int64Range(0, 1_000_000),
	))

	properties.Property("LevelFor inverts XPForLevel", prop.ForAll(
		func(level int) bool {
			l := shared.Level(level)
			return LevelFor(XPForLevel(l)) == l
		},
		gen.IntRange(1, 100),
	))

	properties.Property("one XP short of a level stays below it", prop.ForAll(
		func(level int) bool {
			l := shared.Level(level)
			return LevelFor(XPForLevel(l)-1) == l-1
		},
		gen.IntRange(2, 100),
	))

	properties.Property("level is always within bounds", prop.ForAll(
		func(xp int64) bool {
			return LevelFor(shared.XP(xp)).IsValid()
		},
		gen.Int64Range(-1000, 100_000_000),
	))

	properties.TestingRun(t)
}

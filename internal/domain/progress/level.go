// Package progress contains the per-user gamification state: the XP ledger
// model, the level curve, the daily streak state machine and the storage port.
package progress

import (
	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL CURVE
// Reaching level n requires 50·n·(n−1) total XP: each level costs 100 XP more
// than the previous one (100, 200, 300 ...). Levels are capped at MaxLevel.
// ══════════════════════════════════════════════════════════════════════════════

const xpStep = 50

// XPForLevel returns the total XP required to reach level.
func XPForLevel(level shared.Level) shared.XP {
	if level <= shared.MinLevel {
		return 0
	}
	if level > shared.MaxLevel {
		level = shared.MaxLevel
	}
	n := int64(level)
	return shared.XP(xpStep * n * (n - 1))
}

// LevelFor returns the level for a total XP balance. It is a monotonic
// non-decreasing step function with no I/O.
func LevelFor(total shared.XP) shared.Level {
	if total <= 0 {
		return shared.MinLevel
	}

	lo, hi := shared.MinLevel, shared.MaxLevel
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if XPForLevel(mid) <= total {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// LevelProgress describes how far a balance is into its level.
type LevelProgress struct {
	Level          shared.Level `json:"level"`
	XPIntoLevel    shared.XP    `json:"xp_into_level"`
	XPForNextLevel shared.XP    `json:"xp_for_next_level"`
	Percent        int          `json:"percent"`
}

// ProgressFor computes LevelProgress for a total XP balance.
func ProgressFor(total shared.XP) LevelProgress {
	if total < 0 {
		total = 0
	}
	level := LevelFor(total)
	if level >= shared.MaxLevel {
		return LevelProgress{
			Level:       level,
			XPIntoLevel: total - XPForLevel(level),
			Percent:     100,
		}
	}

	floor := XPForLevel(level)
	span := XPForLevel(level+1) - floor
	into := total - floor

	return LevelProgress{
		Level:          level,
		XPIntoLevel:    into,
		XPForNextLevel: span - into,
		Percent:        int(into * 100 / span),
	}
}

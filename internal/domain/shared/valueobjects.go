package shared

import (
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// MaxIDLength bounds opaque identifiers received from collaborators.
const MaxIDLength = 128

// ValidateID checks an opaque identifier (user, attempt, class, source ref).
func ValidateID(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && len(id) <= MaxIDLength
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Value Object (Experience Points)
// ═══════════════════════════════════════════════════════════════════════════

// XP represents experience points. Balances only grow.
type XP int64

// IsValid checks that the amount is non-negative.
func (x XP) IsValid() bool {
	return x >= 0
}

// Int64 returns the underlying value.
func (x XP) Int64() int64 {
	return int64(x)
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level represents a user's level.
type Level int

const (
	MinLevel Level = 1
	MaxLevel Level = 100
)

// IsValid checks if the level is within valid range.
func (l Level) IsValid() bool {
	return l >= MinLevel && l <= MaxLevel
}

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// Title returns a display title for the level.
func (l Level) Title() string {
	switch {
	case l < 5:
		return "Newcomer"
	case l < 10:
		return "Learner"
	case l < 20:
		return "Scholar"
	case l < 35:
		return "Achiever"
	case l < 60:
		return "Expert"
	default:
		return "Master"
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Rank Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Rank is a 1-based leaderboard position.
type Rank int

// IsValid checks that the rank is positive.
func (r Rank) IsValid() bool {
	return r > 0
}

package leaderboard

import (
	"sort"
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCOPE
// ══════════════════════════════════════════════════════════════════════════════

// Scope selects the population of a leaderboard: global or one class.
type Scope struct {
	ClassID string
}

// GlobalScope ranks every user.
func GlobalScope() Scope { return Scope{} }

// ClassScope ranks the students of one class.
func ClassScope(classID string) Scope { return Scope{ClassID: classID} }

// IsClass reports whether the scope is class-restricted.
func (s Scope) IsClass() bool { return s.ClassID != "" }

// String returns "global" or "class:<id>".
func (s Scope) String() string {
	if s.IsClass() {
		return "class:" + s.ClassID
	}
	return "global"
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTRIES
// ══════════════════════════════════════════════════════════════════════════════

// Entry is one ranked row. Entries are derived, never stored.
type Entry struct {
	Rank          shared.Rank  `json:"rank"`
	UserID        string       `json:"user_id"`
	XPEarned      shared.XP    `json:"xp_earned"`
	CurrentLevel  shared.Level `json:"current_level"`
	FirstEarnedAt time.Time    `json:"first_earned_at"`
}

// Total is a user's unranked aggregate over a period.
type Total struct {
	UserID        string
	XPEarned      shared.XP
	FirstEarnedAt time.Time
	CurrentLevel  shared.Level
}

// Ahead reports whether a ranks above b: more XP first, then the earlier
// first grant in the period, then the smaller user id.
func Ahead(a, b Total) bool {
	if a.XPEarned != b.XPEarned {
		return a.XPEarned > b.XPEarned
	}
	if !a.FirstEarnedAt.Equal(b.FirstEarnedAt) {
		return a.FirstEarnedAt.Before(b.FirstEarnedAt)
	}
	return a.UserID < b.UserID
}

// RankTotals orders totals and assigns dense 1-based positions. Users with no
// XP in the period are not ranked.
func RankTotals(totals []Total) []Entry {
	ranked := make([]Total, 0, len(totals))
	for _, t := range totals {
		if t.XPEarned > 0 {
			ranked = append(ranked, t)
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return Ahead(ranked[i], ranked[j]) })

	entries := make([]Entry, len(ranked))
	for i, t := range ranked {
		entries[i] = Entry{
			Rank:          shared.Rank(i + 1),
			UserID:        t.UserID,
			XPEarned:      t.XPEarned,
			CurrentLevel:  t.CurrentLevel,
			FirstEarnedAt: t.FirstEarnedAt,
		}
	}
	return entries
}

// Window is the result of a window read: the requested page plus the
// viewer's own row when the viewer ranks at all.
type Window struct {
	Entries      []Entry `json:"entries"`
	Viewer       *Entry  `json:"viewer,omitempty"`
	Participants int     `json:"participants"`
}

// Page cuts a fully ranked list into a Window.
func Page(entries []Entry, limit int, viewerID string) *Window {
	w := &Window{Entries: []Entry{}, Participants: len(entries)}
	for i := range entries {
		if i < limit {
			w.Entries = append(w.Entries, entries[i])
		}
		if viewerID != "" && entries[i].UserID == viewerID {
			e := entries[i]
			w.Viewer = &e
		}
	}
	return w
}

// ══════════════════════════════════════════════════════════════════════════════
// BOARD
// ══════════════════════════════════════════════════════════════════════════════

// Board is the leaderboard returned to callers.
type Board struct {
	Period       *PeriodInfo  `json:"period"`
	Scope        string       `json:"scope"`
	Entries      []Entry      `json:"entries"`
	UserRank     *shared.Rank `json:"user_rank"`
	UserEntry    *Entry       `json:"user_entry"`
	Participants int          `json:"participants"`
}

// EmptyBoard is the well-formed answer for a period nobody has scored in.
func EmptyBoard(scope Scope) *Board {
	return &Board{
		Scope:   scope.String(),
		Entries: []Entry{},
	}
}

// IsEmpty reports whether the board has no ranked users.
func (b *Board) IsEmpty() bool {
	return len(b.Entries) == 0
}

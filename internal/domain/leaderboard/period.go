// Package leaderboard contains the ranking model: calendar periods, scopes,
// ranked entries and the read ports the aggregator depends on.
package leaderboard

import (
	"strings"
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERIODS
// ══════════════════════════════════════════════════════════════════════════════

// PeriodType is the calendar window a leaderboard covers.
type PeriodType string

const (
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
)

// IsValid reports whether t is a known period type.
func (t PeriodType) IsValid() bool {
	return t == PeriodWeekly || t == PeriodMonthly
}

// ParsePeriodType parses a period type, case-insensitively.
func ParsePeriodType(s string) (PeriodType, error) {
	t := PeriodType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", shared.ErrInvalidPeriodType
	}
	return t, nil
}

// Period is a UTC window [Start, End).
type Period struct {
	Type  PeriodType
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the window.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Key is the period key, e.g. "weekly:2026-10-12".
func (p Period) Key() string {
	return string(p.Type) + ":" + timeutil.FormatDate(p.Start)
}

// Remaining is the time left until the period closes.
func (p Period) Remaining(now time.Time) time.Duration {
	if d := p.End.Sub(now); d > 0 {
		return d
	}
	return 0
}

// PeriodInfo is the display form of a period.
type PeriodInfo struct {
	Type             PeriodType    `json:"type"`
	Key              string        `json:"key"`
	Start            time.Time     `json:"start"`
	End              time.Time     `json:"end"`
	TimeRemaining    time.Duration `json:"-"`
	SecondsRemaining int64         `json:"seconds_remaining"`
}

// Info builds PeriodInfo relative to now.
func (p Period) Info(now time.Time) PeriodInfo {
	remaining := p.Remaining(now)
	return PeriodInfo{
		Type:             p.Type,
		Key:              p.Key(),
		Start:            p.Start,
		End:              p.End,
		TimeRemaining:    remaining,
		SecondsRemaining: int64(remaining / time.Second),
	}
}

// Calendar derives period boundaries. Weeks start on WeekStart.
type Calendar struct {
	WeekStart time.Weekday
}

// NewCalendar creates a calendar with the given first day of week.
func NewCalendar(weekStart time.Weekday) Calendar {
	return Calendar{WeekStart: weekStart}
}

// PeriodAt returns the period of type t containing now.
func (c Calendar) PeriodAt(t PeriodType, now time.Time) (Period, error) {
	switch t {
	case PeriodWeekly:
		start := timeutil.StartOfWeek(now, c.WeekStart)
		return Period{Type: t, Start: start, End: start.AddDate(0, 0, 7)}, nil
	case PeriodMonthly:
		start := timeutil.StartOfMonth(now)
		return Period{Type: t, Start: start, End: start.AddDate(0, 1, 0)}, nil
	default:
		return Period{}, shared.ErrInvalidPeriodType
	}
}

// Package timeutil provides UTC calendar utilities and the server clock.
// All gamification day boundaries are UTC calendar days.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical date key format.
const DateLayout = "2006-01-02"

// ══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// Clock is the trusted source of "now". Client-supplied timestamps never reach
// streak or period logic.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f and normalizes to UTC.
func (f ClockFunc) Now() time.Time {
	return f().UTC()
}

// ══════════════════════════════════════════════════════════════════════════════
// CALENDAR
// ══════════════════════════════════════════════════════════════════════════════

// Date creates a UTC midnight for the given date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// StartOfDay returns 00:00:00 UTC of t's UTC calendar day.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfWeek returns the most recent weekStart day at or before t (UTC, date-only).
func StartOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

// StartOfMonth returns the first day of t's UTC month.
func StartOfMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// IsSameDay reports whether both instants fall on the same UTC calendar day.
func IsSameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}

// DaysBetween returns the signed number of UTC calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(StartOfDay(b).Sub(StartOfDay(a)).Hours() / 24)
}

// FormatDate formats t as a UTC date key (YYYY-MM-DD).
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD date key as UTC midnight.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: invalid date %q: %w", value, err)
	}
	return t, nil
}

// ParseWeekday parses an English weekday name ("monday", "Sun", ...).
func ParseWeekday(value string) (time.Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if v == name || v == name[:3] {
			return d, nil
		}
	}
	return time.Monday, fmt.Errorf("timeutil: unknown weekday %q", value)
}

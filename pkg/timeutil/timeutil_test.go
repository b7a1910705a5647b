package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartOfWeek(t *testing.T) {
	wed := time.Date(2026, 10, 14, 13, 45, 0, 0, time.UTC)

	assert.Equal(t, Date(2026, 10, 12), StartOfWeek(wed, time.Monday))
	assert.Equal(t, Date(2026, 10, 11), StartOfWeek(wed, time.Sunday))

	mon := Date(2026, 10, 12)
	assert.Equal(t, mon, StartOfWeek(mon, time.Monday))
}

func TestStartOfMonth(t *testing.T) {
	assert.Equal(t, Date(2026, 2, 1), StartOfMonth(time.Date(2026, 2, 28, 23, 59, 0, 0, time.UTC)))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 10, 13, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 10, 14, 0, 1, 0, 0, time.UTC)

	assert.Equal(t, 1, DaysBetween(a, b))
	assert.Equal(t, -1, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(b, b.Add(time.Hour)))
	assert.False(t, IsSameDay(a, b))
}

func TestUsesUTCCalendar(t *testing.T) {
	la := time.FixedZone("PDT", -7*3600)
	// 20:00 in Los Angeles on the 13th is the 14th in UTC.
	local := time.Date(2026, 10, 13, 20, 0, 0, 0, la)

	assert.Equal(t, "2026-10-14", FormatDate(local))
	assert.Equal(t, Date(2026, 10, 14), StartOfDay(local))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-10-14")
	require.NoError(t, err)
	assert.Equal(t, Date(2026, 10, 14), d)

	_, err = ParseDate("14/10/2026")
	assert.Error(t, err)
}

func TestParseWeekday(t *testing.T) {
	d, err := ParseWeekday("Sunday")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, d)

	d, err = ParseWeekday("mon")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d)

	_, err = ParseWeekday("someday")
	assert.Error(t, err)
}

func TestClockFunc(t *testing.T) {
	fixed := Date(2026, 1, 1)
	var c Clock = ClockFunc(func() time.Time { return fixed })
	assert.Equal(t, fixed, c.Now())
}

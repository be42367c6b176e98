package redis

import "time"

// Time-bucket key helpers. All buckets are derived from UTC wall-clock time so
// every instance agrees on bucket boundaries regardless of host timezone.

const (
	dateKeyLayout = "2006-01-02"
	hourKeyLayout = "2006-01-02-15"
)

// DateKey returns the calendar-day bucket for t, e.g. "2026-08-31".
func DateKey(t time.Time) string {
	return t.UTC().Format(dateKeyLayout)
}

// HourKey returns the hour bucket for t, e.g. "2026-08-31-14".
func HourKey(t time.Time) string {
	return t.UTC().Format(hourKeyLayout)
}

// PreviousHourKey returns the hour bucket immediately before t. The flush job
// always targets the previous complete bucket, never the one still filling.
func PreviousHourKey(t time.Time) string {
	return HourKey(t.Add(-time.Hour))
}

// ParseDateKey parses a "2006-01-02" date key into a UTC midnight time.
func ParseDateKey(s string) (time.Time, error) {
	return time.ParseInLocation(dateKeyLayout, s, time.UTC)
}

// DayWindow returns the inclusive [00:00:00, 23:59:59.999] bounds of the
// calendar day containing t. Start and end are built from two independent
// time values so neither bound can clobber the other.
func DayWindow(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, int(999*time.Millisecond), time.UTC)
	return start, end
}

package utils

import (
	"fmt"
	"time"
)

// DayUTC truncates t to UTC midnight. All range math here runs on calendar
// days; truncating at the edges keeps comparisons exact.
func DayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD wire date into a UTC midnight.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t.UTC(), nil
}

func FormatDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// MonthWindow returns the half-open window [first of month, first of next).
func MonthWindow(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// DaysBetween enumerates every UTC day in [start, end). The end day itself
// is excluded: a range's checkout day is not occupied.
func DaysBetween(start, end time.Time) []time.Time {
	var days []time.Time
	for d := DayUTC(start); d.Before(DayUTC(end)); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Overlaps reports whether two half-open day ranges share at least one day.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// UnixTimeToTime converts a processor-reported Unix timestamp.
func UnixTimeToTime(unixTime int64) time.Time {
	return time.Unix(unixTime, 0)
}

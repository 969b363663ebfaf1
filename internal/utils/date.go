// internal/utils/date.go
package utils

import (
	"time"
)

// GetDateDaysAgo returns now shifted back by the given number of days.
func GetDateDaysAgo(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days)
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// HourStart truncates t to the start of its UTC hour.
func HourStart(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// DayStart truncates t to UTC midnight.
func DayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Buckets returns n consecutive bucket starts ending with last, oldest first.
func Buckets(last time.Time, step time.Duration, n int) []time.Time {
	out := make([]time.Time, n)
	for i := 0; i < n; i++ {
		out[i] = last.Add(-time.Duration(n-1-i) * step)
	}
	return out
}

package domain

import "time"

// DateOf truncates t to its calendar date in t's location and returns it as UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole number of days from a to b (calendar dates).
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

package model

import "time"

// DateOf truncates t to its civil date in t's own location and returns it
// as midnight UTC.  Occurrence and code dates are compared with this
// normalization so that DATE columns round-trip cleanly.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether a and b fall on the same normalized date.
func SameDate(a, b time.Time) bool {
	return DateOf(a).Equal(DateOf(b))
}

package domain

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// SelectWindow returns the readings of series whose age relative to
// reference, in whole days, is less than maxAgeDays. Every element is
// checked: out-of-order or duplicate timestamps are skipped individually
// rather than ending the scan. Order is preserved, series is not modified,
// and the result is never nil.
func SelectWindow(series Series, reference time.Time, maxAgeDays int) Series {
	out := make(Series, 0, len(series))
	if maxAgeDays <= 0 {
		return out
	}
	for _, r := range series {
		if ageInDays(reference, r.ObservedAt) < maxAgeDays {
			out = append(out, r)
		}
	}
	return out
}

// NewerThan returns the readings observed strictly after t, order preserved.
func NewerThan(series Series, t time.Time) Series {
	out := make(Series, 0, len(series))
	for _, r := range series {
		if r.ObservedAt.After(t) {
			out = append(out, r)
		}
	}
	return out
}

// ageInDays is the floor of |a-b| in 24-hour periods. Gaps too wide for a
// time.Duration report math.MaxInt.
func ageInDays(a, b time.Time) int {
	if a.Before(b) {
		a, b = b, a
	}
	d := a.Sub(b)
	if d == math.MaxInt64 {
		return math.MaxInt
	}
	return int(d / day)
}

// Package age computes elapsed and calendar-day distances for display.
package age

import "time"

// Since returns how long ago then was, clamped at zero. It reports false
// when then is unset.
func Since(then time.Time, now time.Time) (time.Duration, bool) {
	if then.IsZero() {
		return 0, false
	}
	if then.After(now) {
		return 0, true
	}
	return now.Sub(then), true
}

// DaysUntil counts calendar days from now to day. Each side is read as a
// date in its own location. It is negative when day has passed.
func DaysUntil(day time.Time, now time.Time) int {
	return int(dateOf(day).Sub(dateOf(now)).Hours() / 24)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

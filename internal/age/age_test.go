package age

import (
	"testing"
	"time"
)

func TestSince(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		then time.Time
		want time.Duration
		ok   bool
	}{
		{name: "past", then: now.Add(-10 * time.Minute), want: 10 * time.Minute, ok: true},
		{name: "now", then: now, want: 0, ok: true},
		{name: "future clamps", then: now.Add(4 * time.Minute), want: 0, ok: true},
		{name: "unset", then: time.Time{}, want: 0, ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Since(tc.then, now)
			if ok != tc.ok {
				t.Fatalf("expected ok %v, got %v", tc.ok, ok)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2025, 3, 10, 23, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		day  time.Time
		want int
	}{
		{name: "same day", day: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), want: 0},
		{name: "tomorrow", day: time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), want: 1},
		{name: "last week", day: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), want: -7},
		{name: "across month", day: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), want: 22},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DaysUntil(tc.day, now); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

package todo

import (
	"math"
	"time"
)

// Analytics summarizes a collection snapshot.
type Analytics struct {
	Total          int              `json:"total"`
	Completed      int              `json:"completed"`
	Pending        int              `json:"pending"`
	CompletionRate int              `json:"completion_rate"`
	Overdue        int              `json:"overdue"`
	DueToday       int              `json:"due_today"`
	ByPriority     map[Priority]int `json:"by_priority"`
}

// Summarize computes analytics for items as of now. It does no I/O.
// CompletionRate is a whole percentage and 0 for an empty list.
func Summarize(items []Todo, now time.Time) Analytics {
	stats := Analytics{
		Total:      len(items),
		ByPriority: make(map[Priority]int, len(ValidPriorities())),
	}
	for _, priority := range ValidPriorities() {
		stats.ByPriority[priority] = 0
	}

	today := dayOf(now)
	for _, item := range items {
		switch item.Status {
		case StatusCompleted:
			stats.Completed++
		case StatusPending:
			stats.Pending++
		}
		if item.Priority.IsValid() {
			stats.ByPriority[item.Priority]++
		}
		if item.DueDate == nil || item.Status != StatusPending {
			continue
		}
		due := dayOf(item.DueDate.Time)
		switch {
		case due.Before(today):
			stats.Overdue++
		case due.Equal(today):
			stats.DueToday++
		}
	}

	if stats.Total > 0 {
		stats.CompletionRate = int(math.Round(100 * float64(stats.Completed) / float64(stats.Total)))
	}
	return stats
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

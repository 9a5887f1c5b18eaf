package main

import (
	"strings"
	"testing"
	"time"

	"github.com/amonks/taskdash/api"
	"github.com/amonks/taskdash/todo"
)

func mustDate(t *testing.T, value string) *todo.Date {
	t.Helper()
	d, err := api.ParseDate(value)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return &d
}

func TestFormatTodoTable(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	items := []todo.Todo{
		{
			ID:        2,
			Title:     "Call Ada",
			Status:    todo.StatusCompleted,
			Priority:  todo.PriorityLow,
			CreatedAt: now.Add(-3 * 24 * time.Hour),
		},
		{
			ID:          1,
			Title:       "Buy milk",
			Status:      todo.StatusPending,
			Priority:    api.PriorityHigh,
			DueDate:     mustDate(t, "2026-03-01"),
			Attachments: []todo.Attachment{{ID: 9, OriginalName: "list.pdf"}},
			CreatedAt:   now.Add(-2 * time.Hour),
		},
	}

	out := formatTodoTable(items, now)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two rows, got:\n%s", out)
	}
	for _, header := range []string{"ID", "STATUS", "PRIORITY", "DUE", "PDF", "AGE", "TITLE"} {
		if !strings.Contains(lines[0], header) {
			t.Errorf("expected header %s in %q", header, lines[0])
		}
	}
	for _, want := range []string{"2", "completed", "low", "3d ago", "Call Ada"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("expected %q in %q", want, lines[1])
		}
	}
	for _, want := range []string{"pending", "high", "2026-03-01 (yesterday)", "yes", "2h ago", "Buy milk"} {
		if !strings.Contains(lines[2], want) {
			t.Errorf("expected %q in %q", want, lines[2])
		}
	}
}

func TestFormatTodoDue(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	now := time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		item todo.Todo
		want string
	}{
		{name: "none", item: todo.Todo{Status: todo.StatusPending}, want: "-"},
		{name: "today", item: todo.Todo{Status: todo.StatusPending, DueDate: mustDate(t, "2026-03-02")}, want: "2026-03-02 (today)"},
		{name: "future", item: todo.Todo{Status: todo.StatusPending, DueDate: mustDate(t, "2026-03-09")}, want: "2026-03-09 (in 7d)"},
		{name: "completed past", item: todo.Todo{Status: todo.StatusCompleted, DueDate: mustDate(t, "2026-02-20")}, want: "2026-02-20 (10d ago)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatTodoDue(tc.item, now); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestTodoEmptyListMessage(t *testing.T) {
	cases := []struct {
		filter todo.Filter
		want   string
	}{
		{filter: todo.Filter{}, want: "No todos found."},
		{filter: todo.Filter{Status: todo.FilterAll}, want: "No todos found."},
		{filter: todo.Filter{Status: todo.FilterPending}, want: "No pending todos found."},
		{filter: todo.Filter{Search: "milk"}, want: `No todos match "milk".`},
		{filter: todo.Filter{Search: "milk", Status: todo.FilterCompleted}, want: `No completed todos match "milk".`},
	}
	for _, tc := range cases {
		if got := todoEmptyListMessage(tc.filter); got != tc.want {
			t.Errorf("filter %+v: expected %q, got %q", tc.filter, tc.want, got)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for size, want := range cases {
		if got := formatBytes(size); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", size, got, want)
		}
	}
}

func TestRenderStats(t *testing.T) {
	stats := todo.Analytics{
		Total:          3,
		Completed:      2,
		Pending:        1,
		CompletionRate: 67,
		Overdue:        1,
		ByPriority: map[todo.Priority]int{
			api.PriorityUrgent: 0,
			api.PriorityHigh:   3,
			api.PriorityMedium: 0,
			api.PriorityLow:    0,
		},
	}

	out := renderStats(stats)
	for _, want := range []string{"Total", "Completed", "67%", "Overdue", "Due today", "By priority"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "high    "+strings.Repeat("#", statsBarWidth)+" 3") {
		t.Errorf("expected full bar for high priority in:\n%s", out)
	}
	if !strings.Contains(out, "urgent  "+strings.Repeat(" ", statsBarWidth)+" 0") {
		t.Errorf("expected empty bar for urgent priority in:\n%s", out)
	}
}

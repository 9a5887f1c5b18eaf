package main

import (
	"strconv"
	"time"

	"github.com/amonks/taskdash/internal/age"
	"github.com/amonks/taskdash/internal/ui"
	"github.com/amonks/taskdash/todo"
)

func formatTodoTable(todos []todo.Todo, now time.Time) string {
	builder := ui.NewTableBuilder([]string{"ID", "STATUS", "PRIORITY", "DUE", "PDF", "AGE", "TITLE"}, len(todos))
	for _, t := range todos {
		builder.AddRow(
			formatTodoID(t.ID),
			string(t.Status),
			string(t.Priority),
			formatTodoDue(t, now),
			formatTodoPDF(t),
			ui.FormatTimeAgo(t.CreatedAt, now),
			ui.TruncateTableCell(t.Title),
		)
	}
	return builder.String()
}

func formatTodoID(id int64) string {
	return ui.Highlight(strconv.FormatInt(id, 10))
}

// formatTodoDue shows the due date relative to now. Pending todos past
// their date are flagged.
func formatTodoDue(t todo.Todo, now time.Time) string {
	if t.DueDate == nil {
		return "-"
	}
	days := age.DaysUntil(t.DueDate.Time, now)
	text := t.DueDate.String() + " (" + ui.FormatDaysUntil(days) + ")"
	if t.Status == todo.StatusPending && days < 0 {
		return ui.Alert(text)
	}
	return text
}

func formatTodoPDF(t todo.Todo) string {
	if len(t.Attachments) == 0 {
		return "-"
	}
	return "yes"
}

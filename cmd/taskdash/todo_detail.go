package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/amonks/taskdash/internal/markdown"
	"github.com/amonks/taskdash/internal/ui"
	"github.com/amonks/taskdash/todo"
)

const todoDetailLineWidth = 80

// printTodoDetail prints detailed information about a todo.
func printTodoDetail(t todo.Todo, now time.Time) {
	fmt.Printf("ID:       %s\n", formatTodoID(t.ID))
	fmt.Printf("Title:    %s\n", t.Title)
	fmt.Printf("Status:   %s\n", t.Status)
	fmt.Printf("Priority: %s\n", t.Priority)
	fmt.Printf("Due:      %s\n", formatTodoDue(t, now))
	fmt.Printf("Created:  %s\n", t.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated:  %s\n", t.UpdatedAt.Local().Format("2006-01-02 15:04:05"))

	for _, attachment := range t.Attachments {
		fmt.Printf("PDF:      %s (%s, id %d)\n", attachment.OriginalName, formatBytes(attachment.SizeBytes), attachment.ID)
	}

	fmt.Printf("\nDescription:\n%s\n", formatTodoDescription(t.Description))
}

func formatTodoDescription(value string) string {
	width := ui.TerminalWidth(todoDetailLineWidth)
	if width > todoDetailLineWidth {
		width = todoDetailLineWidth
	}
	formatted := string(markdown.SafeRender(width, 2, []byte(value)))
	if strings.TrimSpace(formatted) == "" {
		return "  -"
	}
	return formatted
}

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	value := float64(size) / unit
	for _, suffix := range []string{"KB", "MB"} {
		if value < unit {
			return fmt.Sprintf("%.1f %s", value, suffix)
		}
		value /= unit
	}
	return fmt.Sprintf("%.1f GB", value)
}

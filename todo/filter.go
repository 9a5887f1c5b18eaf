package todo

import (
	"strings"

	internalstrings "github.com/amonks/taskdash/internal/strings"
)

// Visible returns the todos matching filter, preserving order. Search is a
// case-insensitive substring match over title and description.
func Visible(items []Todo, filter Filter) []Todo {
	search := internalstrings.NormalizeLowerTrimSpace(filter.Search)
	visible := make([]Todo, 0, len(items))
	for _, item := range items {
		if !matchesStatus(item, filter.Status) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(item.Title), search) &&
			!strings.Contains(strings.ToLower(item.Description), search) {
			continue
		}
		visible = append(visible, item)
	}
	return visible
}

func matchesStatus(item Todo, filter StatusFilter) bool {
	switch filter {
	case FilterPending:
		return item.Status == StatusPending
	case FilterCompleted:
		return item.Status == StatusCompleted
	}
	return true
}

// Package todo keeps a local view of the remote todo list in step with
// the server.
//
// A Collection owns the view. A Syncer performs remote calls and feeds
// their results into the collection as explicit messages. Derived views
// (Visible, Summarize) are pure functions over a snapshot.
package todo

import (
	"github.com/amonks/taskdash/api"
	"github.com/amonks/taskdash/internal/validation"
)

// Todo is a task as the server reports it.
type Todo = api.Todo

// Attachment is a PDF stored with a todo.
type Attachment = api.Attachment

// Status is the completion state of a todo.
type Status = api.Status

// Priority is the importance of a todo.
type Priority = api.Priority

// Date is a calendar day.
type Date = api.Date

const (
	StatusPending   = api.StatusPending
	StatusCompleted = api.StatusCompleted

	PriorityLow    = api.PriorityLow
	PriorityMedium = api.PriorityMedium
	PriorityHigh   = api.PriorityHigh
	PriorityUrgent = api.PriorityUrgent
)

// ValidStatuses returns all valid status values.
func ValidStatuses() []Status {
	return api.ValidStatuses()
}

// ValidPriorities returns all valid priorities, most urgent first.
func ValidPriorities() []Priority {
	return api.ValidPriorities()
}

// StatusFilter narrows a listing by status.
type StatusFilter string

const (
	FilterAll       StatusFilter = "all"
	FilterPending   StatusFilter = "pending"
	FilterCompleted StatusFilter = "completed"
)

// ValidStatusFilters returns all status filters.
func ValidStatusFilters() []StatusFilter {
	return []StatusFilter{FilterAll, FilterPending, FilterCompleted}
}

// ParseStatusFilter parses a filter name. Empty means all.
func ParseStatusFilter(value string) (StatusFilter, error) {
	switch StatusFilter(value) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterPending, FilterCompleted:
		return StatusFilter(value), nil
	}
	return "", validation.FormatInvalidValueError(ErrInvalidStatusFilter, StatusFilter(value), ValidStatusFilters())
}

// Filter is the search and status criteria of a listing.
type Filter struct {
	Search string
	Status StatusFilter
}

func (f Filter) query() api.ListQuery {
	query := api.ListQuery{Search: f.Search}
	if f.Status == FilterPending || f.Status == FilterCompleted {
		query.Status = Status(f.Status)
	}
	return query
}

// Draft is the input for a new todo. Priority defaults to medium; status is
// always pending.
type Draft struct {
	Title       string
	Description string
	Priority    Priority
	DueDate     *Date
}

// Patch lists the fields to change. Nil fields are left alone and
// ClearDueDate removes the due date.
type Patch = api.TodoFields

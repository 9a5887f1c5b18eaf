package todo

import (
	"errors"
	"strings"

	"github.com/amonks/taskdash/api"
	internalstrings "github.com/amonks/taskdash/internal/strings"
	"github.com/amonks/taskdash/internal/validation"
)

var (
	// ErrEmptyTitle is returned when a todo title is empty.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrEmptyDescription is returned when a todo description is empty.
	ErrEmptyDescription = errors.New("description cannot be empty")

	// ErrInvalidStatus is returned when an invalid status is provided.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidStatusFilter is returned when an invalid status filter is provided.
	ErrInvalidStatusFilter = errors.New("invalid status filter")

	// ErrInvalidPriority is returned when an invalid priority is provided.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrEmptyPatch is returned when an update changes nothing.
	ErrEmptyPatch = errors.New("nothing to update")

	// ErrNotPDF is returned when an attachment is not a PDF.
	ErrNotPDF = errors.New("attachment must be a PDF")

	// ErrAttachmentTooLarge is returned when an attachment exceeds MaxAttachmentSize.
	ErrAttachmentTooLarge = errors.New("attachment too large")

	// ErrTodoNotFound is returned when a todo is not in the local collection.
	ErrTodoNotFound = errors.New("todo not found")
)

// ValidateTitle checks if the title is valid.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return api.FieldError("title", "The title field is required.", ErrEmptyTitle)
	}
	return nil
}

// ValidateDescription checks if the description is valid.
func ValidateDescription(description string) error {
	if strings.TrimSpace(description) == "" {
		return api.FieldError("description", "The description field is required.", ErrEmptyDescription)
	}
	return nil
}

// ValidateStatus checks if the status is valid.
func ValidateStatus(status Status) error {
	if !status.IsValid() {
		return api.FieldError("status", "The selected status is invalid.",
			validation.FormatInvalidValueError(ErrInvalidStatus, status, ValidStatuses()))
	}
	return nil
}

// ValidatePriority checks if the priority is valid.
func ValidatePriority(priority Priority) error {
	if !priority.IsValid() {
		return api.FieldError("priority", "The selected priority is invalid.",
			validation.FormatInvalidValueError(ErrInvalidPriority, priority, ValidPriorities()))
	}
	return nil
}

// ParseStatus parses a status name.
func ParseStatus(value string) (Status, error) {
	status := Status(internalstrings.NormalizeLowerTrimSpace(value))
	if err := ValidateStatus(status); err != nil {
		return "", err
	}
	return status, nil
}

// ParsePriority parses a priority name.
func ParsePriority(value string) (Priority, error) {
	priority := Priority(internalstrings.NormalizeLowerTrimSpace(value))
	if err := ValidatePriority(priority); err != nil {
		return "", err
	}
	return priority, nil
}

func (d Draft) fields() (Patch, error) {
	var problems []error
	if err := ValidateTitle(d.Title); err != nil {
		problems = append(problems, err)
	}
	if err := ValidateDescription(d.Description); err != nil {
		problems = append(problems, err)
	}
	priority := d.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if err := ValidatePriority(priority); err != nil {
		problems = append(problems, err)
	}
	if len(problems) > 0 {
		return Patch{}, mergeValidation(problems)
	}

	title := strings.TrimSpace(d.Title)
	description := strings.TrimSpace(d.Description)
	status := StatusPending
	return Patch{
		Title:       &title,
		Description: &description,
		Status:      &status,
		Priority:    &priority,
		DueDate:     d.DueDate,
	}, nil
}

func validatePatch(p Patch, hasUpload bool) error {
	var problems []error
	if p.Title != nil {
		if err := ValidateTitle(*p.Title); err != nil {
			problems = append(problems, err)
		}
	}
	if p.Description != nil {
		if err := ValidateDescription(*p.Description); err != nil {
			problems = append(problems, err)
		}
	}
	if p.Status != nil {
		if err := ValidateStatus(*p.Status); err != nil {
			problems = append(problems, err)
		}
	}
	if p.Priority != nil {
		if err := ValidatePriority(*p.Priority); err != nil {
			problems = append(problems, err)
		}
	}
	if len(problems) > 0 {
		return mergeValidation(problems)
	}
	if !hasUpload && p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil && p.DueDate == nil && !p.ClearDueDate {
		return ErrEmptyPatch
	}
	return nil
}

// mergeValidation folds several field errors into one.
func mergeValidation(problems []error) error {
	if len(problems) == 1 {
		return problems[0]
	}
	merged := &api.ValidationError{Fields: map[string][]string{}}
	var causes []error
	for _, problem := range problems {
		var verr *api.ValidationError
		if errors.As(problem, &verr) {
			for field, messages := range verr.Fields {
				merged.Fields[field] = append(merged.Fields[field], messages...)
			}
			if verr.Err != nil {
				causes = append(causes, verr.Err)
			}
		}
	}
	merged.Err = errors.Join(causes...)
	return merged
}

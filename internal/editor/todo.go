package editor

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/BurntSushi/toml"
	"github.com/amonks/taskdash/api"
	"github.com/amonks/taskdash/internal/validation"
	"github.com/amonks/taskdash/todo"
)

// TodoData represents the data used to render the TOML template.
type TodoData struct {
	// IsUpdate is true when editing an existing todo.
	IsUpdate bool
	// ID is the todo ID (only for updates).
	ID int64
	Title    string
	Priority string
	// Status is only offered for updates; new todos start pending.
	Status string
	// Due is YYYY-MM-DD or empty.
	Due         string
	Description string
}

// DefaultCreateData returns TodoData with default values for creating a new todo.
func DefaultCreateData() TodoData {
	return TodoData{Priority: string(todo.PriorityMedium)}
}

// DataFromTodo creates TodoData from an existing todo for editing.
func DataFromTodo(t *todo.Todo) TodoData {
	data := TodoData{
		IsUpdate:    true,
		ID:          t.ID,
		Title:       t.Title,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		Description: t.Description,
	}
	if t.DueDate != nil {
		data.Due = t.DueDate.String()
	}
	return data
}

var todoTemplate = template.Must(template.New("todo").Funcs(template.FuncMap{
	"priorities": func() string { return validation.FormatValidValues(todo.ValidPriorities()) },
	"statuses":   func() string { return validation.FormatValidValues(todo.ValidStatuses()) },
}).Parse(`title = {{ printf "%q" .Title }}
priority = {{ printf "%q" .Priority }} # {{ priorities }}
due = {{ printf "%q" .Due }} # YYYY-MM-DD, empty for none
{{- if .IsUpdate }}
status = {{ printf "%q" .Status }} # {{ statuses }}
{{- end }}
---
{{ .Description }}
`))

// RenderTodoTOML renders the todo data as a TOML string for editing.
func RenderTodoTOML(data TodoData) (string, error) {
	var buf bytes.Buffer
	if err := todoTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

// ParsedTodo represents the parsed result from the TOML editor output.
type ParsedTodo struct {
	Title       string  `toml:"title"`
	Priority    string  `toml:"priority"`
	Due         string  `toml:"due"`
	Status      *string `toml:"status"`
	Description string  `toml:"-"`

	priority todo.Priority
	status   *todo.Status
	dueDate  *todo.Date
}

// ParseTodoTOML parses the TOML content from the editor.
func ParseTodoTOML(content string) (*ParsedTodo, error) {
	frontmatter, body := splitFrontmatter(content)

	var parsed ParsedTodo
	if _, err := toml.Decode(frontmatter, &parsed); err != nil {
		return nil, fmt.Errorf("parse TOML: %w", err)
	}
	parsed.Title = strings.TrimSpace(parsed.Title)
	parsed.Description = strings.TrimSpace(body)

	if err := todo.ValidateTitle(parsed.Title); err != nil {
		return nil, err
	}
	if err := todo.ValidateDescription(parsed.Description); err != nil {
		return nil, err
	}
	if strings.TrimSpace(parsed.Priority) == "" {
		parsed.priority = todo.PriorityMedium
	} else {
		priority, err := todo.ParsePriority(parsed.Priority)
		if err != nil {
			return nil, err
		}
		parsed.priority = priority
	}
	if parsed.Status != nil {
		status, err := todo.ParseStatus(*parsed.Status)
		if err != nil {
			return nil, err
		}
		parsed.status = &status
	}
	if due := strings.TrimSpace(parsed.Due); due != "" {
		date, err := api.ParseDate(due)
		if err != nil {
			return nil, api.FieldError("due_date", "The due date field must be a valid date.", err)
		}
		parsed.dueDate = &date
	}

	return &parsed, nil
}

func splitFrontmatter(content string) (string, string) {
	content = strings.TrimLeft(content, "\n")
	if content == "" {
		return "", ""
	}

	lines := strings.Split(content, "\n")
	separatorIndex := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == "---" {
			separatorIndex = i
			break
		}
	}
	if separatorIndex == -1 {
		return content, ""
	}

	frontmatter := strings.Join(lines[:separatorIndex], "\n")
	body := strings.Join(lines[separatorIndex+1:], "\n")
	return frontmatter, body
}

// EditTodoWithData opens the editor with pre-populated data and returns the parsed result.
func EditTodoWithData(data TodoData) (*ParsedTodo, error) {
	content, err := RenderTodoTOML(data)
	if err != nil {
		return nil, err
	}

	tmpfile, err := os.CreateTemp("", "taskdash-todo-*.md")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpfile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpfile.WriteString(content); err != nil {
		tmpfile.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpfile.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	if err := Edit(tmpPath); err != nil {
		return nil, err
	}

	edited, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("read edited file: %w", err)
	}

	return ParseTodoTOML(string(edited))
}

// Draft converts the parsed result into a new todo.
func (p *ParsedTodo) Draft() todo.Draft {
	return todo.Draft{
		Title:       p.Title,
		Description: p.Description,
		Priority:    p.priority,
		DueDate:     p.dueDate,
	}
}

// Patch converts the parsed result into an update of every edited field.
// An emptied due date clears it.
func (p *ParsedTodo) Patch() todo.Patch {
	title := p.Title
	description := p.Description
	priority := p.priority
	return todo.Patch{
		Title:        &title,
		Description:  &description,
		Priority:     &priority,
		Status:       p.status,
		DueDate:      p.dueDate,
		ClearDueDate: p.dueDate == nil,
	}
}

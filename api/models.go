// Package api is the HTTP client for the task dashboard REST API.
//
// The client owns request framing only: JSON for scalar payloads, multipart
// bodies when a PDF attachment travels with a todo, bearer authentication,
// and the mapping of response statuses onto a small error taxonomy. State
// (credentials, the local todo collection) lives in the session and todo
// packages.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the completion state of a todo.
type Status string

const (
	// StatusPending marks a todo that still needs doing.
	StatusPending Status = "pending"
	// StatusCompleted marks a finished todo.
	StatusCompleted Status = "completed"
)

// ValidStatuses returns all valid status values.
func ValidStatuses() []Status {
	return []Status{StatusPending, StatusCompleted}
}

// IsValid returns true if the status is a known value.
func (s Status) IsValid() bool {
	for _, valid := range ValidStatuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// Priority is the importance of a todo.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium" // default
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ValidPriorities returns all valid priorities, most urgent first.
func ValidPriorities() []Priority {
	return []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}
}

// IsValid returns true if the priority is a known value.
func (p Priority) IsValid() bool {
	for _, valid := range ValidPriorities() {
		if p == valid {
			return true
		}
	}
	return false
}

// PDFMIMEType is the only attachment type the API accepts.
const PDFMIMEType = "application/pdf"

// DateLayout is the wire format for due dates.
const DateLayout = "2006-01-02"

// Date is a calendar day. The API sends either a bare date or a full
// timestamp; both decode to the day in UTC.
type Date struct {
	time.Time
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(value string) (Date, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return Date{Time: parsed}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		y, m, day := parsed.UTC().Date()
		d.Time = time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// User is the account profile returned on login. It is a display cache,
// not an authoritative record.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company,omitempty"`
	Email     string `json:"email"`
}

// Name returns the user's display name.
func (u User) Name() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Attachment is a PDF stored alongside a todo.
type Attachment struct {
	ID           int64     `json:"id"`
	TodoID       int64     `json:"todo_id"`
	StoredName   string    `json:"pdf_path"`
	OriginalName string    `json:"original_name"`
	SizeBytes    int64     `json:"file_size"`
	MIMEType     string    `json:"mime_type"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Todo is a task as the server reports it. IsOverdue and IsDueToday are
// derived by the server and go stale as soon as any field changes.
type Todo struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      Status       `json:"status"`
	Priority    Priority     `json:"priority"`
	DueDate     *Date        `json:"due_date"`
	IsOverdue   bool         `json:"is_overdue,omitempty"`
	IsDueToday  bool         `json:"is_due_today,omitempty"`
	PDFURL      *string      `json:"pdf_url,omitempty"`
	Attachments []Attachment `json:"pdfs"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TodoFields carries the writable fields of a todo. Nil means "leave as is".
// ClearDueDate removes the due date; it is ignored when DueDate is set.
type TodoFields struct {
	Title        *string   `json:"title,omitempty"`
	Description  *string   `json:"description,omitempty"`
	Status       *Status   `json:"status,omitempty"`
	Priority     *Priority `json:"priority,omitempty"`
	DueDate      *Date     `json:"due_date,omitempty"`
	ClearDueDate bool      `json:"-"`
}

// clearsDueDate reports whether the fields send an explicit null date.
func (f TodoFields) clearsDueDate() bool {
	return f.ClearDueDate && f.DueDate == nil
}

// MarshalJSON writes "due_date": null when the date is being cleared.
func (f TodoFields) MarshalJSON() ([]byte, error) {
	type plain TodoFields
	if !f.clearsDueDate() {
		return json.Marshal(plain(f))
	}
	return json.Marshal(struct {
		plain
		DueDate *Date `json:"due_date"`
	}{plain: plain(f)})
}

// UnmarshalJSON sets ClearDueDate for an explicit "due_date": null.
func (f *TodoFields) UnmarshalJSON(data []byte) error {
	type plain TodoFields
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if value, ok := raw["due_date"]; ok && bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
		decoded.ClearDueDate = true
	}
	*f = TodoFields(decoded)
	return nil
}

// formValues returns the fields in a stable order for multipart bodies.
func (f TodoFields) formValues() [][2]string {
	var values [][2]string
	if f.Title != nil {
		values = append(values, [2]string{"title", *f.Title})
	}
	if f.Description != nil {
		values = append(values, [2]string{"description", *f.Description})
	}
	if f.Status != nil {
		values = append(values, [2]string{"status", string(*f.Status)})
	}
	if f.Priority != nil {
		values = append(values, [2]string{"priority", string(*f.Priority)})
	}
	if f.DueDate != nil {
		values = append(values, [2]string{"due_date", f.DueDate.String()})
	} else if f.ClearDueDate {
		values = append(values, [2]string{"due_date", ""})
	}
	return values
}

// TodoPage is one page of a todo listing.
type TodoPage struct {
	Data  []Todo          `json:"data"`
	Links json.RawMessage `json:"links,omitempty"`
	Meta  json.RawMessage `json:"meta,omitempty"`
}

// ListQuery encodes the listing parameters the API understands.
type ListQuery struct {
	Search    string
	Status    Status
	Page      int
	PerPage   int
	SortBy    string
	SortOrder string
}

// Registration is the signup payload.
type Registration struct {
	FirstName            string `json:"first_name" validate:"required"`
	LastName             string `json:"last_name" validate:"required"`
	Company              string `json:"company,omitempty"`
	Email                string `json:"email" validate:"required,email"`
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required,eqfield=Password"`
}

// RegisterResponse is returned by a successful signup.
type RegisterResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user,omitempty"`
}

// AuthResponse is returned by login and, when the server opens a session
// on verification, by verify-otp.
type AuthResponse struct {
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
	User    *User  `json:"user,omitempty"`
}

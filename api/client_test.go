package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
)

type staticToken string

func (t staticToken) Token() (string, bool) {
	return string(t), t != ""
}

func newTestClient(t *testing.T, handler http.HandlerFunc, token string) (*Client, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return New(server.URL, Options{}).WithTokens(staticToken(token), nil), &hits
}

func TestAuthenticatedCallWithoutTokenSendsNothing(t *testing.T) {
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	}, "")

	_, err := client.ListTodos(context.Background(), ListQuery{})
	if !IsAuth(err, Unauthenticated) {
		t.Fatalf("expected unauthenticated error, got %v", err)
	}
	if atomic.LoadInt32(hits) != 0 {
		t.Fatalf("expected no request")
	}
}

func TestRequestHeaders(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("unexpected authorization %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("unexpected accept %q", got)
		}
		if _, err := uuid.Parse(r.Header.Get("X-Request-ID")); err != nil {
			t.Errorf("expected uuid request id: %v", err)
		}
		if got := r.URL.Query().Get("search"); got != "milk" {
			t.Errorf("unexpected search %q", got)
		}
		if got := r.URL.Query().Get("status"); got != "pending" {
			t.Errorf("unexpected status %q", got)
		}
		_, _ = io.WriteString(w, `{"data": [], "meta": {"total": 0}}`)
	}, "tok-1")

	page, err := client.ListTodos(context.Background(), ListQuery{Search: "milk", Status: StatusPending})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Data == nil || len(page.Data) != 0 {
		t.Fatalf("expected empty non-nil page, got %#v", page.Data)
	}
}

func TestGetTodoAcceptsWrappedAndBareBodies(t *testing.T) {
	bodies := map[string]string{
		"wrapped": `{"data": {"id": 7, "title": "Write report", "status": "pending", "due_date": "2026-03-04T00:00:00.000000Z"}}`,
		"bare":    `{"id": 7, "title": "Write report", "status": "pending", "due_date": "2026-03-04"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/todos/7" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				_, _ = io.WriteString(w, body)
			}, "tok")

			item, err := client.GetTodo(context.Background(), 7)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if item.ID != 7 || item.Title != "Write report" || item.Status != StatusPending {
				t.Fatalf("unexpected todo %+v", item)
			}
			if item.DueDate == nil || item.DueDate.String() != "2026-03-04" {
				t.Fatalf("unexpected due date %v", item.DueDate)
			}
		})
	}
}

func TestUpdateWithFileUsesMethodOverride(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if got := r.FormValue(MethodOverrideField); got != http.MethodPut {
			t.Errorf("expected method override PUT, got %q", got)
		}
		if got := r.FormValue("title"); got != "Signed contract" {
			t.Errorf("unexpected title %q", got)
		}
		file, header, err := r.FormFile(AttachmentField)
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "contract.pdf" || string(data) != "%PDF-1.4" {
			t.Errorf("unexpected file %q %q", header.Filename, data)
		}
		if got := header.Header.Get("Content-Type"); got != PDFMIMEType {
			t.Errorf("unexpected part type %q", got)
		}
		_, _ = io.WriteString(w, `{"data": {"id": 3, "title": "Signed contract"}}`)
	}, "tok")

	title := "Signed contract"
	file := &File{
		Name:        "contract.pdf",
		ContentType: PDFMIMEType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("%PDF-1.4")), nil
		},
	}
	item, err := client.UpdateTodo(context.Background(), 3, TodoFields{Title: &title}, file)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if item.Title != title {
		t.Fatalf("unexpected todo %+v", item)
	}
}

func TestUnauthorizedRunsHook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message": "Unauthenticated."}`)
	}))
	defer server.Close()

	expired := 0
	client := New(server.URL, Options{}).WithTokens(staticToken("stale"), func() { expired++ })
	_, err := client.GetTodo(context.Background(), 1)
	if expired != 1 {
		t.Fatalf("expected hook to run once, ran %d times", expired)
	}
	status, ok := StatusCode(err)
	if !ok || status != http.StatusUnauthorized {
		t.Fatalf("expected 401 status error, got %v", err)
	}
	if !IsAuth(Classify(err), Unauthenticated) {
		t.Fatalf("expected classified unauthenticated error")
	}
}

func TestTransportFailureIsNetworkUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := New(url, Options{})
	_, err := client.Login(context.Background(), "ada@example.com", "p@ss1234")
	if !errors.Is(err, ErrNetworkUnavailable) {
		t.Fatalf("expected network error, got %v", err)
	}
	if got := Message(err); got != "Network error. Please check your connection." {
		t.Fatalf("unexpected message %q", got)
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestUnreadableAttachmentIsLocal(t *testing.T) {
	diskErr := errors.New("disk on fire")
	cases := []struct {
		name string
		open func() (io.ReadCloser, error)
		sent bool
	}{
		{"open fails", func() (io.ReadCloser, error) { return nil, diskErr }, false},
		{"read fails", func() (io.ReadCloser, error) {
			return io.NopCloser(io.MultiReader(strings.NewReader("%PDF-1.4"), failingReader{diskErr})), nil
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(io.Discard, r.Body)
				w.WriteHeader(http.StatusBadRequest)
			}, "tok")

			title := "x"
			file := &File{Name: "gone.pdf", ContentType: PDFMIMEType, Open: tc.open}
			_, err := client.UpdateTodo(context.Background(), 3, TodoFields{Title: &title}, file)
			if !errors.Is(err, ErrAttachmentUnreadable) || !errors.Is(err, diskErr) {
				t.Fatalf("expected unreadable attachment, got %v", err)
			}
			if errors.Is(err, ErrNetworkUnavailable) || IsAmbiguous(Classify(err)) {
				t.Fatalf("expected a definite local error, got %v", err)
			}
			if got := Message(err); got != "Could not read the attached file." {
				t.Fatalf("unexpected message %q", got)
			}
			if !tc.sent && atomic.LoadInt32(hits) != 0 {
				t.Fatal("expected no request")
			}
		})
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		status int
		check  func(error) bool
		text   string
	}{
		{"unauthorized", 401, func(err error) bool { return IsAuth(err, Unauthenticated) }, "Your session has expired. Please log in again."},
		{"not found", 404, func(err error) bool { return errors.Is(err, ErrNotFound) }, "That todo no longer exists."},
		{"rate limited", 429, func(err error) bool { return IsAuth(err, RateLimited) }, "Too many attempts. Please try again later."},
		{"server", 503, func(err error) bool { return errors.Is(err, ErrServerFault) }, "Server error. Please try again later."},
		{"validation", 422, func(err error) bool {
			var validationErr *ValidationError
			return errors.As(err, &validationErr) && validationErr.First("title") == "The title field is required."
		}, "The title field is required."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := &StatusError{
				Status:  tc.status,
				Message: "Internal details",
				Fields:  map[string][]string{"title": {"The title field is required."}},
			}
			err := Classify(raw)
			if !tc.check(err) {
				t.Fatalf("unexpected classification %v", err)
			}
			if got := Message(err); got != tc.text {
				t.Fatalf("expected %q, got %q", tc.text, got)
			}
			if strings.Contains(Message(err), "Internal details") {
				t.Fatalf("message leaked server text")
			}
		})
	}
}

func TestIsAmbiguous(t *testing.T) {
	if !IsAmbiguous(Classify(&StatusError{Status: 500})) {
		t.Fatalf("expected 5xx to be ambiguous")
	}
	if IsAmbiguous(Classify(&StatusError{Status: 422})) {
		t.Fatalf("expected 422 to be definite")
	}
}

func TestTodoFieldsClearDueDate(t *testing.T) {
	data, err := json.Marshal(TodoFields{ClearDueDate: true})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"due_date":null}` {
		t.Fatalf("expected explicit null, got %s", data)
	}

	due, _ := ParseDate("2030-01-15")
	data, _ = json.Marshal(TodoFields{DueDate: &due, ClearDueDate: true})
	if string(data) != `{"due_date":"2030-01-15"}` {
		t.Fatalf("expected the date to win, got %s", data)
	}

	data, _ = json.Marshal(TodoFields{})
	if string(data) != `{}` {
		t.Fatalf("expected no due date key, got %s", data)
	}

	var decoded TodoFields
	if err := json.Unmarshal([]byte(`{"title":"x","due_date":null}`), &decoded); err != nil {
		t.Fatal(err)
	}
	if !decoded.ClearDueDate || decoded.DueDate != nil || decoded.Title == nil || *decoded.Title != "x" {
		t.Fatalf("unexpected decode %+v", decoded)
	}
	decoded = TodoFields{}
	if err := json.Unmarshal([]byte(`{"title":"x"}`), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.ClearDueDate {
		t.Fatal("expected a missing date to leave the date alone")
	}

	values := TodoFields{ClearDueDate: true}.formValues()
	if len(values) != 1 || values[0] != [2]string{"due_date", ""} {
		t.Fatalf("expected empty due_date form field, got %v", values)
	}
}

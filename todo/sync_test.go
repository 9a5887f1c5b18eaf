package todo

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/amonks/taskdash/api"
	"github.com/amonks/taskdash/internal/apitest"
)

const owner = "ada@example.com"

type fakeSession struct {
	mu      sync.Mutex
	token   string
	expired int
}

func (f *fakeSession) Token() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.token != ""
}

func (f *fakeSession) Expire() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.expired++
}

type fixture struct {
	srv     *apitest.Server
	session *fakeSession
	syncer  *Syncer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.New(t)
	srv.AddUser("Ada", "Lovelace", owner, "password123")
	session := &fakeSession{token: srv.IssueToken(owner)}
	syncer := NewSyncer(session, api.New(srv.URL, api.Options{}), nil, Options{})
	return &fixture{srv: srv, session: session, syncer: syncer}
}

func (f *fixture) seed(t *testing.T, n int) []Todo {
	t.Helper()
	var items []Todo
	for i := 0; i < n; i++ {
		items = append(items, f.srv.SeedTodo(owner, Todo{Title: "task", Description: "something to do"}))
	}
	return items
}

func (f *fixture) list(t *testing.T) []Todo {
	t.Helper()
	items, err := f.syncer.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return items
}

func serverIDs(f *fixture) []int64 {
	return ids(f.srv.Todos(owner))
}

var pdfContent = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func pdfUpload(t *testing.T, name string) *Upload {
	t.Helper()
	upload, err := SniffUpload(name, int64(len(pdfContent)), func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(pdfContent)), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return upload
}

func TestListReplacesCollection(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 3)

	items := f.list(t)
	if got := ids(items); !equalIDs(got, []int64{3, 2, 1}) {
		t.Fatalf("expected newest first, got %v", got)
	}
	if got := ids(f.syncer.Collection().Items()); !equalIDs(got, []int64{3, 2, 1}) {
		t.Fatalf("expected collection to hold the listing, got %v", got)
	}
}

func TestListSendsFilter(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 2)
	if _, err := f.syncer.SetStatus(context.Background(), 1, StatusCompleted); err != nil {
		t.Fatal(err)
	}

	items, err := f.syncer.List(context.Background(), Filter{Search: "task", Status: FilterCompleted})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(items); !equalIDs(got, []int64{1}) {
		t.Fatalf("expected only the completed todo, got %v", got)
	}

	requests := f.srv.Requests()
	last := requests[len(requests)-1]
	if last.Query != "search=task&status=completed" {
		t.Fatalf("unexpected query %q", last.Query)
	}

	if _, err := f.syncer.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	requests = f.srv.Requests()
	if requests[len(requests)-1].Query != last.Query {
		t.Fatal("expected reload to repeat the last filter")
	}
}

func TestNoTokenSendsNothing(t *testing.T) {
	f := newFixture(t)
	f.session.token = ""

	_, err := f.syncer.List(context.Background(), Filter{})
	if !api.IsAuth(err, api.Unauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if err := f.syncer.Remove(context.Background(), 1); !api.IsAuth(err, api.Unauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if n := len(f.srv.Requests()); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestRejectedTokenExpiresSession(t *testing.T) {
	f := newFixture(t)
	f.srv.RevokeTokens(owner)

	_, err := f.syncer.List(context.Background(), Filter{})
	if !api.IsAuth(err, api.Unauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if f.session.expired != 1 {
		t.Fatalf("expected session expired once, got %d", f.session.expired)
	}
}

func TestCreatePrependsOnce(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 2)
	f.list(t)

	due, _ := api.ParseDate("2025-06-01")
	item, err := f.syncer.Create(context.Background(), Draft{
		Title:       "  write report ",
		Description: "quarterly numbers",
		DueDate:     &due,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if item.Title != "write report" || item.Priority != PriorityMedium || item.Status != StatusPending {
		t.Fatalf("unexpected created todo %+v", item)
	}

	got := ids(f.syncer.Collection().Items())
	if !equalIDs(got, []int64{item.ID, 2, 1}) {
		t.Fatalf("expected new todo first exactly once, got %v", got)
	}
}

func TestCreateValidatesLocally(t *testing.T) {
	f := newFixture(t)
	f.list(t)
	f.srv.ResetRequests()

	_, err := f.syncer.Create(context.Background(), Draft{Title: " ", Description: ""}, nil)
	var verr *api.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.First("title") == "" || verr.First("description") == "" {
		t.Fatalf("expected title and description errors, got %v", verr.Fields)
	}
	if !errors.Is(err, ErrEmptyTitle) {
		t.Fatal("expected ErrEmptyTitle in chain")
	}
	if n := len(f.srv.Requests()); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestCreateRejectsNonPDF(t *testing.T) {
	f := newFixture(t)
	f.list(t)
	f.srv.ResetRequests()

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	upload, err := SniffUpload("diagram.pdf", int64(len(png)), func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(png)), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.syncer.Create(context.Background(), Draft{Title: "t", Description: "d"}, upload)
	if !errors.Is(err, ErrNotPDF) {
		t.Fatalf("expected ErrNotPDF, got %v", err)
	}
	if api.Message(err) != "Only PDF files are accepted." {
		t.Fatalf("unexpected message %q", api.Message(err))
	}
	if n := len(f.srv.Requests()); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
	if f.syncer.Collection().Len() != 0 {
		t.Fatal("expected collection untouched")
	}
}

func TestCreateWithAttachment(t *testing.T) {
	f := newFixture(t)
	item, err := f.syncer.Create(context.Background(), Draft{Title: "t", Description: "d"}, pdfUpload(t, "brief.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if len(item.Attachments) != 1 || item.Attachments[0].OriginalName != "brief.pdf" {
		t.Fatalf("expected attachment, got %+v", item.Attachments)
	}
	if item.PDFURL == nil {
		t.Fatal("expected pdf url")
	}
}

func TestCreateFailureLeavesCollection(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1)
	f.list(t)
	f.srv.Fail("POST /todos", http.StatusInternalServerError)

	_, err := f.syncer.Create(context.Background(), Draft{Title: "t", Description: "d"}, nil)
	if !errors.Is(err, api.ErrServerFault) {
		t.Fatalf("expected server fault, got %v", err)
	}
	if got := ids(f.syncer.Collection().Items()); !equalIDs(got, []int64{1}) {
		t.Fatalf("expected collection unchanged, got %v", got)
	}
}

func TestSetStatusRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1)
	f.list(t)
	ctx := context.Background()

	item, err := f.syncer.SetStatus(ctx, 1, StatusCompleted)
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", item.Status)
	}
	item, err = f.syncer.SetStatus(ctx, 1, StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != StatusPending {
		t.Fatalf("expected pending, got %s", item.Status)
	}
	if got, _ := f.syncer.Collection().Get(1); got.Status != StatusPending {
		t.Fatalf("expected collection pending, got %s", got.Status)
	}
	if f.srv.Count("GET /todos/:id") != 2 {
		t.Fatal("expected each update to re-read the todo")
	}
}

func TestSetStatusRejectsUnknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.syncer.SetStatus(context.Background(), 1, Status("archived"))
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if len(f.srv.Requests()) != 0 {
		t.Fatal("expected no requests")
	}
}

func TestToggle(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1)
	f.list(t)

	item, err := f.syncer.Toggle(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", item.Status)
	}
	if _, err := f.syncer.Toggle(context.Background(), 42); !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("expected ErrTodoNotFound, got %v", err)
	}
}

func TestUpdateEmptyPatch(t *testing.T) {
	f := newFixture(t)
	if _, err := f.syncer.Update(context.Background(), 1, Patch{}, nil); !errors.Is(err, ErrEmptyPatch) {
		t.Fatalf("expected ErrEmptyPatch, got %v", err)
	}
}

func TestUpdateWithAttachmentUsesMethodOverride(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1)
	f.list(t)

	title := "with file"
	item, err := f.syncer.Update(context.Background(), 1, Patch{Title: &title}, pdfUpload(t, "a.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if item.Title != title || len(item.Attachments) != 1 {
		t.Fatalf("unexpected todo %+v", item)
	}

	var found bool
	for _, req := range f.srv.Requests() {
		if req.Method == http.MethodPost && req.Route == "/todos/:id" {
			found = true
			if req.MethodOverride != http.MethodPut {
				t.Fatalf("expected _method=PUT, got %q", req.MethodOverride)
			}
		}
	}
	if !found {
		t.Fatal("expected multipart update to travel as POST")
	}
}

func TestUpdateClearsDueDate(t *testing.T) {
	for _, withFile := range []bool{false, true} {
		name := "json"
		if withFile {
			name = "multipart"
		}
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			due, _ := api.ParseDate("2030-01-15")
			f.srv.SeedTodo(owner, Todo{Title: "task", Description: "something to do", DueDate: &due})
			f.list(t)

			var upload *Upload
			if withFile {
				upload = pdfUpload(t, "a.pdf")
			}
			item, err := f.syncer.Update(context.Background(), 1, Patch{ClearDueDate: true}, upload)
			if err != nil {
				t.Fatal(err)
			}
			if item.DueDate != nil {
				t.Fatalf("expected due date cleared, got %v", item.DueDate)
			}
			if local, _ := f.syncer.Collection().Get(1); local.DueDate != nil {
				t.Fatalf("expected collection without due date, got %v", local.DueDate)
			}
			if remote := f.srv.Todos(owner); remote[0].DueDate != nil {
				t.Fatalf("expected server without due date, got %v", remote[0].DueDate)
			}
		})
	}
}

func TestUpdateOfTodoDeletedElsewhereClosesEditView(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 2)
	f.list(t)
	collection := f.syncer.Collection()
	if !collection.Edit(2) {
		t.Fatal("expected edit view")
	}
	f.srv.DeleteTodo(2)

	title := "renamed"
	_, err := f.syncer.Update(context.Background(), 2, Patch{Title: &title}, nil)
	if !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := ids(collection.Items()); !equalIDs(got, []int64{1}) {
		t.Fatalf("expected re-list without todo 2, got %v", got)
	}
	if editing, ok := collection.Editing(); ok {
		t.Fatalf("expected edit view closed, still open on %d", editing.ID)
	}
}

func TestUpdateDeterministicFailureDoesNotRelist(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1)
	f.list(t)
	f.srv.Fail("PUT /todos/:id", http.StatusUnprocessableEntity)

	title := "x"
	_, err := f.syncer.Update(context.Background(), 1, Patch{Title: &title}, nil)
	var verr *api.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if n := f.srv.Count("GET /todos"); n != 1 {
		t.Fatalf("expected no re-list, got %d listings", n)
	}
}

func TestUpdateWithVanishedAttachmentFailsLocally(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1)
	f.list(t)

	opened := 0
	upload, err := SniffUpload("gone.pdf", int64(len(pdfContent)), func() (io.ReadCloser, error) {
		opened++
		if opened > 1 {
			return nil, os.ErrNotExist
		}
		return io.NopCloser(bytes.NewReader(pdfContent)), nil
	})
	if err != nil {
		t.Fatal(err)
	}

	title := "x"
	_, err = f.syncer.Update(context.Background(), 1, Patch{Title: &title}, upload)
	if !errors.Is(err, api.ErrAttachmentUnreadable) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected unreadable attachment, got %v", err)
	}
	if errors.Is(err, api.ErrNetworkUnavailable) {
		t.Fatalf("local failure reported as network error: %v", err)
	}
	if n := f.srv.Count("GET /todos"); n != 1 {
		t.Fatalf("expected no re-list, got %d listings", n)
	}
	if item, _ := f.syncer.Collection().Get(1); item.Title == title {
		t.Fatal("expected collection unchanged")
	}
}

func TestToggledTodoLeavesFilteredView(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 2)
	if _, err := f.syncer.List(context.Background(), Filter{Status: FilterPending}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.syncer.Toggle(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if got := ids(f.syncer.Collection().Visible()); !equalIDs(got, []int64{2}) {
		t.Fatalf("expected completed todo hidden from pending view, got %v", got)
	}
	if n := f.srv.Count("GET /todos"); n != 1 {
		t.Fatalf("expected no re-list, got %d listings", n)
	}
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 3)
	f.list(t)

	if err := f.syncer.Remove(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.syncer.Collection().Get(2); ok {
		t.Fatal("expected todo removed from collection")
	}
	if got := serverIDs(f); !equalIDs(got, []int64{3, 1}) {
		t.Fatalf("expected server to keep [3 1], got %v", got)
	}
}

func TestBulkRemove(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 9)
	ctx := context.Background()
	if err := f.syncer.BulkRemove(ctx, []int64{4, 6, 7, 8}); err != nil {
		t.Fatal(err)
	}
	f.list(t)
	if got := ids(f.syncer.Collection().Items()); !equalIDs(got, []int64{9, 5, 3, 2, 1}) {
		t.Fatalf("unexpected starting set %v", got)
	}

	if err := f.syncer.BulkRemove(ctx, []int64{9, 2, 5, 5}); err != nil {
		t.Fatal(err)
	}
	if got := ids(f.syncer.Collection().Items()); !equalIDs(got, []int64{3, 1}) {
		t.Fatalf("expected [3 1], got %v", got)
	}
	if got := serverIDs(f); !equalIDs(got, []int64{3, 1}) {
		t.Fatalf("expected server [3 1], got %v", got)
	}
}

func TestBulkRemoveEmpty(t *testing.T) {
	f := newFixture(t)
	if err := f.syncer.BulkRemove(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(f.srv.Requests()) != 0 {
		t.Fatal("expected no requests")
	}
}

func TestBulkRemoveIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 3)
	f.list(t)

	err := f.syncer.BulkRemove(context.Background(), []int64{1, 99})
	if !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := ids(f.syncer.Collection().Items()); !equalIDs(got, []int64{3, 2, 1}) {
		t.Fatalf("expected nothing removed, got %v", got)
	}
	if f.srv.Count("GET /todos") != 2 {
		t.Fatal("expected a re-list after the ambiguous failure")
	}
}

func TestAmbiguousFailureRelists(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 2)
	f.list(t)
	f.srv.FailAfter("DELETE /todos/:id", http.StatusInternalServerError)

	err := f.syncer.Remove(context.Background(), 2)
	if !errors.Is(err, api.ErrServerFault) {
		t.Fatalf("expected server fault, got %v", err)
	}
	if got := ids(f.syncer.Collection().Items()); !equalIDs(got, []int64{1}) {
		t.Fatalf("expected re-list to show the applied delete, got %v", got)
	}
}

func TestFailedRelistKeepsCollection(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 2)
	f.list(t)
	f.srv.FailAfter("DELETE /todos/:id", http.StatusBadGateway)
	f.srv.Fail("GET /todos", http.StatusInternalServerError)

	if err := f.syncer.Remove(context.Background(), 2); err == nil {
		t.Fatal("expected error")
	}
	if got := ids(f.syncer.Collection().Items()); !equalIDs(got, []int64{2, 1}) {
		t.Fatalf("expected prior collection kept, got %v", got)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func TestResponseAfterCloseIsDropped(t *testing.T) {
	collection := NewCollection()
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		collection.Close()
		return http.DefaultTransport.RoundTrip(req)
	})
	f := newFixture(t)
	f.syncer = NewSyncer(f.session, api.New(f.srv.URL, api.Options{HTTPClient: &http.Client{Transport: transport}}), collection, Options{})
	f.seed(t, 2)

	items, err := f.syncer.List(context.Background(), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected the caller to see the result, got %d", len(items))
	}
	if collection.Loaded() || collection.Len() != 0 {
		t.Fatal("expected the closed collection to ignore the response")
	}
}

func TestRemoveAttachmentUpdatesEditView(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1)
	attachment, err := f.srv.SeedAttachment(1, "notes.pdf", pdfContent)
	if err != nil {
		t.Fatal(err)
	}
	f.list(t)
	collection := f.syncer.Collection()
	if !collection.Edit(1) {
		t.Fatal("expected edit view")
	}

	if err := f.syncer.RemoveAttachment(context.Background(), 1, attachment.ID); err != nil {
		t.Fatal(err)
	}
	editing, ok := collection.Editing()
	if !ok {
		t.Fatal("expected edit view to stay open")
	}
	if len(editing.Attachments) != 0 || editing.PDFURL != nil {
		t.Fatalf("expected edit view without attachment, got %+v", editing)
	}
	if item, _ := collection.Get(1); len(item.Attachments) != 0 {
		t.Fatal("expected collection without attachment")
	}
}

func TestDownloadAttachment(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1)
	if _, err := f.srv.SeedAttachment(1, "invoice.pdf", pdfContent); err != nil {
		t.Fatal(err)
	}
	f.list(t)
	dir := t.TempDir()

	path, err := f.syncer.DownloadAttachment(context.Background(), 1, "", dir)
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "invoice.pdf") {
		t.Fatalf("unexpected path %s", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(content, pdfContent) {
		t.Fatal("downloaded content differs")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the download in dir, got %d entries", len(entries))
	}
}

func TestDownloadFailureLeavesNothing(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 1)
	dir := t.TempDir()

	if _, err := f.syncer.DownloadAttachment(context.Background(), 1, "x.pdf", dir); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, got %d entries", len(entries))
	}
}

func TestDownloadName(t *testing.T) {
	s := &Syncer{collection: NewCollection()}
	tests := []struct {
		name string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"", "attachment-7.pdf"},
		{".hidden", "attachment-7.pdf"},
		{"/", "attachment-7.pdf"},
	}
	for _, tt := range tests {
		if got := s.downloadName(7, tt.name); got != tt.want {
			t.Errorf("downloadName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

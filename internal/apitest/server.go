// Package apitest runs an in-process fake of the task dashboard REST API
// for tests.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amonks/taskdash/api"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Request is a recorded call to the fake.
type Request struct {
	Method        string
	Route         string
	Path          string
	Query         string
	Authorization string
	ContentType   string
	// MethodOverride is the _method form field of a multipart request.
	MethodOverride string
	Status         int
}

type failure struct {
	status int
	// after runs the handler first, so the change is applied but the
	// client still sees the failure.
	after bool
}

type account struct {
	user     api.User
	hash     []byte
	verified bool
}

type pendingOTP struct {
	code    string
	expired bool
}

type record struct {
	owner string
	todo  api.Todo
	files map[int64][]byte
}

// Server is a fake API server backed by memory.
type Server struct {
	*httptest.Server

	// IssueTokenOnVerify makes verify-otp open a session.
	IssueTokenOnVerify bool
	// Now is the server clock.
	Now func() time.Time

	mu         sync.Mutex
	accounts   map[string]*account
	otps       map[string]*pendingOTP
	tokens     map[string]string
	todos      map[int64]*record
	nextUser   int64
	nextTodo   int64
	nextFile   int64
	lastStamp  time.Time
	failures   map[string]failure
	requests   []Request
	otpCounter int
}

// New starts a fake server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := NewServer()
	t.Cleanup(s.Close)
	return s
}

// NewServer starts a fake server. The caller closes it.
func NewServer() *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		Now:      time.Now,
		accounts: map[string]*account{},
		otps:     map[string]*pendingOTP{},
		tokens:   map[string]string{},
		todos:    map[int64]*record{},
		failures: map[string]failure{},
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.record, s.inject)

	r.POST("/register", s.register)
	r.POST("/verify-otp", s.verifyOTP)
	r.POST("/resend-otp", s.resendOTP)
	r.POST("/login", s.login)

	authed := r.Group("", s.requireToken)
	authed.POST("/logout", s.logout)
	authed.GET("/todos", s.listTodos)
	authed.POST("/todos", s.createTodo)
	authed.DELETE("/todos/bulk-delete", s.bulkDelete)
	authed.GET("/todos/:id", s.getTodo)
	authed.PUT("/todos/:id", s.updateTodo)
	authed.POST("/todos/:id", s.updateTodoMultipart)
	authed.DELETE("/todos/:id", s.deleteTodo)
	authed.GET("/todos/:id/download-pdf", s.downloadPDF)
	authed.DELETE("/todos/:id/delete-pdf", s.deletePDF)
	return r
}

// Fail makes every call to route answer with status without touching
// state. Route is "METHOD /path" using gin's pattern, e.g.
// "DELETE /todos/:id".
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status}
}

// FailAfter applies the change for route but answers with status.
func (s *Server) FailAfter(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, after: true}
}

// Recover removes an injected failure.
func (s *Server) Recover(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

// Requests returns the recorded calls in order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many calls hit route.
func (s *Server) Count(route string) int {
	count := 0
	for _, req := range s.Requests() {
		if req.Method+" "+req.Route == route {
			count++
		}
	}
	return count
}

// ResetRequests forgets recorded calls.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *Server) record(c *gin.Context) {
	c.Next()
	req := Request{
		Method:        c.Request.Method,
		Route:         c.FullPath(),
		Path:          c.Request.URL.Path,
		Query:         c.Request.URL.RawQuery,
		Authorization: c.GetHeader("Authorization"),
		ContentType:   c.ContentType(),
		Status:        c.Writer.Status(),
	}
	if c.Request.MultipartForm != nil {
		if values := c.Request.MultipartForm.Value[api.MethodOverrideField]; len(values) > 0 {
			req.MethodOverride = values[0]
		}
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
}

func (s *Server) inject(c *gin.Context) {
	route := c.Request.Method + " " + c.FullPath()
	s.mu.Lock()
	f, ok := s.failures[route]
	s.mu.Unlock()
	if !ok {
		c.Next()
		return
	}
	if f.after {
		original := c.Writer
		c.Writer = &discardWriter{ResponseWriter: original}
		c.Next()
		c.Writer = original
	}
	c.AbortWithStatusJSON(f.status, gin.H{"message": http.StatusText(f.status)})
}

// discardWriter swallows a handler's response so an injected failure can
// be written instead.
type discardWriter struct {
	gin.ResponseWriter
	status int
}

func (w *discardWriter) WriteHeader(code int)                { w.status = code }
func (w *discardWriter) WriteHeaderNow()                     {}
func (w *discardWriter) Write(data []byte) (int, error)      { return len(data), nil }
func (w *discardWriter) WriteString(data string) (int, error) { return len(data), nil }
func (w *discardWriter) Written() bool                       { return false }

func (s *Server) requireToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	s.mu.Lock()
	email, found := s.tokens[token]
	s.mu.Unlock()
	if !ok || !found {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated."})
		return
	}
	c.Set("email", email)
	c.Set("token", token)
	c.Next()
}

// AddUser creates a verified account.
func (s *Server) AddUser(firstName, lastName, email, password string) api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.newAccount(api.Registration{FirstName: firstName, LastName: lastName, Email: email, Password: password})
	acct.verified = true
	return acct.user
}

// IssueToken returns a valid token for email without a login call.
func (s *Server) IssueToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.NewString()
	s.tokens[token] = email
	return token
}

// RevokeTokens invalidates every token issued to email.
func (s *Server) RevokeTokens(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, owner := range s.tokens {
		if owner == email {
			delete(s.tokens, token)
		}
	}
}

// TokenValid reports whether token is still accepted.
func (s *Server) TokenValid(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[token]
	return ok
}

// OTP returns the code pending for email.
func (s *Server) OTP(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, ok := s.otps[email]
	if !ok {
		return "", false
	}
	return pending.code, true
}

// ExpireOTP makes the pending code for email stale.
func (s *Server) ExpireOTP(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pending, ok := s.otps[email]; ok {
		pending.expired = true
	}
}

// Verified reports whether the account for email has been verified.
func (s *Server) Verified(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[email]
	return ok && acct.verified
}

// SeedTodo stores item for owner, assigning server fields.
func (s *Server) SeedTodo(owner string, item api.Todo) api.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.Status == "" {
		item.Status = api.StatusPending
	}
	if item.Priority == "" {
		item.Priority = api.PriorityMedium
	}
	rec := s.insert(owner, item)
	return s.view(rec)
}

// SeedAttachment attaches content to an existing todo.
func (s *Server) SeedAttachment(id int64, name string, content []byte) (api.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.todos[id]
	if !ok {
		return api.Attachment{}, fmt.Errorf("todo %d not found", id)
	}
	return s.attach(rec, name, content), nil
}

// DeleteTodo removes a todo as another client would.
func (s *Server) DeleteTodo(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.todos, id)
}

// Todos returns a snapshot of owner's todos, newest first.
func (s *Server) Todos(owner string) []api.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []api.Todo
	for _, rec := range s.sorted() {
		if rec.owner == owner {
			items = append(items, s.view(rec))
		}
	}
	return items
}

func (s *Server) newAccount(reg api.Registration) *account {
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.nextUser++
	acct := &account{
		user: api.User{
			ID:        s.nextUser,
			FirstName: reg.FirstName,
			LastName:  reg.LastName,
			Company:   reg.Company,
			Email:     reg.Email,
		},
		hash: hash,
	}
	s.accounts[reg.Email] = acct
	return acct
}

func (s *Server) issueOTP(email string) string {
	s.otpCounter++
	code := fmt.Sprintf("%06d", (s.otpCounter*271828)%1000000)
	s.otps[email] = &pendingOTP{code: code}
	return code
}

// stamp returns a strictly increasing timestamp.
func (s *Server) stamp() time.Time {
	now := s.Now().UTC().Truncate(time.Microsecond)
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = now
	return now
}

func (s *Server) insert(owner string, item api.Todo) *record {
	s.nextTodo++
	now := s.stamp()
	item.ID = s.nextTodo
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Attachments = nil
	rec := &record{owner: owner, todo: item, files: map[int64][]byte{}}
	s.todos[item.ID] = rec
	return rec
}

func (s *Server) attach(rec *record, name string, content []byte) api.Attachment {
	for id := range rec.files {
		delete(rec.files, id)
	}
	s.nextFile++
	now := s.stamp()
	attachment := api.Attachment{
		ID:           s.nextFile,
		TodoID:       rec.todo.ID,
		StoredName:   "pdfs/" + uuid.NewString() + ".pdf",
		OriginalName: name,
		SizeBytes:    int64(len(content)),
		MIMEType:     api.PDFMIMEType,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	rec.todo.Attachments = []api.Attachment{attachment}
	rec.files[attachment.ID] = content
	rec.todo.UpdatedAt = now
	return attachment
}

// sorted returns records newest first.
func (s *Server) sorted() []*record {
	records := make([]*record, 0, len(s.todos))
	for _, rec := range s.todos {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].todo.ID > records[j].todo.ID
	})
	return records
}

// view fills in the derived fields.
func (s *Server) view(rec *record) api.Todo {
	item := rec.todo
	item.Attachments = append([]api.Attachment(nil), rec.todo.Attachments...)
	if item.Attachments == nil {
		item.Attachments = []api.Attachment{}
	}
	item.IsOverdue = false
	item.IsDueToday = false
	if item.DueDate != nil {
		today := s.Now().UTC().Truncate(24 * time.Hour)
		due := item.DueDate.UTC().Truncate(24 * time.Hour)
		item.IsDueToday = due.Equal(today)
		item.IsOverdue = due.Before(today) && item.Status == api.StatusPending
	}
	if len(item.Attachments) > 0 {
		url := fmt.Sprintf("%s/todos/%d/download-pdf", s.URL, item.ID)
		item.PDFURL = &url
	} else {
		item.PDFURL = nil
	}
	return item
}

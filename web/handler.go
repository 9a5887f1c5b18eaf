package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amonks/taskdash/api"
	"github.com/amonks/taskdash/internal/credstore"
	internalstrings "github.com/amonks/taskdash/internal/strings"
	"github.com/amonks/taskdash/session"
	"github.com/amonks/taskdash/todo"
	"github.com/charmbracelet/log"
)

// maxFormMemory bounds the multipart form kept in memory; larger parts
// spill to disk.
const maxFormMemory = 8 << 20

// Options configures the dashboard handler.
type Options struct {
	// Client talks to the task API.
	Client *api.Client
	Logger *log.Logger
	// Secure marks the auth cookie https-only.
	Secure bool
	Now    func() time.Time
}

// Handler serves the task dashboard.
type Handler struct {
	client    *api.Client
	logger    *log.Logger
	secure    bool
	now       func() time.Time
	mux       *http.ServeMux
	guarded   http.Handler
	templates *templateWrapper
	metrics   *metrics

	mu      sync.Mutex
	flashes map[string]*flash
	// otpSent remembers when each pending signup last got a code.
	otpSent map[string]time.Time
}

// flash carries a form error across the redirect that follows a POST.
type flash struct {
	err       string
	values    todoFormValues
	hasValues bool
}

// NewHandler creates a dashboard handler. Every route except the metrics
// endpoint sits behind Guard.
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	handler := &Handler{
		client:    opts.Client,
		logger:    logger,
		secure:    opts.Secure,
		now:       now,
		templates: newTemplateWrapper(),
		metrics:   newMetrics(),
		flashes:   map[string]*flash{},
		otpSent:   map[string]time.Time{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/login", handler.handleLogin)
	mux.HandleFunc(SignupPath, handler.handleSignup)
	mux.HandleFunc(VerifyPath, handler.handleVerifyOTP)
	mux.HandleFunc("/logout", handler.handleLogout)
	mux.HandleFunc("/dashboard", handler.handleDashboard)
	mux.HandleFunc("/todos/create", handler.handleTodosCreate)
	mux.HandleFunc("/todos/update", handler.handleTodosUpdate)
	mux.HandleFunc("/todos/status", handler.handleTodosStatus)
	mux.HandleFunc("/todos/delete", handler.handleTodosDelete)
	mux.HandleFunc("/todos/bulk-delete", handler.handleTodosBulkDelete)
	mux.HandleFunc("/todos/attachment/delete", handler.handleAttachmentDelete)
	mux.HandleFunc("/todos/attachment/download", handler.handleAttachmentDownload)
	mux.Handle("/metrics", handler.metrics.handler())
	handler.mux = mux
	handler.guarded = Guard(mux)
	return handler
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := h.now()
	recorder := &statusRecorder{ResponseWriter: w}
	h.metrics.active.Inc()
	defer h.metrics.active.Dec()

	h.guarded.ServeHTTP(recorder, r)

	status := recorder.status
	if status == 0 {
		status = http.StatusOK
	}
	_, route := h.mux.Handler(r)
	if route == "" {
		route = "unmatched"
	}
	elapsed := h.now().Sub(started)
	h.metrics.observe(r.Method, route, status, elapsed)
	h.logger.Info("request", "method", r.Method, "path", r.URL.Path, "status", status,
		"elapsed", elapsed.Round(time.Millisecond))
}

// requestSession builds a session around the request's token. Anything the
// session writes to its credential store comes back as a Set-Cookie header.
func (h *Handler) requestSession(w http.ResponseWriter, r *http.Request) *session.Manager {
	store := credstore.NewMemoryStore(credstore.ResponseCookie{W: w, Secure: h.secure})
	if token := requestToken(r); token != "" {
		if err := store.Session.Set(credstore.TokenKey, token); err != nil {
			h.logger.Warn("seed request session", "err", err)
		}
	}
	return session.New(h.client, store, session.Options{Logger: h.logger, Now: h.now})
}

func (h *Handler) requestSyncer(w http.ResponseWriter, r *http.Request) *todo.Syncer {
	return todo.NewSyncer(h.requestSession(w, r), h.client, nil, todo.Options{Logger: h.logger})
}

type templateWrapper struct {
	tmpl *template.Template
}

func newTemplateWrapper() *templateWrapper {
	return &templateWrapper{tmpl: newTemplates()}
}

func (tw *templateWrapper) Render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = tw.tmpl.ExecuteTemplate(w, name, data)
}

type selectOption struct {
	Value string
	Label string
}

type loginData struct {
	Email    string
	Remember bool
	Notice   string
	Error    string
}

type pageData struct {
	Todos           []todo.Todo
	Analytics       todo.Analytics
	Search          string
	Status          string
	Editing         *todo.Todo
	Form            todoFormValues
	EditForm        todoFormValues
	Error           string
	StatusOptions   []selectOption
	FilterOptions   []selectOption
	PriorityOptions []selectOption
}

type todoFormValues struct {
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     string
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.templates.Render(w, "login", loginData{Remember: true})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			h.templates.Render(w, "login", loginData{Error: "invalid form input"})
			return
		}
		data := loginData{
			Email:    trimmedFormValue(r, "email"),
			Remember: r.FormValue("remember") != "",
		}
		manager := h.requestSession(w, r)
		if _, err := manager.Login(r.Context(), data.Email, r.FormValue("password"), data.Remember); err != nil {
			h.metrics.logins.WithLabelValues("failure").Inc()
			data.Error = api.Message(err)
			h.templates.Render(w, "login", data)
			return
		}
		h.metrics.logins.WithLabelValues("success").Inc()
		http.Redirect(w, r, HomePath, http.StatusSeeOther)
	default:
		writeMethodNotAllowed(w, http.MethodGet+", "+http.MethodPost)
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	token := requestToken(r)
	if err := h.requestSession(w, r).Logout(r.Context()); err != nil {
		h.logger.Warn("logout", "err", err)
	}
	h.mu.Lock()
	delete(h.flashes, token)
	h.mu.Unlock()
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	query := r.URL.Query()
	search := trimmedValue(query.Get("search"))
	statusFilter, err := todo.ParseStatusFilter(trimmedValue(query.Get("status")))
	if err != nil {
		statusFilter = todo.FilterAll
	}

	syncer := h.requestSyncer(w, r)
	items, err := syncer.List(r.Context(), todo.Filter{Search: search, Status: statusFilter})
	if h.redirectIfExpired(w, r, err) {
		return
	}
	data := pageData{
		Todos:           syncer.Collection().Visible(),
		Analytics:       todo.Summarize(items, h.now()),
		Search:          search,
		Status:          string(statusFilter),
		Form:            defaultTodoFormValues(),
		StatusOptions:   statusOptions(),
		FilterOptions:   filterOptions(),
		PriorityOptions: priorityOptions(),
	}
	if err != nil {
		data.Error = api.Message(err)
	}

	collection := syncer.Collection()
	if id, err := strconv.ParseInt(query.Get("edit"), 10, 64); err == nil && collection.Edit(id) {
		editing, _ := collection.Editing()
		data.Editing = &editing
		data.EditForm = todoFormValuesFromTodo(editing)
	}

	if f := h.consumeFlash(requestToken(r)); f != nil {
		data.Error = f.err
		if f.hasValues {
			if data.Editing != nil {
				data.EditForm = f.values
			} else {
				data.Form = f.values
			}
		}
	}
	h.templates.Render(w, "page", data)
}

func (h *Handler) handleTodosCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if err := parseForm(w, r); err != nil {
		h.setFlash(r, flash{err: "invalid form input"})
		http.Redirect(w, r, HomePath, http.StatusSeeOther)
		return
	}
	values := todoFormValuesFromRequest(r)
	draft, err := values.draft()
	if err != nil {
		h.setFlash(r, flash{err: api.Message(err), values: values, hasValues: true})
		http.Redirect(w, r, HomePath, http.StatusSeeOther)
		return
	}
	upload, err := formUpload(r)
	if err != nil {
		h.setFlash(r, flash{err: api.Message(err), values: values, hasValues: true})
		http.Redirect(w, r, HomePath, http.StatusSeeOther)
		return
	}

	_, err = h.requestSyncer(w, r).Create(r.Context(), draft, upload)
	if h.redirectIfExpired(w, r, err) {
		return
	}
	if err != nil {
		h.setFlash(r, flash{err: api.Message(err), values: values, hasValues: true})
	}
	http.Redirect(w, r, HomePath, http.StatusSeeOther)
}

func (h *Handler) handleTodosUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	id, ok := h.requireID(w, r, "id")
	if !ok {
		return
	}
	target := editPath(id)
	if err := parseForm(w, r); err != nil {
		h.setFlash(r, flash{err: "invalid form input"})
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	values := todoFormValuesFromRequest(r)
	patch, err := values.patch()
	if err != nil {
		h.setFlash(r, flash{err: api.Message(err), values: values, hasValues: true})
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	upload, err := formUpload(r)
	if err != nil {
		h.setFlash(r, flash{err: api.Message(err), values: values, hasValues: true})
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	_, err = h.requestSyncer(w, r).Update(r.Context(), id, patch, upload)
	if h.redirectIfExpired(w, r, err) {
		return
	}
	if err != nil {
		h.setFlash(r, flash{err: api.Message(err), values: values, hasValues: true})
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) handleTodosStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	id, ok := h.requireID(w, r, "id")
	if !ok {
		return
	}
	status, err := todo.ParseStatus(r.FormValue("status"))
	if err == nil {
		_, err = h.requestSyncer(w, r).SetStatus(r.Context(), id, status)
	}
	h.finish(w, r, err, returnPath(r))
}

func (h *Handler) handleTodosDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	id, ok := h.requireID(w, r, "id")
	if !ok {
		return
	}
	err := h.requestSyncer(w, r).Remove(r.Context(), id)
	h.finish(w, r, err, HomePath)
}

func (h *Handler) handleTodosBulkDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.finish(w, r, errors.New("invalid form input"), HomePath)
		return
	}
	ids := make([]int64, 0, len(r.PostForm["ids"]))
	for _, raw := range r.PostForm["ids"] {
		id, err := strconv.ParseInt(trimmedValue(raw), 10, 64)
		if err != nil {
			h.finish(w, r, fmt.Errorf("invalid todo id %q", raw), HomePath)
			return
		}
		ids = append(ids, id)
	}
	err := h.requestSyncer(w, r).BulkRemove(r.Context(), ids)
	h.finish(w, r, err, HomePath)
}

func (h *Handler) handleAttachmentDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	id, ok := h.requireID(w, r, "id")
	if !ok {
		return
	}
	attachmentID, ok := h.requireID(w, r, "attachment")
	if !ok {
		return
	}
	err := h.requestSyncer(w, r).RemoveAttachment(r.Context(), id, attachmentID)
	h.finish(w, r, err, editPath(id))
}

func (h *Handler) handleAttachmentDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	id, ok := h.requireID(w, r, "id")
	if !ok {
		return
	}
	manager := h.requestSession(w, r)
	body, err := manager.Client().DownloadAttachment(r.Context(), id)
	if err != nil {
		h.finish(w, r, api.Classify(err), HomePath)
		return
	}
	defer body.Close()

	name := trimmedQueryValue(r, "name")
	if name == "" || strings.ContainsAny(name, "\"\r\n/\\") {
		name = fmt.Sprintf("attachment-%d.pdf", id)
	}
	w.Header().Set("Content-Type", api.PDFMIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("stream attachment", "id", id, "err", err)
	}
}

// finish redirects to target, carrying err as a flash. An expired session
// goes to the login page instead.
func (h *Handler) finish(w http.ResponseWriter, r *http.Request, err error, target string) {
	if h.redirectIfExpired(w, r, err) {
		return
	}
	if err != nil {
		h.setFlash(r, flash{err: api.Message(err)})
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// redirectIfExpired sends the visitor to the login page when the API
// rejected the token. The cookie has already been cleared by then.
func (h *Handler) redirectIfExpired(w http.ResponseWriter, r *http.Request, err error) bool {
	if !api.IsAuth(err, api.Unauthenticated) {
		return false
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
	return true
}

func (h *Handler) requireID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(trimmedQueryValue(r, key), 10, 64)
	if err != nil || id <= 0 {
		h.finish(w, r, fmt.Errorf("%s is required", key), HomePath)
		return 0, false
	}
	return id, true
}

func (h *Handler) setFlash(r *http.Request, f flash) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.flashes[requestToken(r)] = &f
}

func (h *Handler) consumeFlash(token string) *flash {
	h.mu.Lock()
	defer h.mu.Unlock()
	f := h.flashes[token]
	delete(h.flashes, token)
	return f
}

func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, todo.MaxAttachmentSize+maxFormMemory)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		return r.ParseMultipartForm(maxFormMemory)
	}
	return r.ParseForm()
}

// formUpload returns the PDF posted with the form, if any.
func formUpload(r *http.Request) (*todo.Upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	files := r.MultipartForm.File[api.AttachmentField]
	if len(files) == 0 || files[0].Filename == "" {
		return nil, nil
	}
	header := files[0]
	return todo.SniffUpload(header.Filename, header.Size, func() (io.ReadCloser, error) {
		return header.Open()
	})
}

func defaultTodoFormValues() todoFormValues {
	return todoFormValues{
		Status:   string(todo.StatusPending),
		Priority: string(todo.PriorityMedium),
	}
}

func todoFormValuesFromTodo(item todo.Todo) todoFormValues {
	values := todoFormValues{
		Title:       item.Title,
		Description: item.Description,
		Status:      string(item.Status),
		Priority:    string(item.Priority),
	}
	if item.DueDate != nil {
		values.DueDate = item.DueDate.String()
	}
	return values
}

func todoFormValuesFromRequest(r *http.Request) todoFormValues {
	return todoFormValues{
		Title:       trimmedFormValue(r, "title"),
		Description: internalstrings.NormalizeNewlines(r.FormValue("description")),
		Status:      trimmedFormValue(r, "status"),
		Priority:    trimmedFormValue(r, "priority"),
		DueDate:     trimmedFormValue(r, "due_date"),
	}
}

func (values todoFormValues) dueDate() (*todo.Date, error) {
	if values.DueDate == "" {
		return nil, nil
	}
	due, err := api.ParseDate(values.DueDate)
	if err != nil {
		return nil, api.FieldError("due_date", "The due date field must be a valid date.", err)
	}
	return &due, nil
}

func (values todoFormValues) draft() (todo.Draft, error) {
	draft := todo.Draft{Title: values.Title, Description: values.Description}
	if values.Priority != "" {
		priority, err := todo.ParsePriority(values.Priority)
		if err != nil {
			return todo.Draft{}, err
		}
		draft.Priority = priority
	}
	due, err := values.dueDate()
	if err != nil {
		return todo.Draft{}, err
	}
	draft.DueDate = due
	return draft, nil
}

func (values todoFormValues) patch() (todo.Patch, error) {
	title := values.Title
	description := values.Description
	patch := todo.Patch{Title: &title, Description: &description}
	if values.Status != "" {
		status, err := todo.ParseStatus(values.Status)
		if err != nil {
			return todo.Patch{}, err
		}
		patch.Status = &status
	}
	if values.Priority != "" {
		priority, err := todo.ParsePriority(values.Priority)
		if err != nil {
			return todo.Patch{}, err
		}
		patch.Priority = &priority
	}
	due, err := values.dueDate()
	if err != nil {
		return todo.Patch{}, err
	}
	// The edit form always carries the date input; empty means no due date.
	patch.DueDate = due
	patch.ClearDueDate = due == nil
	return patch, nil
}

func trimmedValue(value string) string {
	return strings.TrimSpace(value)
}

func trimmedQueryValue(r *http.Request, key string) string {
	return trimmedValue(r.URL.Query().Get(key))
}

func trimmedFormValue(r *http.Request, key string) string {
	return trimmedValue(r.FormValue(key))
}

func editPath(id int64) string {
	return HomePath + "?edit=" + strconv.FormatInt(id, 10)
}

// returnPath keeps the visitor on the view they acted from.
func returnPath(r *http.Request) string {
	if edit := trimmedValue(r.FormValue("return_edit")); edit != "" {
		if id, err := strconv.ParseInt(edit, 10, 64); err == nil {
			return editPath(id)
		}
	}
	return HomePath
}

func statusOptions() []selectOption {
	options := make([]selectOption, 0, len(todo.ValidStatuses()))
	for _, status := range todo.ValidStatuses() {
		options = append(options, selectOption{Value: string(status), Label: string(status)})
	}
	return options
}

func filterOptions() []selectOption {
	options := make([]selectOption, 0, len(todo.ValidStatusFilters()))
	for _, filter := range todo.ValidStatusFilters() {
		options = append(options, selectOption{Value: string(filter), Label: string(filter)})
	}
	return options
}

func priorityOptions() []selectOption {
	options := make([]selectOption, 0, len(todo.ValidPriorities()))
	for _, priority := range todo.ValidPriorities() {
		options = append(options, selectOption{Value: string(priority), Label: string(priority)})
	}
	return options
}

func writeMethodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

// Serve runs the dashboard on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *log.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
	}()
	logger.Info("dashboard listening", "addr", addr)

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdown)
	}
}

package apitest

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/amonks/taskdash/api"
	"github.com/gin-gonic/gin"
)

const maxUpload = 20 << 20

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "Todo not found"})
		return 0, false
	}
	return id, true
}

// owned returns the record for id if it belongs to the caller. The caller
// holds s.mu.
func (s *Server) owned(c *gin.Context, id int64) (*record, bool) {
	rec, ok := s.todos[id]
	if !ok || rec.owner != c.GetString("email") {
		c.JSON(http.StatusNotFound, gin.H{"message": "Todo not found"})
		return nil, false
	}
	return rec, true
}

func (s *Server) listTodos(c *gin.Context) {
	search := strings.ToLower(strings.TrimSpace(c.Query("search")))
	status := api.Status(c.Query("status"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "100"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	owner := c.GetString("email")
	var matched []api.Todo
	for _, rec := range s.sorted() {
		if rec.owner != owner {
			continue
		}
		if status != "" && status != "all" && rec.todo.Status != status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(rec.todo.Title), search) &&
			!strings.Contains(strings.ToLower(rec.todo.Description), search) {
			continue
		}
		matched = append(matched, s.view(rec))
	}

	total := len(matched)
	start := min((page-1)*perPage, total)
	end := min(start+perPage, total)
	data := matched[start:end]
	if data == nil {
		data = []api.Todo{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  data,
		"links": gin.H{},
		"meta": gin.H{
			"current_page": page,
			"per_page":     perPage,
			"total":        total,
		},
	})
}

func (s *Server) getTodo(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.owned(c, id)
	if !ok {
		return
	}
	// Single reads come back without an envelope.
	c.JSON(http.StatusOK, s.view(rec))
}

type upload struct {
	name        string
	contentType string
	content     []byte
}

// readFields reads scalar fields from a JSON or multipart body.
func readFields(c *gin.Context) (api.TodoFields, *upload, map[string][]string, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var fields api.TodoFields
		if err := c.ShouldBindJSON(&fields); err != nil {
			return fields, nil, nil, err
		}
		return fields, nil, nil, nil
	}

	if _, err := c.MultipartForm(); err != nil {
		return api.TodoFields{}, nil, nil, err
	}
	var fields api.TodoFields
	problems := map[string][]string{}
	if value, ok := c.GetPostForm("title"); ok {
		fields.Title = &value
	}
	if value, ok := c.GetPostForm("description"); ok {
		fields.Description = &value
	}
	if value, ok := c.GetPostForm("status"); ok {
		status := api.Status(value)
		fields.Status = &status
	}
	if value, ok := c.GetPostForm("priority"); ok {
		priority := api.Priority(value)
		fields.Priority = &priority
	}
	if value, ok := c.GetPostForm("due_date"); ok && value == "" {
		fields.ClearDueDate = true
	} else if ok {
		date, err := api.ParseDate(value)
		if err != nil {
			problems["due_date"] = []string{"The due date field must be a valid date."}
		} else {
			fields.DueDate = &date
		}
	}

	header, err := c.FormFile(api.AttachmentField)
	if err == http.ErrMissingFile {
		return fields, nil, problems, nil
	}
	if err != nil {
		return fields, nil, nil, err
	}
	if header.Header.Get("Content-Type") != api.PDFMIMEType {
		problems["pdf"] = []string{"The pdf field must be a file of type: pdf."}
	}
	if header.Size > maxUpload {
		problems["pdf"] = append(problems["pdf"], "The pdf field must not be greater than 20480 kilobytes.")
	}
	file, err := header.Open()
	if err != nil {
		return fields, nil, nil, err
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		return fields, nil, nil, err
	}
	return fields, &upload{name: header.Filename, contentType: header.Header.Get("Content-Type"), content: content}, problems, nil
}

func checkFields(fields api.TodoFields, creating bool, problems map[string][]string) map[string][]string {
	if problems == nil {
		problems = map[string][]string{}
	}
	if (creating && fields.Title == nil) || (fields.Title != nil && strings.TrimSpace(*fields.Title) == "") {
		problems["title"] = []string{"The title field is required."}
	}
	if (creating && fields.Description == nil) || (fields.Description != nil && strings.TrimSpace(*fields.Description) == "") {
		problems["description"] = []string{"The description field is required."}
	}
	if fields.Status != nil && !fields.Status.IsValid() {
		problems["status"] = []string{"The selected status is invalid."}
	}
	if fields.Priority != nil && !fields.Priority.IsValid() {
		problems["priority"] = []string{"The selected priority is invalid."}
	}
	return problems
}

func (s *Server) createTodo(c *gin.Context) {
	fields, file, problems, err := readFields(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("Invalid request: %v", err)})
		return
	}
	if problems = checkFields(fields, true, problems); len(problems) > 0 {
		unprocessable(c, problems)
		return
	}

	item := api.Todo{
		Title:       *fields.Title,
		Description: *fields.Description,
		Status:      api.StatusPending,
		Priority:    api.PriorityMedium,
		DueDate:     fields.DueDate,
	}
	if fields.Priority != nil {
		item.Priority = *fields.Priority
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.insert(c.GetString("email"), item)
	if file != nil {
		s.attach(rec, file.name, file.content)
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Todo created successfully", "data": s.view(rec)})
}

func (s *Server) updateTodo(c *gin.Context) {
	s.applyUpdate(c)
}

func (s *Server) updateTodoMultipart(c *gin.Context) {
	if c.PostForm(api.MethodOverrideField) != http.MethodPut {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"message": "The POST method is not supported for this route."})
		return
	}
	s.applyUpdate(c)
}

func (s *Server) applyUpdate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	fields, file, problems, err := readFields(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("Invalid request: %v", err)})
		return
	}
	if problems = checkFields(fields, false, problems); len(problems) > 0 {
		unprocessable(c, problems)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.owned(c, id)
	if !ok {
		return
	}
	if fields.Title != nil {
		rec.todo.Title = *fields.Title
	}
	if fields.Description != nil {
		rec.todo.Description = *fields.Description
	}
	if fields.Status != nil {
		rec.todo.Status = *fields.Status
	}
	if fields.Priority != nil {
		rec.todo.Priority = *fields.Priority
	}
	if fields.DueDate != nil {
		due := *fields.DueDate
		rec.todo.DueDate = &due
	} else if fields.ClearDueDate {
		rec.todo.DueDate = nil
	}
	rec.todo.UpdatedAt = s.stamp()
	if file != nil {
		s.attach(rec, file.name, file.content)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Todo updated successfully", "data": s.view(rec)})
}

func (s *Server) deleteTodo(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owned(c, id); !ok {
		return
	}
	delete(s.todos, id)
	c.JSON(http.StatusOK, gin.H{"message": "Todo deleted successfully"})
}

func (s *Server) bulkDelete(c *gin.Context) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		unprocessable(c, map[string][]string{"ids": {"The ids field is required."}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	owner := c.GetString("email")
	for _, id := range req.IDs {
		if rec, ok := s.todos[id]; !ok || rec.owner != owner {
			c.JSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("Todo %d not found", id)})
			return
		}
	}
	for _, id := range req.IDs {
		delete(s.todos, id)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Todos deleted successfully", "deleted_count": len(req.IDs)})
}

func (s *Server) downloadPDF(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.owned(c, id)
	if !ok {
		return
	}
	if len(rec.todo.Attachments) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "No PDF attached"})
		return
	}
	attachment := rec.todo.Attachments[0]
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, attachment.OriginalName))
	c.Data(http.StatusOK, api.PDFMIMEType, rec.files[attachment.ID])
}

func (s *Server) deletePDF(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req struct {
		PDFID int64 `json:"pdf_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		unprocessable(c, map[string][]string{"pdf_id": {"The pdf id field is required."}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.owned(c, id)
	if !ok {
		return
	}
	kept := rec.todo.Attachments[:0]
	found := false
	for _, attachment := range rec.todo.Attachments {
		if attachment.ID == req.PDFID {
			found = true
			continue
		}
		kept = append(kept, attachment)
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"message": "PDF not found"})
		return
	}
	rec.todo.Attachments = kept
	delete(rec.files, req.PDFID)
	rec.todo.UpdatedAt = s.stamp()
	c.JSON(http.StatusOK, gin.H{"message": "PDF deleted successfully", "data": s.view(rec)})
}

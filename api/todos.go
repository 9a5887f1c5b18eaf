package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

func (q ListQuery) values() url.Values {
	values := url.Values{}
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	if q.Status != "" {
		values.Set("status", string(q.Status))
	}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.PerPage > 0 {
		values.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if q.SortBy != "" {
		values.Set("sort_by", q.SortBy)
	}
	if q.SortOrder != "" {
		values.Set("sort_order", q.SortOrder)
	}
	return values
}

// ListTodos returns the todos matching query, newest first.
func (c *Client) ListTodos(ctx context.Context, query ListQuery) (*TodoPage, error) {
	var page TodoPage
	err := c.doJSON(ctx, request{method: http.MethodGet, path: "/todos", query: query.values(), auth: true}, &page)
	if err != nil {
		return nil, err
	}
	if page.Data == nil {
		page.Data = []Todo{}
	}
	return &page, nil
}

// GetTodo fetches a single todo.
func (c *Client) GetTodo(ctx context.Context, id int64) (*Todo, error) {
	return c.todoRequest(ctx, request{method: http.MethodGet, path: todoPath(id), auth: true})
}

// CreateTodo creates a todo. With a file the body is multipart.
func (c *Client) CreateTodo(ctx context.Context, fields TodoFields, file *File) (*Todo, error) {
	r := request{method: http.MethodPost, path: "/todos", auth: true}
	if file != nil {
		r.form = &multipartForm{fields: fields.formValues(), file: file}
	} else {
		r.json = fields
	}
	return c.todoRequest(ctx, r)
}

// UpdateTodo changes the given fields. Multipart framing cannot express PUT
// for the server, so uploads go as POST with a method override field.
func (c *Client) UpdateTodo(ctx context.Context, id int64, fields TodoFields, file *File) (*Todo, error) {
	r := request{method: http.MethodPut, path: todoPath(id), auth: true}
	if file != nil {
		formFields := append([][2]string{{MethodOverrideField, http.MethodPut}}, fields.formValues()...)
		r.method = http.MethodPost
		r.form = &multipartForm{fields: formFields, file: file}
	} else {
		r.json = fields
	}
	return c.todoRequest(ctx, r)
}

// DeleteTodo removes a todo and its attachments.
func (c *Client) DeleteTodo(ctx context.Context, id int64) error {
	return c.doJSON(ctx, request{method: http.MethodDelete, path: todoPath(id), auth: true}, nil)
}

// BulkDeleteTodos removes several todos in one request. The response is a
// single status; the API cannot report partial success.
func (c *Client) BulkDeleteTodos(ctx context.Context, ids []int64) error {
	payload := struct {
		IDs []int64 `json:"ids"`
	}{IDs: ids}
	return c.doJSON(ctx, request{method: http.MethodDelete, path: "/todos/bulk-delete", json: payload, auth: true}, nil)
}

// DeleteAttachment removes one PDF from a todo.
func (c *Client) DeleteAttachment(ctx context.Context, todoID, attachmentID int64) error {
	payload := struct {
		PDFID int64 `json:"pdf_id"`
	}{PDFID: attachmentID}
	r := request{method: http.MethodDelete, path: todoPath(todoID) + "/delete-pdf", json: payload, auth: true}
	return c.doJSON(ctx, r, nil)
}

// DownloadAttachment streams the todo's PDF. The caller closes the body.
func (c *Client) DownloadAttachment(ctx context.Context, todoID int64) (io.ReadCloser, error) {
	resp, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   todoPath(todoID) + "/download-pdf",
		auth:   true,
		accept: PDFMIMEType,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) todoRequest(ctx context.Context, r request) (*Todo, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, r, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("decode %s %s response: empty body", r.method, r.path)
	}
	item, err := unwrapItem[Todo](raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s %s response: %w", r.method, r.path, err)
	}
	return item, nil
}

func todoPath(id int64) string {
	return "/todos/" + strconv.FormatInt(id, 10)
}

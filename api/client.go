package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// TokenSource is the read-only credential accessor the client consumes.
type TokenSource interface {
	Token() (string, bool)
}

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client calls the task dashboard API.
type Client struct {
	baseURL        string
	client         *http.Client
	logger         *log.Logger
	tokens         TokenSource
	onUnauthorized func()
}

// New creates a client for the given address or URL.
func New(addr string, opts Options) *Client {
	baseURL := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{baseURL: baseURL, client: httpClient, logger: logger}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// WithTokens returns a copy of the client that authenticates with tokens.
// onUnauthorized, when set, runs whenever the server rejects the token.
func (c *Client) WithTokens(tokens TokenSource, onUnauthorized func()) *Client {
	clone := *c
	clone.tokens = tokens
	clone.onUnauthorized = onUnauthorized
	return &clone
}

type request struct {
	method string
	path   string
	query  url.Values
	json   any
	form   *multipartForm
	auth   bool
	accept string
}

func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	var token string
	if r.auth {
		var ok bool
		if c.tokens != nil {
			token, ok = c.tokens.Token()
		}
		if !ok || token == "" {
			return nil, &AuthError{Kind: Unauthenticated}
		}
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case r.form != nil:
		var err error
		if body, contentType, err = r.form.reader(); err != nil {
			return nil, err
		}
	case r.json != nil:
		data, err := json.Marshal(r.json)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, err
	}
	accept := r.accept
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	started := time.Now()
	resp, err := c.client.Do(req)
	if r.form != nil {
		if localErr := r.form.localErr(); localErr != nil {
			if resp != nil {
				resp.Body.Close()
			}
			return nil, localErr
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug("api request failed", "method", r.method, "path", r.path, "request_id", requestID, "err", err)
		return nil, fmt.Errorf("%w: %s %s: %v", ErrNetworkUnavailable, r.method, r.path, err)
	}
	c.logger.Debug("api request", "method", r.method, "path", r.path, "status", resp.StatusCode,
		"request_id", requestID, "elapsed", time.Since(started).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		statusErr := readErrorResponse(resp)
		if r.auth && resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return nil, statusErr
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, r request, dest any) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrNetworkUnavailable, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s %s response: %w", r.method, r.path, err)
	}
	return nil
}

type errorPayload struct {
	Message string              `json:"message"`
	Error   string              `json:"error"`
	Errors  map[string][]string `json:"errors"`
}

func readErrorResponse(resp *http.Response) error {
	statusErr := &StatusError{Status: resp.StatusCode}
	var payload errorPayload
	decoder := json.NewDecoder(io.LimitReader(resp.Body, 1<<20))
	if err := decoder.Decode(&payload); err == nil {
		statusErr.Message = payload.Message
		if statusErr.Message == "" {
			statusErr.Message = payload.Error
		}
		statusErr.Fields = payload.Errors
	}
	return statusErr
}

// unwrapItem decodes a single-resource response that may or may not be
// wrapped in a {"data": ...} envelope.
func unwrapItem[T any](raw json.RawMessage) (*T, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 && !bytes.Equal(envelope.Data, []byte("null")) {
		raw = envelope.Data
	}
	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

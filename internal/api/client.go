// Package api talks to the LMS backend: the knowledge-graph endpoint and the
// course, progress and dashboard endpoints used for fallback synthesis.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/msalah0e/kgraph/internal/ctxlog"
	"github.com/msalah0e/kgraph/internal/graph"
	"github.com/pkg/errors"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8000/api/v1/"

const maxResponseBytes = 8 << 20

// ErrInvalidPayload marks a response that is not in the expected shape.
var ErrInvalidPayload = errors.New("invalid response payload")

// Error is a non-2xx response from the backend.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	// Detail is the server's error message, from error.message or detail.
	Detail string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// KeyValue is the token store. vault.Vault satisfies it.
type KeyValue interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Client communicates with the LMS backend.
type Client struct {
	BaseURL    string
	Paths      Paths
	HTTPClient *http.Client
	Tokens     KeyValue

	now       func() time.Time
	refreshMu sync.Mutex
}

// NewClient creates a client. tokens may be nil for unauthenticated use.
func NewClient(baseURL string, paths Paths, tokens KeyValue, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		Paths:   paths,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		Tokens: tokens,
		now:    time.Now,
	}
}

// FetchGraph loads the primary knowledge graph. The response must be
// {"success": true, "data": {...}}; anything else wraps ErrInvalidPayload.
func (c *Client) FetchGraph(ctx context.Context) (*graph.RawSnapshot, error) {
	body, err := c.do(ctx, http.MethodGet, c.Paths.Graph, nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Wrap(ErrInvalidPayload, "knowledge graph envelope")
	}
	data := bytes.TrimSpace(envelope.Data)
	if !envelope.Success || len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, errors.Wrap(ErrInvalidPayload, "knowledge graph envelope")
	}

	var raw graph.RawSnapshot
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(ErrInvalidPayload, "knowledge graph data: %v", err)
	}
	return &raw, nil
}

// FetchCourses loads the enrolled-course list.
func (c *Client) FetchCourses(ctx context.Context) ([]Course, error) {
	body, err := c.do(ctx, http.MethodGet, c.Paths.Courses, nil)
	if err != nil {
		return nil, err
	}
	return decodeItems[Course](ExtractList(body)), nil
}

// FetchProgress loads the per-course progress list.
func (c *Client) FetchProgress(ctx context.Context) ([]ProgressRow, error) {
	body, err := c.do(ctx, http.MethodGet, c.Paths.Progress, nil)
	if err != nil {
		return nil, err
	}
	return decodeItems[ProgressRow](ExtractList(body)), nil
}

// FetchDashboard loads the dashboard summary. Both {"data": {...}} and a bare
// object are accepted.
func (c *Client) FetchDashboard(ctx context.Context) (*DashboardSummary, error) {
	body, err := c.do(ctx, http.MethodGet, c.Paths.Dashboard, nil)
	if err != nil {
		return nil, err
	}

	obj, ok := asObject(body)
	if !ok {
		return nil, errors.Wrap(ErrInvalidPayload, "dashboard")
	}
	if data, ok := asObject(obj["data"]); ok {
		obj = data
	}

	encoded, _ := json.Marshal(obj)
	var summary DashboardSummary
	if err := json.Unmarshal(encoded, &summary); err != nil {
		return nil, errors.Wrapf(ErrInvalidPayload, "dashboard: %v", err)
	}
	return &summary, nil
}

// do performs an authenticated request and returns the body of a 2xx response.
// A 401 triggers one token refresh and a single retry.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	logger := ctxlog.FromContext(ctx)

	token := c.accessToken(ctx)
	status, body, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized && c.Tokens != nil {
		fresh, rerr := c.refresh(ctx, token)
		if rerr != nil {
			logger.Debug("token refresh failed", "path", path, "error", rerr)
		} else {
			logger.Debug("retrying with refreshed token", "path", path)
			status, body, err = c.send(ctx, method, path, payload, fresh)
			if err != nil {
				return nil, err
			}
		}
	}

	if status < 200 || status > 299 {
		return nil, parseError(method, path, status, body)
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return 0, nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, errors.Wrapf(err, "reading %s", path)
	}

	ctxlog.FromContext(ctx).Debug("backend request",
		"method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))
	return resp.StatusCode, body, nil
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// parseError builds an *Error, reading error.message or detail from a JSON body.
func parseError(method, path string, status int, body []byte) error {
	apiErr := &Error{Method: method, Path: path, StatusCode: status}

	var errResp struct {
		Error  json.RawMessage `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &errResp) != nil {
		return apiErr
	}

	var nested struct {
		Message string `json:"message"`
	}
	var plain string
	switch {
	case json.Unmarshal(errResp.Error, &nested) == nil && nested.Message != "":
		apiErr.Detail = nested.Message
	case json.Unmarshal(errResp.Detail, &plain) == nil && plain != "":
		apiErr.Detail = plain
	case json.Unmarshal(errResp.Error, &plain) == nil && plain != "":
		apiErr.Detail = plain
	}
	return apiErr
}

// StatusDetail returns the status code and detail carried by err, if any.
func StatusDetail(err error) (int, string) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, apiErr.Detail
	}
	return 0, ""
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aetracker/internal/model"
)

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration

	// HTTPClient overrides the default client (tests use httptest's).
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("api: base url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("api: invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api: invalid base url scheme %q (expected http|https)", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{base: u, http: hc, logger: logger}, nil
}

func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do sends body (if non-nil) as JSON and decodes a 2xx JSON response into out
// (if non-nil). Non-2xx responses become *Error.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, q), rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", "method", method, "path", path, "err", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	c.logger.Debug("api request", "method", method, "path", path, "status", res.StatusCode, "dur", time.Since(start))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeError(res, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func decodeError(res *http.Response, raw []byte) error {
	e := &Error{Status: res.StatusCode}
	if strings.Contains(res.Header.Get("Content-Type"), "application/json") {
		var body ErrorResponse
		if err := json.Unmarshal(raw, &body); err == nil {
			e.Message = body.Error
			e.Detail = body.Detail
			e.Issues = body.Issues
			e.Count = body.Count
		}
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("HTTP %d", res.StatusCode)
	}
	return e
}

func (c *Client) ListAEs(ctx context.Context) ([]model.AE, error) {
	out := []model.AE{}
	if err := c.do(ctx, http.MethodGet, "/aes", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateAE(ctx context.Context, name string) (model.AE, error) {
	var out model.AE
	err := c.do(ctx, http.MethodPost, "/aes", nil, CreateAERequest{Name: name}, &out)
	return out, err
}

func (c *Client) DeleteAE(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/aes", url.Values{"id": {id}}, nil, &OKResponse{})
}

func (c *Client) ReconcileAEColors(ctx context.Context) (ReconcileResponse, error) {
	var out ReconcileResponse
	err := c.do(ctx, http.MethodPost, "/aes/reconcile-colors", nil, nil, &out)
	return out, err
}

func (c *Client) ListAccounts(ctx context.Context) ([]model.Account, error) {
	out := []model.Account{}
	if err := c.do(ctx, http.MethodGet, "/accounts", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateAccount(ctx context.Context, name string) (model.Account, error) {
	var out model.Account
	err := c.do(ctx, http.MethodPost, "/accounts", nil, CreateAccountRequest{Name: name}, &out)
	return out, err
}

func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/accounts", url.Values{"id": {id}}, nil, &OKResponse{})
}

func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	out := []model.Task{}
	if err := c.do(ctx, http.MethodGet, "/tasks", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (model.Task, error) {
	var out model.Task
	err := c.do(ctx, http.MethodPost, "/tasks", nil, req, &out)
	return out, err
}

func (c *Client) UpdateTask(ctx context.Context, id string, req UpdateTaskRequest) (model.Task, error) {
	var out model.Task
	err := c.do(ctx, http.MethodPatch, "/tasks/"+id, nil, req, &out)
	return out, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+id, nil, nil, &OKResponse{})
}

func (c *Client) TaskDescription(ctx context.Context, id string) (DescriptionResponse, error) {
	var out DescriptionResponse
	err := c.do(ctx, http.MethodGet, "/tasks/"+id+"/description", nil, nil, &out)
	return out, err
}

// Health reports whether the backend and its database respond.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

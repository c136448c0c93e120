// Package api is a typed client for the bug tracker REST API.
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
)

const (
	defaultTimeout  = 15 * time.Second
	maxResponseSize = 4 << 20
)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource sets where the bearer token of each request comes from.
func WithTokenSource(fn func() string) Option {
	return func(c *Client) { c.token = fn }
}

// WithUnauthorizedHandler registers fn to run when a request that carried a
// bearer token is answered with 401. Login and register never trigger it.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

type bearerKey struct{}

// WithBearer makes requests made with ctx carry token instead of the one
// from the client's token source.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

type Client struct {
	baseURL        string
	httpClient     *http.Client
	token          func() string
	onUnauthorized func()
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Register(ctx context.Context, in Registration) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.send(ctx, http.MethodPost, "/users/register", in, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, in Credentials) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.send(ctx, http.MethodPost, "/users/login", in, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/users/logout", nil, nil)
}

func (c *Client) Profile(ctx context.Context) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/users/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, in ProfileUpdate) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodPut, "/users/profile", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListBugs(ctx context.Context, f BugFilter) ([]Bug, error) {
	q := url.Values{}
	for k, v := range map[string]string{
		"status": f.Status, "priority": f.Priority, "project": f.Project,
		"reportedBy": f.ReportedBy, "assignedTo": f.AssignedTo,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	path := "/bugs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []Bug
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetBug(ctx context.Context, id string) (*Bug, error) {
	var out Bug
	if err := c.do(ctx, http.MethodGet, "/bugs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateBug(ctx context.Context, in NewBug) (*Bug, error) {
	var out Bug
	if err := c.do(ctx, http.MethodPost, "/bugs", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateBug(ctx context.Context, id string, patch BugPatch) (*Bug, error) {
	var out Bug
	if err := c.do(ctx, http.MethodPut, "/bugs/"+url.PathEscape(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteBug returns the id the server confirmed as deleted.
func (c *Client) DeleteBug(ctx context.Context, id string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodDelete, "/bugs/"+url.PathEscape(id), nil, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	return c.send(ctx, method, path, in, out, true)
}

// send performs one request. With authed false no bearer is attached, so a
// 401 is about the credentials in the body and not the stored session.
func (c *Client) send(ctx context.Context, method, path string, in, out any, authed bool) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: encoding request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("api: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	var tok string
	if authed {
		tok = c.bearer(ctx)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("api: reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized && tok != "" && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return parseError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("api: decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) bearer(ctx context.Context) string {
	if tok, ok := ctx.Value(bearerKey{}).(string); ok {
		return tok
	}
	if c.token != nil {
		return c.token()
	}
	return ""
}

func parseError(status int, body []byte) *Error {
	apiErr := &Error{Status: status}
	var wire struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &wire) == nil {
		apiErr.Message = wire.Error
		if apiErr.Message == "" {
			apiErr.Message = wire.Message
		}
	}
	return apiErr
}

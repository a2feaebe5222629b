// Package api is the client for the remote management API.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/picklr-io/tether/internal/ir"
	"github.com/picklr-io/tether/internal/logging"
	"github.com/picklr-io/tether/internal/marshal"
)

// DefaultPageSize is the page size requested when listing.
const DefaultPageSize = 100

// Params are the request parameters shared by every resource endpoint.
type Params struct {
	Environment            string
	Branch                 string
	HideUncommittedChanges bool
	Annotate               bool
	Commit                 bool
	CommitMessage          string
}

func (p Params) values(extra url.Values) url.Values {
	q := url.Values{}
	for k, vs := range extra {
		q[k] = append([]string(nil), vs...)
	}
	if p.Environment != "" {
		q.Set("environment", p.Environment)
	}
	if p.Branch != "" {
		q.Set("branch", p.Branch)
	}
	if p.HideUncommittedChanges {
		q.Set("hide_uncommitted_changes", "true")
	}
	if p.Annotate {
		q.Set("annotate", "true")
	}
	if p.Commit {
		q.Set("commit", "true")
		if p.CommitMessage != "" {
			q.Set("commit_message", p.CommitMessage)
		}
	}
	return q
}

// Page selects one page of a list.
type Page struct {
	After    string
	PageSize int
}

// Client talks to the management API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
	retry *RetryPolicy
	agent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetryPolicy replaces the retry policy for transient failures.
func WithRetryPolicy(p *RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.agent = ua }
}

// New creates a client for the API at origin.
func New(origin, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(origin, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API origin %q: %w", origin, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid API origin %q: scheme must be http or https", origin)
	}
	c := &Client{
		base:  u.JoinPath("v1"),
		token: token,
		http:  &http.Client{Timeout: DefaultTimeout},
		retry: DefaultRetryPolicy(),
		agent: "tether",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get fetches one resource.
func (c *Client) Get(ctx context.Context, path string, query url.Values, p Params) (ir.Resource, error) {
	v, err := c.do(ctx, http.MethodGet, path, p.values(query), nil)
	if err != nil {
		return nil, err
	}
	res, ok := v.(map[string]any)
	if !ok {
		return nil, &Error{Method: http.MethodGet, Path: path, Err: fmt.Errorf("expected a JSON object in response")}
	}
	return res, nil
}

// List fetches one page of a collection.
func (c *Client) List(ctx context.Context, collection string, p Params, page Page) ([]ir.Entry, ir.PageInfo, error) {
	q := p.values(nil)
	size := page.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	q.Set("page_size", strconv.Itoa(size))
	if page.After != "" {
		q.Set("after", page.After)
	}

	v, err := c.do(ctx, http.MethodGet, collection, q, nil)
	if err != nil {
		return nil, ir.PageInfo{}, err
	}
	body, _ := v.(map[string]any)
	raw, _ := body["entries"].([]any)
	entries := make([]ir.Entry, 0, len(raw))
	for _, e := range raw {
		if m, ok := e.(map[string]any); ok {
			entries = append(entries, m)
		}
	}
	return entries, decodePageInfo(body["page_info"]), nil
}

// ListAll follows the after cursor until every entry is fetched.
func (c *Client) ListAll(ctx context.Context, collection string, p Params) ([]ir.Entry, error) {
	var all []ir.Entry
	page := Page{}
	for {
		entries, info, err := c.List(ctx, collection, p, page)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
		if info.After == "" || info.After == page.After {
			return all, nil
		}
		page.After = info.After
	}
}

// Validate asks the API to validate body without saving it. A rejected
// resource yields a *ValidationError.
func (c *Client) Validate(ctx context.Context, path, bodyKey string, body ir.Resource, query url.Values, p Params) error {
	_, err := c.do(ctx, http.MethodPut, path+"/validate", p.values(query), map[string]any{bodyKey: body})
	return err
}

// Upsert creates or updates a resource and returns the saved version.
func (c *Client) Upsert(ctx context.Context, path, bodyKey string, body ir.Resource, query url.Values, p Params) (ir.Resource, error) {
	v, err := c.do(ctx, http.MethodPut, path, p.values(query), map[string]any{bodyKey: body})
	if err != nil {
		return nil, err
	}
	wrapped, _ := v.(map[string]any)
	res, ok := wrapped[bodyKey].(map[string]any)
	if !ok {
		return nil, &Error{Method: http.MethodPut, Path: path, Err: fmt.Errorf("response has no %q object", bodyKey)}
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (any, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = marshal.EncodeCompactJSON(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var result any
	err := RetryWithBackoff(ctx, c.retry, func() error {
		var err error
		result, err = c.attempt(ctx, method, path, query, payload)
		return err
	}, IsTransientError)
	return result, err
}

func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, payload []byte) (any, error) {
	u := c.base.JoinPath(strings.Split(path, "/")...)
	u.RawQuery = query.Encode()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, &Error{Method: method, Path: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.agent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logging.Debug("api request", "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Method: method, Path: path, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	logging.Debug("api response", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode == http.StatusUnprocessableEntity {
		return nil, decodeValidationError(data)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Method: method, Path: path, StatusCode: resp.StatusCode, Message: errorMessage(resp, data)}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	v, err := marshal.ParseJSON("response", data)
	if err != nil {
		return nil, &Error{Method: method, Path: path, Err: fmt.Errorf("invalid JSON response: %v", err)}
	}
	return v, nil
}

func errorMessage(resp *http.Response, data []byte) string {
	if v, err := marshal.ParseJSON("response", data); err == nil {
		if m, ok := v.(map[string]any); ok {
			if msg, ok := m["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return http.StatusText(resp.StatusCode)
}

func decodeValidationError(data []byte) *ValidationError {
	verr := &ValidationError{Message: "validation failed"}
	v, err := marshal.ParseJSON("response", data)
	if err != nil {
		return verr
	}
	m, _ := v.(map[string]any)
	if msg, ok := m["message"].(string); ok && msg != "" {
		verr.Message = msg
	}
	errs, _ := m["errors"].([]any)
	for _, e := range errs {
		fe, ok := e.(map[string]any)
		if !ok {
			continue
		}
		field, _ := fe["field"].(string)
		msg, _ := fe["message"].(string)
		verr.Errors = append(verr.Errors, FieldError{Field: field, Message: msg})
	}
	return verr
}

func decodePageInfo(v any) ir.PageInfo {
	m, _ := v.(map[string]any)
	var info ir.PageInfo
	info.After, _ = m["after"].(string)
	info.Before, _ = m["before"].(string)
	switch n := m["page_size"].(type) {
	case int64:
		info.PageSize = int(n)
	case float64:
		info.PageSize = int(n)
	}
	return info
}

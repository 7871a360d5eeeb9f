// Package client provides the Supabase client used by the gateway: PostgREST
// table access, GoTrue auth, and the GoTrue admin API. All relational data in
// this deployment lives behind Supabase; the gateway holds no direct SQL
// connection.
package client

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

// Config holds client configuration. ServiceKey is required for admin
// operations; AnonKey suffices for request-scoped reads performed with a
// user's own bearer token.
type Config struct {
	URL        string
	AnonKey    string
	ServiceKey string
	HTTPClient *http.Client
}

// Client is a Supabase REST client.
type Client struct {
	baseURL    string
	anonKey    string
	serviceKey string
	httpClient *http.Client
}

// New creates a Supabase client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.AnonKey == "" && cfg.ServiceKey == "" {
		return nil, fmt.Errorf("an anon key or service key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
		httpClient: httpClient,
	}, nil
}

// BaseURL returns the configured project URL.
func (c *Client) BaseURL() string { return c.baseURL }

// From starts a query against a table.
func (c *Client) From(table string) *Query {
	return &Query{client: c, table: table}
}

// Query builds a PostgREST request. Filters accumulate; the terminal Execute*
// methods issue the call.
type Query struct {
	client  *Client
	table   string
	columns string
	filters url.Values
	order   string
	limit   int
	single  bool
	// bearer overrides the default key auth so row-level security applies
	// to the calling user rather than the service role.
	bearer string
}

// Select names the columns to return.
func (q *Query) Select(columns string) *Query {
	q.columns = columns
	return q
}

// Eq adds an equality filter.
func (q *Query) Eq(column string, value interface{}) *Query {
	return q.filter(column, fmt.Sprintf("eq.%v", value))
}

// ILike adds a case-insensitive pattern filter.
func (q *Query) ILike(column, pattern string) *Query {
	return q.filter(column, "ilike."+pattern)
}

// Is adds an IS filter (null, true, false).
func (q *Query) Is(column string, value interface{}) *Query {
	return q.filter(column, fmt.Sprintf("is.%v", value))
}

// In adds an IN filter.
func (q *Query) In(column string, values []string) *Query {
	return q.filter(column, "in.("+strings.Join(values, ",")+")")
}

// Order sets the result ordering, e.g. "created_at.desc".
func (q *Query) Order(order string) *Query {
	q.order = order
	return q
}

// Limit caps the number of rows returned.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Single requests exactly one object instead of an array.
func (q *Query) Single() *Query {
	q.single = true
	return q
}

// AsUser makes the query run under the given user bearer token so RLS
// policies apply.
func (q *Query) AsUser(token string) *Query {
	q.bearer = token
	return q
}

func (q *Query) filter(column, expr string) *Query {
	if q.filters == nil {
		q.filters = url.Values{}
	}
	q.filters.Add(column, expr)
	return q
}

func (q *Query) queryString() string {
	params := url.Values{}
	if q.columns != "" {
		params.Set("select", q.columns)
	}
	for column, exprs := range q.filters {
		for _, expr := range exprs {
			params.Add(column, expr)
		}
	}
	if q.order != "" {
		params.Set("order", q.order)
	}
	if q.limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", q.limit))
	}
	return params.Encode()
}

// Execute issues a SELECT.
func (q *Query) Execute(ctx context.Context) (*Response, error) {
	reqURL := fmt.Sprintf("%s/rest/v1/%s", q.client.baseURL, url.PathEscape(q.table))
	if qs := q.queryString(); qs != "" {
		reqURL += "?" + qs
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	q.client.setHeaders(req, q.bearer)
	if q.single {
		req.Header.Set("Accept", "application/vnd.pgrst.object+json")
	}
	return q.client.do(req)
}

// ExecuteInsert issues an INSERT with the given row payload.
func (q *Query) ExecuteInsert(ctx context.Context, data interface{}) (*Response, error) {
	return q.mutate(ctx, http.MethodPost, data, false)
}

// ExecuteUpdate issues an UPDATE scoped by the accumulated filters.
func (q *Query) ExecuteUpdate(ctx context.Context, data interface{}) (*Response, error) {
	return q.mutate(ctx, http.MethodPatch, data, true)
}

// ExecuteDelete issues a DELETE scoped by the accumulated filters.
func (q *Query) ExecuteDelete(ctx context.Context) (*Response, error) {
	return q.mutate(ctx, http.MethodDelete, nil, true)
}

func (q *Query) mutate(ctx context.Context, method string, data interface{}, withFilters bool) (*Response, error) {
	reqURL := fmt.Sprintf("%s/rest/v1/%s", q.client.baseURL, url.PathEscape(q.table))
	if withFilters {
		if qs := q.queryString(); qs != "" {
			reqURL += "?" + qs
		}
	}

	var body io.Reader
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	q.client.setHeaders(req, q.bearer)
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Prefer", "return=representation")
	return q.client.do(req)
}

// RPC calls a stored procedure.
func (c *Client) RPC(ctx context.Context, fn string, params interface{}) (*Response, error) {
	reqURL := fmt.Sprintf("%s/rest/v1/rpc/%s", c.baseURL, url.PathEscape(fn))

	var body io.Reader
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req, "")
	if params != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req)
}

// Response is a raw Supabase API response.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// Err returns a non-nil error when the response indicates failure.
func (r *Response) Err() error {
	if r.StatusCode < 400 {
		return nil
	}
	var payload struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(r.Body, &payload); err == nil {
		for _, m := range []string{payload.Message, payload.Msg, payload.Error} {
			if m != "" {
				return fmt.Errorf("supabase error %d: %s", r.StatusCode, m)
			}
		}
	}
	return fmt.Errorf("supabase error: status %d", r.StatusCode)
}

// IsNotFound reports whether the response is a miss rather than a failure.
func (r *Response) IsNotFound() bool {
	// PostgREST returns 406 for a single-object read with no matching row.
	return r.StatusCode == http.StatusNotFound ||
		r.StatusCode == http.StatusNotAcceptable
}

const maxResponseBytes = 8 << 20

func (c *Client) setHeaders(req *http.Request, bearer string) {
	if bearer != "" {
		req.Header.Set("apikey", c.anonOrService())
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		key := c.serviceOrAnon()
		req.Header.Set("apikey", key)
		req.Header.Set("Authorization", "Bearer "+key)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

func (c *Client) anonOrService() string {
	if c.anonKey != "" {
		return c.anonKey
	}
	return c.serviceKey
}

func (c *Client) serviceOrAnon() string {
	if c.serviceKey != "" {
		return c.serviceKey
	}
	return c.anonKey
}

func (c *Client) do(req *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    resp.Header,
	}, nil
}

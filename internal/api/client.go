package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the server-assigned request id on every response
const RequestIDHeader = "X-Request-Id"

// Client is a thin client for the tenant console REST API
type Client struct {
	baseURL string
	http    *resty.Client
	limiter *rate.Limiter
}

// Option customizes a Client
type Option func(*Client)

// WithTimeout overrides the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.SetTimeout(timeout)
		}
	}
}

// WithRetry overrides retry count and wait bounds for idempotent requests
func WithRetry(count int, wait, maxWait time.Duration) Option {
	return func(c *Client) {
		c.http.SetRetryCount(count).
			SetRetryWaitTime(wait).
			SetRetryMaxWaitTime(maxWait)
	}
}

// WithRateLimit throttles outgoing requests; rps <= 0 disables throttling
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a client for baseURL authenticated with a bearer token
func NewClient(baseURL, token string, opts ...Option) *Client {
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
	}

	client.http = resty.New().
		SetHeader("Accept", "application/json").
		SetTimeout(60 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Only reads are retried here; mutations surface their first failure
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			return r.StatusCode() == http.StatusTooManyRequests ||
				(r.StatusCode() >= 500 && r.StatusCode() <= 504)
		})
	if token != "" {
		client.http.SetAuthToken(token)
	}

	client.http.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if client.limiter == nil {
			return nil
		}
		return client.limiter.Wait(r.Context())
	})

	for _, opt := range opts {
		opt(client)
	}
	return client
}

// BaseURL returns the normalized base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx)
	if params != nil {
		req.SetQueryParams(params)
	}
	return req.Get(c.buildURL(endpoint))
}

// Post performs a POST request with a JSON body
func (c *Client) Post(ctx context.Context, endpoint string, payload interface{}) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx)
	if payload != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(payload)
	}
	return req.Post(c.buildURL(endpoint))
}

// Put performs a PUT request with a JSON body
func (c *Client) Put(ctx context.Context, endpoint string, payload interface{}) (*resty.Response, error) {
	return c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Put(c.buildURL(endpoint))
}

// Delete performs a DELETE request
func (c *Client) Delete(ctx context.Context, endpoint string) (*resty.Response, error) {
	return c.http.R().SetContext(ctx).Delete(c.buildURL(endpoint))
}

// GetJSON performs a GET and decodes a 2xx body into out
func (c *Client) GetJSON(ctx context.Context, endpoint string, params map[string]string, out interface{}) error {
	resp, err := c.Get(ctx, endpoint, params)
	return decode(resp, err, out)
}

// PostJSON performs a POST and decodes a 2xx body into out (out may be nil)
func (c *Client) PostJSON(ctx context.Context, endpoint string, payload, out interface{}) error {
	resp, err := c.Post(ctx, endpoint, payload)
	return decode(resp, err, out)
}

// PutJSON performs a PUT and decodes a 2xx body into out (out may be nil)
func (c *Client) PutJSON(ctx context.Context, endpoint string, payload, out interface{}) error {
	resp, err := c.Put(ctx, endpoint, payload)
	return decode(resp, err, out)
}

// DeleteJSON performs a DELETE and checks the status
func (c *Client) DeleteJSON(ctx context.Context, endpoint string) error {
	resp, err := c.Delete(ctx, endpoint)
	return decode(resp, err, nil)
}

func decode(resp *resty.Response, err error, out interface{}) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return &APIError{
			StatusCode: resp.StatusCode(),
			RequestID:  resp.Header().Get(RequestIDHeader),
			Body:       strings.TrimSpace(resp.String()),
		}
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// buildURL constructs the full URL for an endpoint
func (c *Client) buildURL(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "/")
	return fmt.Sprintf("%s/%s", c.baseURL, endpoint)
}

// TenantPath builds a super-admin path under /api/v1/super/tenants/{tenantID}
func TenantPath(tenantID string, parts ...string) string {
	segments := []string{"api/v1/super/tenants", url.PathEscape(tenantID)}
	for _, p := range parts {
		segments = append(segments, url.PathEscape(p))
	}
	return strings.Join(segments, "/")
}

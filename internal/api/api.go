package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"kis-trading-bot/internal/logger"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Client is a thin JSON-over-HTTP client. It never retries: a failed call is
// reported once and the caller decides what happens next.
type Client struct {
	rc         *resty.Client
	limiter    *rate.Limiter
	useLogging bool
}

// ClientOption configures the API client
type ClientOption func(*Client)

// WithTimeout sets the connect+read timeout for every request
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.rc.SetTimeout(timeout)
	}
}

// WithBaseURL sets the base URL that relative request paths are resolved against
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.rc.SetBaseURL(strings.TrimSuffix(baseURL, "/"))
	}
}

// WithHeader sets a default header for all requests
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.rc.SetHeader(key, value)
	}
}

// WithLogging enables debug logging of requests and responses
func WithLogging(enabled bool) ClientOption {
	return func(c *Client) {
		c.useLogging = enabled
	}
}

// WithRateLimit throttles outgoing requests to rps per second with the given burst.
// A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) ClientOption {
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

// WithTransport replaces the underlying round tripper (tests, proxies)
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.rc.SetTransport(rt)
	}
}

// NewClient creates a new API client with the given options
func NewClient(opts ...ClientOption) *Client {
	rc := resty.New().
		SetTimeout(30*time.Second).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "kis-trading-bot")

	client := &Client{rc: rc}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Request represents an HTTP request configuration. Body, when set, is sent
// verbatim; callers that need the exact bytes (signatures) marshal it themselves.
type Request struct {
	Method  string
	Path    string
	Query   map[string]string
	Headers map[string]string
	Body    []byte
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// StatusError is returned for HTTP status codes >= 400. The body is kept
// because brokers often explain business errors inside a 4xx/5xx payload.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s %s: %s", e.StatusCode, e.Method, e.URL, string(e.Body))
}

// Do executes the HTTP request
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limiter")
		}
	}

	r := c.rc.R().SetContext(ctx)
	if len(req.Headers) > 0 {
		r.SetHeaders(req.Headers)
	}
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	if req.Body != nil {
		if r.Header.Get("Content-Type") == "" {
			r.SetHeader("Content-Type", "application/json; charset=utf-8")
		}
		r.SetBody(req.Body)
	}

	c.logDebug(ctx, "HTTP Request", "method", req.Method, "path", req.Path)

	start := time.Now()
	resp, err := r.Execute(strings.ToUpper(req.Method), req.Path)
	if err != nil {
		c.logError(ctx, "HTTP request failed", "method", req.Method, "path", req.Path, "error", err)
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.Path)
	}

	out := &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
		Headers:    resp.Header(),
	}

	c.logDebug(ctx, "HTTP Response",
		"method", req.Method,
		"path", req.Path,
		"status", out.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"body_size", len(out.Body))

	if out.StatusCode >= 400 {
		return out, &StatusError{
			Method:     req.Method,
			URL:        resp.Request.URL,
			StatusCode: out.StatusCode,
			Body:       out.Body,
		}
	}
	return out, nil
}

// GET performs a GET request with query parameters
func (c *Client) GET(ctx context.Context, path string, query, headers map[string]string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query, Headers: headers})
}

// POST performs a POST request with a pre-encoded JSON body
func (c *Client) POST(ctx context.Context, path string, body []byte, headers map[string]string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body, Headers: headers})
}

// PostJSON marshals body and POSTs it
func (c *Client) PostJSON(ctx context.Context, path string, body any, headers map[string]string) (*Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request body")
	}
	return c.POST(ctx, path, b, headers)
}

// ParseJSON parses the response body as JSON into the given value
func (r *Response) ParseJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrapf(err, "parse JSON response (status %d)", r.StatusCode)
	}
	return nil
}

// String returns the response body as a string
func (r *Response) String() string {
	return string(r.Body)
}

func (c *Client) logDebug(ctx context.Context, msg string, args ...any) {
	if c.useLogging {
		logger.Debug(ctx, msg, args...)
	}
}

func (c *Client) logError(ctx context.Context, msg string, args ...any) {
	if c.useLogging {
		logger.Error(ctx, msg, args...)
	}
}

// Package atlassian provides the shared REST client used by the Bitbucket
// and Jira services: basic-auth request construction, JSON handling,
// transport-level retries, and error capture. Retry policy lives here and
// only here; callers above never retry.
package atlassian

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

	"github.com/cenkalti/backoff/v4"
)

// Client is a minimal REST client for one Atlassian Cloud API base URL.
type Client struct {
	baseURL    string
	username   string
	secret     string
	httpClient *http.Client
	maxRetries uint64
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries sets how many times a failed request is retried. Only
// network failures, 429s, and 5xx responses are retried.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithLogger sets the logger for request-level debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the given base URL authenticating with
// HTTP basic auth (Bitbucket: username + app password, Jira: email + API
// token).
func NewClient(baseURL, username, secret string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		secret:   secret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 2,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestError is returned for any non-2xx response. It retains the decoded
// JSON error payload so the classification layer can inspect it.
type RequestError struct {
	StatusCode int
	Body       any    // decoded JSON error payload, nil when the body was not JSON
	Raw        string // raw response text, for diagnostics
}

func (e *RequestError) Error() string {
	if e.Raw != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Raw)
	}
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// HTTPStatus reports the response status code.
func (e *RequestError) HTTPStatus() int { return e.StatusCode }

// ErrorBody reports the decoded error payload.
func (e *RequestError) ErrorBody() any { return e.Body }

// NewRequest builds a JSON request against the client's base URL. A non-nil
// body is marshalled as JSON.
func (c *Client) NewRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.secret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Do executes the request, retrying retryable failures, and unmarshals the
// response into out when out is non-nil. Non-2xx responses return a
// *RequestError.
func (c *Client) Do(req *http.Request, out any) error {
	data, err := c.execute(req)
	if err != nil {
		return err
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// DoText executes the request and returns the raw response body as text.
// Used for endpoints that return plain text, such as diffs.
func (c *Client) DoText(req *http.Request) (string, error) {
	req.Header.Set("Accept", "text/plain")
	data, err := c.execute(req)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Client) execute(req *http.Request) ([]byte, error) {
	var data []byte

	op := func() error {
		var err error
		data, err = c.attempt(req)
		if err == nil {
			return nil
		}
		var re *RequestError
		if errors.As(err, &re) && !retryable(re.StatusCode) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries),
		req.Context(),
	)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) attempt(req *http.Request) ([]byte, error) {
	// Rewind the body for retried requests.
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		req.Body = body
	}

	c.logger.Debug("api request", "method", req.Method, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		re := &RequestError{
			StatusCode: resp.StatusCode,
			Raw:        strings.TrimSpace(string(data)),
		}
		var body any
		if json.Unmarshal(data, &body) == nil {
			re.Body = body
		}
		return nil, re
	}
	return data, nil
}

// retryable reports whether a status code is worth retrying. Client errors
// are permanent; rate limits and server errors are transient.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

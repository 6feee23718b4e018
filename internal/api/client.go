// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// MaxResponseSize is the maximum allowed response body size.
const MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

// Error variables for common API errors.
var (
	// ErrAuthFailed indicates authentication failed (bad credentials or an
	// invalid/expired token).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")
)

// APIError represents an error response from the backend.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s", e.Status, e.Message)
}

// =============================================================================
// ENVELOPE & PAYLOAD TYPES
// =============================================================================

// envelope is the response wrapper used by every endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// errMessage returns the server-provided error text, preferring the error
// field over the informational message, with a generic fallback.
func (e *envelope) errMessage(status int) string {
	if e.Error != "" {
		return e.Error
	}
	if e.Message != "" {
		return e.Message
	}
	return "request failed (status " + strconv.Itoa(status) + ")"
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a stateless client over a single base URL. It borrows the
// session token through a token source; it never stores credentials itself.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokenSource func() string
	userAgent   string
}

// NewClient creates an API client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: http.DefaultClient,
		userAgent:  "relay/0.1.0",
	}
}

// WithTokenSource sets the function consulted for the bearer token on each
// request. An empty token omits the Authorization header.
func (c *Client) WithTokenSource(source func() string) *Client {
	c.tokenSource = source
	return c
}

// WithHTTPClient sets a custom HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// do performs one request and decodes the envelope. A non-2xx status is a
// failure regardless of envelope content. There are no retries and no
// client-side timeout; cancellation comes from ctx.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*envelope, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	log.Printf("API %s %s: %d (%v)", method, path, resp.StatusCode, time.Since(start))

	data, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	var env envelope
	if len(data) > 0 {
		// An unparseable body on an error status keeps the generic message.
		if err := json.Unmarshal(data, &env); err != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, env.errMessage(resp.StatusCode))
	}
	return &env, nil
}

// setHeaders attaches the content type, user agent, and bearer token.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.tokenSource != nil {
		if token := c.tokenSource(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

// statusError maps HTTP statuses to the error taxonomy. The server message
// is preserved so the UI can display it verbatim.
func statusError(status int, message string) error {
	apiErr := &APIError{Status: status, Message: message}
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrAuthFailed, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, message)
	default:
		return apiErr
	}
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	limited := io.LimitReader(resp.Body, MaxResponseSize)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return data, nil
}

// decodeData unmarshals the envelope data field into out.
func decodeData(env *envelope, out interface{}) error {
	if len(env.Data) == 0 {
		return errors.New("response carried no data")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

// escapePath escapes a path segment such as a conversation ID.
func escapePath(segment string) string {
	return url.PathEscape(segment)
}

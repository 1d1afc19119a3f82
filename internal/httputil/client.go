// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages: a
// rate-limited client, typed status errors and retry classification.
package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultUserAgent is sent when the caller configures none.
const DefaultUserAgent = "paper-digest/0.1"

// maxErrorBody caps how much of a failed response body is kept on a StatusError.
const maxErrorBody = 2048

// ClientConfig configures a Client.
type ClientConfig struct {
	// Timeout bounds a single request, including reading the body.
	Timeout time.Duration

	// RequestsPerSecond is the sustained request rate. Zero disables limiting.
	RequestsPerSecond float64

	// Burst is the token bucket size (default 1).
	Burst int

	// UserAgent is sent with every request.
	UserAgent string
}

// Client wraps http.Client with a token-bucket rate limiter. It does not
// retry; callers wrap calls in a retry.Policy and classify failures with
// IsRetryable.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewClient creates a Client from cfg.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	c := &Client{
		http:      &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}
	return c
}

// Do waits for the rate limiter, sets the User-Agent and sends req. Any
// non-2xx response is drained, closed and returned as *StatusError.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(req, resp)
	}
	return resp, nil
}

// Get issues a GET request for url with the given Accept header.
func (c *Client) Get(ctx context.Context, url, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return c.Do(ctx, req)
}

func newStatusError(req *http.Request, resp *http.Response) *StatusError {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_, _ = io.Copy(io.Discard, resp.Body)

	return &StatusError{
		StatusCode: resp.StatusCode,
		URL:        req.URL.Redacted(),
		Body:       string(body),
		Header:     resp.Header.Clone(),
		Wait:       ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
}

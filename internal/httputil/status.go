// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
	Header     http.Header

	// Wait is the parsed Retry-After hint, zero when absent.
	Wait time.Duration
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
	if body := strings.TrimSpace(e.Body); body != "" {
		if len(body) > 200 {
			body = body[:200] + "..."
		}
		msg += ": " + body
	}
	return msg
}

// RetryAfter returns the server's wait hint so retry.Policy can honor it.
func (e *StatusError) RetryAfter() time.Duration { return e.Wait }

// Temporary reports whether the status is worth retrying (429 or 5xx).
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ParseRetryAfter converts a Retry-After header (delta seconds or HTTP date)
// into a duration relative to now. Invalid or past values yield zero.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// IsRetryable classifies err as transient: timeouts, transport failures,
// HTTP 429 and 5xx. Context cancellation by the caller is not retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}

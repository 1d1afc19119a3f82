// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientDo_Success(t *testing.T) {
	var ua string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		fmt.Fprint(w, "ok")
	}))
	defer ts.Close()

	c := NewClient(ClientConfig{UserAgent: "test-agent/1.0"})
	resp, err := c.Get(context.Background(), ts.URL, "text/plain")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, "test-agent/1.0", ua)
}

func TestClientDo_DefaultUserAgent(t *testing.T) {
	var ua string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
	}))
	defer ts.Close()

	resp, err := NewClient(ClientConfig{}).Get(context.Background(), ts.URL, "")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, DefaultUserAgent, ua)
}

func TestClientDo_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, "slow down")
	}))
	defer ts.Close()

	_, err := NewClient(ClientConfig{}).Get(context.Background(), ts.URL, "")
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, "slow down", se.Body)
	assert.Equal(t, 7*time.Second, se.RetryAfter())
	assert.True(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "HTTP 429")
}

func TestClientDo_NotFoundNotRetryable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := NewClient(ClientConfig{}).Get(context.Background(), ts.URL, "")
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}

func TestClientDo_RateLimited(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()

	// One token per 10s with burst 1: the second call cannot start before
	// the context deadline.
	c := NewClient(ClientConfig{RequestsPerSecond: 0.1, Burst: 1})

	resp, err := c.Get(context.Background(), ts.URL, "")
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Get(ctx, ts.URL, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter wait")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientDo_TransportErrorRetryable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := ts.URL
	ts.Close()

	_, err := NewClient(ClientConfig{Timeout: time.Second}).Get(context.Background(), url, "")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"empty", "", 0},
		{"seconds", "120", 2 * time.Minute},
		{"zero seconds", "0", 0},
		{"negative", "-5", 0},
		{"http date", now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{"past date", now.Add(-time.Hour).Format(http.TimeFormat), 0},
		{"garbage", "soon", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRetryAfter(tt.value, now))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), true},
		{"500", &StatusError{StatusCode: 500}, true},
		{"503 wrapped", fmt.Errorf("page 2: %w", &StatusError{StatusCode: 503}), true},
		{"429", &StatusError{StatusCode: 429}, true},
		{"400", &StatusError{StatusCode: 400}, false},
		{"403", &StatusError{StatusCode: 403}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

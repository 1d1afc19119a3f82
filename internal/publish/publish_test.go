// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/pkg/types"
)

const absURL = "https://arxiv.org/abs/2401.00001"

func TestComposeText(t *testing.T) {
	long := strings.Repeat("word ", 80)

	tests := []struct {
		name    string
		prefix  string
		summary string
		url     string
		max     int
		check   func(t *testing.T, got string)
	}{
		{
			name:    "short summary gets url",
			prefix:  "Hey! ",
			summary: "A new paper on agents.",
			url:     absURL,
			max:     280,
			check: func(t *testing.T, got string) {
				assert.Equal(t, "Hey! A new paper on agents.\n\n"+absURL, got)
			},
		},
		{
			name:    "long summary truncated without url",
			summary: long,
			url:     absURL,
			max:     280,
			check: func(t *testing.T, got string) {
				assert.LessOrEqual(t, utf8.RuneCountInString(got), 280)
				assert.True(t, strings.HasSuffix(got, "..."))
				assert.NotContains(t, got, absURL)
			},
		},
		{
			name:    "multibyte prefix counted in characters",
			prefix:  "C(・ω・ )つ みんなー！",
			summary: strings.Repeat("あ", 300),
			max:     280,
			check: func(t *testing.T, got string) {
				assert.Equal(t, 280, utf8.RuneCountInString(got))
				assert.True(t, strings.HasPrefix(got, "C(・ω・ )つ"))
			},
		},
		{
			name:    "limit shorter than the ellipsis",
			summary: "summary",
			max:     2,
			check: func(t *testing.T, got string) {
				assert.Equal(t, "su", got)
			},
		},
		{
			name:    "limit of one",
			prefix:  "C(",
			summary: "x",
			max:     1,
			check: func(t *testing.T, got string) {
				assert.Equal(t, "C", got)
			},
		},
		{
			name:    "zero max uses platform default",
			summary: "short",
			check: func(t *testing.T, got string) {
				assert.Equal(t, "short", got)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, ComposeText(tt.prefix, tt.summary, tt.url, tt.max))
		})
	}
}

func newTestBackend(t *testing.T, h http.HandlerFunc) *XBackend {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	b, err := NewXBackend(types.PublishConfig{
		HTTPConfig:  types.HTTPConfig{Timeout: 5 * time.Second},
		BaseURL:     ts.URL,
		AccessToken: "tok",
	})
	require.NoError(t, err)
	return b
}

func TestXBackendPublish(t *testing.T) {
	var got xCreateRequest
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2/tweets", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"data":{"id":"1790000000000000001","text":"hello"}}`)
	})

	post, err := b.Publish(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "1790000000000000001", post.ID)
	assert.Equal(t, "hello", post.Text)
	assert.Equal(t, "hello", got.Text)
}

func TestXBackendErrors(t *testing.T) {
	reset := time.Now().Add(90 * time.Second).Unix()

	tests := []struct {
		name     string
		status   int
		header   map[string]string
		body     string
		wantKind Kind
		minWait  time.Duration
	}{
		{name: "unauthorized", status: 401, body: `{"title":"Unauthorized"}`, wantKind: KindAuth},
		{name: "duplicate content", status: 403, body: `{"detail":"You are not allowed to create a Tweet with duplicate content."}`, wantKind: KindDuplicate},
		{
			name:     "rate limited with reset header",
			status:   429,
			header:   map[string]string{"x-rate-limit-reset": strconv.FormatInt(reset, 10)},
			wantKind: KindRateLimit,
			minWait:  60 * time.Second,
		},
		{name: "rate limited without hint", status: 429, wantKind: KindRateLimit, minWait: DefaultRateLimitWait},
		{name: "server error", status: 503, wantKind: KindUnavailable},
		{name: "bad request", status: 400, body: `{"errors":[{"message":"text too long"}]}`, wantKind: KindRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := b.Publish(context.Background(), "hello")
			var pe *PublishError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantKind, pe.Kind)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.GreaterOrEqual(t, pe.RetryAfter(), tt.minWait)
			assert.Equal(t, tt.wantKind == KindRateLimit, IsRateLimited(err))
		})
	}
}

func TestXBackendMissingID(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{}}`)
	})
	_, err := b.Publish(context.Background(), "hello")
	var pe *PublishError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindUnavailable, pe.Kind)
}

func TestNewXBackendRequiresToken(t *testing.T) {
	_, err := NewXBackend(types.PublishConfig{})
	assert.Error(t, err)
}

func TestWriteLog(t *testing.T) {
	dir := t.TempDir()

	l := NewPostLog(time.Date(2025, 3, 1, 9, 30, 0, 0, time.Local))
	l.Title = "Agents"
	l.ArxivID = "hep-th/9901001"
	l.Summary = "summary"
	l.PostText = "post"
	l.Tweets = append(l.Tweets, PostRecord{Type: "post", ID: "42", Text: "post"})

	path, err := WriteLog(dir, l)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "hep-th_9901001_post_log.json"))

	got, err := ReadLog(dir, "hep-th/9901001")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01 09:30:00", got.Timestamp)
	assert.Equal(t, l.Tweets, got.Tweets)
	assert.Empty(t, got.Error)
}

func TestWriteLogNoPostsKeepsEmptyList(t *testing.T) {
	dir := t.TempDir()
	l := NewPostLog(time.Now())
	l.ArxivID = "2401.00001"

	path, err := WriteLog(dir, l)
	require.NoError(t, err)

	var raw map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []any{}, raw["tweets"])
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

func TestTruncate(t *testing.T) {
	para := strings.Repeat("a", 60) + "\n\n" + strings.Repeat("b", 60)

	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{"short unchanged", "hello", 10, "hello"},
		{"zero disables", "hello", 0, "hello"},
		{"hard cut", "abcdef", 3, "abc"},
		{"paragraph boundary", para, 100, strings.Repeat("a", 60)},
		{"word boundary", "alpha beta gamma delta", 14, "alpha beta"},
		{"multibyte safe", "日本語のテキストです", 4, "日本語の"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.text, tt.max)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestParsePrompt(t *testing.T) {
	data := PromptData{Title: "Attention", Text: "We propose..."}

	tests := []struct {
		name     string
		template string
		contains []string
	}{
		{"default", "", []string{"Title: Attention", "We propose..."}},
		{"go template", "Summarize {{.Title}}: {{.Text}}", []string{"Summarize Attention: We propose..."}},
		{"legacy placeholder", "Explain this: {paper_text}", []string{"Explain this: We propose..."}},
		{"no placeholder appends text", "Explain simply.", []string{"Explain simply.", "We propose..."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePrompt(tt.template)
			require.NoError(t, err)
			got, err := p.Render(data)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
		})
	}
}

func TestParsePromptInvalid(t *testing.T) {
	_, err := ParsePrompt("{{.Text")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      Kind
		retryable bool
	}{
		{"429", &httputil.StatusError{StatusCode: 429, Wait: 5 * time.Second}, KindQuota, true},
		{"500", &httputil.StatusError{StatusCode: 500}, KindUnavailable, true},
		{"529 overloaded", &httputil.StatusError{StatusCode: 529}, KindUnavailable, true},
		{"504", &httputil.StatusError{StatusCode: 504}, KindTimeout, true},
		{"401", &httputil.StatusError{StatusCode: 401}, KindRejected, false},
		{"400", &httputil.StatusError{StatusCode: 400}, KindRejected, false},
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), KindTimeout, true},
		{"transport", errors.New("connection reset"), KindUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := classify("test", tt.err)
			assert.Equal(t, tt.kind, se.Kind)
			assert.Equal(t, tt.retryable, IsRetryable(se))
		})
	}
}

func TestClassifyKeepsRetryAfter(t *testing.T) {
	se := classify("test", &httputil.StatusError{StatusCode: 429, Wait: 7 * time.Second})
	assert.Equal(t, 7*time.Second, se.RetryAfter())
	assert.Equal(t, 429, se.StatusCode)
}

func TestIsRetryableNonSummarizeError(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("other")))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(malformed("x", "bad json")))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      types.SummarizeConfig
		wantName string
		wantErr  bool
	}{
		{"openai", types.SummarizeConfig{Backend: types.SummarizeOpenAI, AIConfig: types.AIConfig{APIKey: "k"}}, "openai", false},
		{"claude", types.SummarizeConfig{Backend: types.SummarizeClaude, AIConfig: types.AIConfig{APIKey: "k"}}, "claude", false},
		{"missing key", types.SummarizeConfig{Backend: types.SummarizeClaude}, "", true},
		{"unknown", types.SummarizeConfig{Backend: "llama", AIConfig: types.AIConfig{APIKey: "k"}}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, s.Name())
		})
	}
}

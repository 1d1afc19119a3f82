// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package summarize turns extracted paper text into a short summary with a
// language-model API. Backends report failures as *SummarizeError with a
// Kind the pipeline uses to decide whether to retry.
package summarize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// Defaults applied when the config leaves a field zero.
const (
	DefaultMaxTokens     = 300
	DefaultMaxInputChars = 60000
	DefaultTimeout       = 90 * time.Second
)

// DefaultSystemPrompt sets the voice of the summaries.
const DefaultSystemPrompt = "You are a friendly mascot who introduces research papers to curious middle-school students in plain, upbeat language."

// DefaultPrompt is the prompt template used when neither the search set nor
// the config provides one.
const DefaultPrompt = `Introduce the following paper in about 120 characters so that a middle-school student can follow it. Say what problem it tackles and what is new. Do not use hashtags.

Title: {{.Title}}

Paper text:
{{.Text}}`

// Summarizer produces a summary for one paper.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, req Request) (string, error)
}

// Request carries the rendered prompt inputs.
type Request struct {
	Title string

	// Prompt is the fully rendered user prompt.
	Prompt string
}

// Kind classifies a summarization failure.
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindQuota       Kind = "quota"
	KindMalformed   Kind = "malformed"
	KindUnavailable Kind = "unavailable"
	KindRejected    Kind = "rejected"
)

// SummarizeError reports a failed summarization call.
type SummarizeError struct {
	Backend    string
	Kind       Kind
	StatusCode int
	Wait       time.Duration
	Err        error
}

func (e *SummarizeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s summarize (%s, HTTP %d): %v", e.Backend, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s summarize (%s): %v", e.Backend, e.Kind, e.Err)
}

func (e *SummarizeError) Unwrap() error { return e.Err }

// RetryAfter returns the provider's wait hint, if any.
func (e *SummarizeError) RetryAfter() time.Duration { return e.Wait }

// IsRetryable reports whether err is a timeout, quota, malformed or
// unavailable failure. Rejected requests (bad key, invalid prompt) and
// caller cancellation are final.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *SummarizeError
	if !errors.As(err, &se) {
		return false
	}
	return se.Kind != KindRejected
}

// classify wraps a transport or status error from backend.
func classify(backend string, err error) *SummarizeError {
	var se *SummarizeError
	if errors.As(err, &se) {
		return se
	}
	out := &SummarizeError{Backend: backend, Kind: KindUnavailable, Err: err}

	var status *httputil.StatusError
	switch {
	case errors.As(err, &status):
		out.StatusCode = status.StatusCode
		out.Wait = status.RetryAfter()
		switch {
		case status.StatusCode == http.StatusTooManyRequests:
			out.Kind = KindQuota
		case status.StatusCode == http.StatusRequestTimeout || status.StatusCode == http.StatusGatewayTimeout:
			out.Kind = KindTimeout
		case status.StatusCode >= 500:
			out.Kind = KindUnavailable
		default:
			out.Kind = KindRejected
		}
	case errors.Is(err, context.DeadlineExceeded):
		out.Kind = KindTimeout
	default:
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			out.Kind = KindTimeout
		}
	}
	return out
}

func malformed(backend string, format string, args ...any) *SummarizeError {
	return &SummarizeError{Backend: backend, Kind: KindMalformed, Err: fmt.Errorf(format, args...)}
}

// PromptData is the value a prompt template is executed with.
type PromptData struct {
	Title    string
	Abstract string
	Text     string
}

// Prompt is a parsed prompt template.
type Prompt struct {
	tmpl *template.Template
}

// ParsePrompt parses a text/template prompt. An empty string selects
// DefaultPrompt. Templates written for the older "{paper_text}"
// placeholder style are accepted as well.
func ParsePrompt(text string) (*Prompt, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultPrompt
	}
	if !strings.Contains(text, "{{") {
		text = legacyPlaceholders.Replace(text)
		if !strings.Contains(text, "{{.Text}}") {
			text += "\n\n{{.Text}}"
		}
	}
	t, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template: %w", err)
	}
	return &Prompt{tmpl: t}, nil
}

var legacyPlaceholders = strings.NewReplacer(
	"{paper_text}", "{{.Text}}",
	"{text}", "{{.Text}}",
	"{title}", "{{.Title}}",
)

// Render executes the template.
func (p *Prompt) Render(data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return buf.String(), nil
}

// Truncate shortens text to at most maxChars runes. It cuts at the last
// paragraph break in the second half of the window when there is one, and
// otherwise at the last whitespace, never inside a multi-byte rune.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	cut := 0
	for i := range text {
		if maxChars == 0 {
			cut = i
			break
		}
		maxChars--
	}
	window := text[:cut]

	if i := strings.LastIndex(window, "\n\n"); i > len(window)/2 {
		return strings.TrimSpace(window[:i])
	}
	if i := strings.LastIndexAny(window, " \n\t"); i > len(window)/2 {
		return strings.TrimSpace(window[:i])
	}
	return window
}

// DefaultModel returns the model used when the config names none.
func DefaultModel(backend types.SummarizeBackend) string {
	if backend == types.SummarizeClaude {
		return defaultClaudeModel
	}
	return defaultOpenAIModel
}

// New returns the backend selected by cfg.
func New(cfg types.SummarizeConfig) (Summarizer, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	system := cfg.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	client := httputil.NewClient(httputil.ClientConfig{Timeout: timeout})

	switch cfg.Backend {
	case types.SummarizeClaude:
		if cfg.APIKey == "" {
			return nil, errors.New("claude backend requires an API key")
		}
		return &ClaudeBackend{APIKey: cfg.APIKey, Model: cfg.Model, MaxTokens: maxTokens, System: system, BaseURL: cfg.BaseURL, Client: client}, nil
	case "", types.SummarizeOpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("openai backend requires an API key")
		}
		return &OpenAIBackend{APIKey: cfg.APIKey, Model: cfg.Model, MaxTokens: maxTokens, System: system, BaseURL: cfg.BaseURL, Client: client}, nil
	default:
		return nil, fmt.Errorf("unknown summarize backend %q", cfg.Backend)
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pdiddy/paper-digest/internal/httputil"
)

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

const defaultClaudeModel = "claude-3-5-haiku-latest"

// ClaudeBackend calls the Claude Messages API.
type ClaudeBackend struct {
	APIKey    string
	Model     string
	MaxTokens int
	System    string
	BaseURL   string
	Client    *httputil.Client
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content    []claudeContent `json:"content"`
	StopReason string          `json:"stop_reason"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Name returns the backend identifier.
func (c *ClaudeBackend) Name() string { return "claude" }

// Summarize sends the rendered prompt and returns the text reply.
func (c *ClaudeBackend) Summarize(ctx context.Context, r Request) (string, error) {
	model := c.Model
	if model == "" {
		model = defaultClaudeModel
	}
	body, err := json.Marshal(claudeRequest{
		Model:     model,
		MaxTokens: c.MaxTokens,
		System:    c.System,
		Messages:  []claudeMessage{{Role: "user", Content: r.Prompt}},
	})
	if err != nil {
		return "", malformed(c.Name(), "marshaling request: %v", err)
	}

	url := c.BaseURL
	if url == "" {
		url = claudeAPIURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &SummarizeError{Backend: c.Name(), Kind: KindRejected, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.Client.Do(ctx, req)
	if err != nil {
		return "", classify(c.Name(), err)
	}
	defer resp.Body.Close()

	var cr claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", malformed(c.Name(), "decoding response: %v", err)
	}

	var parts []string
	for _, block := range cr.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	text := strings.TrimSpace(strings.Join(parts, ""))
	if text == "" {
		return "", malformed(c.Name(), "no text content in response")
	}
	return text, nil
}

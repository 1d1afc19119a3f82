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

// openAIAPIURL is the chat completions endpoint. Package-level var for test
// substitution.
var openAIAPIURL = "https://api.openai.com/v1/chat/completions"

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIBackend calls the OpenAI chat completions API.
type OpenAIBackend struct {
	APIKey    string
	Model     string
	MaxTokens int
	System    string
	BaseURL   string
	Client    *httputil.Client
}

type openAIRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

// Name returns the backend identifier.
func (o *OpenAIBackend) Name() string { return "openai" }

// Summarize sends the system and user messages and returns the first choice.
func (o *OpenAIBackend) Summarize(ctx context.Context, r Request) (string, error) {
	model := o.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	msgs := make([]openAIMessage, 0, 2)
	if o.System != "" {
		msgs = append(msgs, openAIMessage{Role: "system", Content: o.System})
	}
	msgs = append(msgs, openAIMessage{Role: "user", Content: r.Prompt})

	body, err := json.Marshal(openAIRequest{Model: model, MaxTokens: o.MaxTokens, Messages: msgs})
	if err != nil {
		return "", malformed(o.Name(), "marshaling request: %v", err)
	}

	url := o.BaseURL
	if url == "" {
		url = openAIAPIURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &SummarizeError{Backend: o.Name(), Kind: KindRejected, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.APIKey)

	resp, err := o.Client.Do(ctx, req)
	if err != nil {
		return "", classify(o.Name(), err)
	}
	defer resp.Body.Close()

	var or openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return "", malformed(o.Name(), "decoding response: %v", err)
	}
	if len(or.Choices) == 0 {
		return "", malformed(o.Name(), "response has no choices")
	}
	text := strings.TrimSpace(or.Choices[0].Message.Content)
	if text == "" {
		return "", malformed(o.Name(), "empty completion")
	}
	return text, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// xAPIBase is the X API root. Package-level var for test substitution.
var xAPIBase = "https://api.x.com"

// DefaultRateLimitWait applies when a 429 carries no reset hint.
const DefaultRateLimitWait = 15 * time.Minute

// XBackend posts through the X API v2 create-post endpoint with an OAuth 2.0
// user-context bearer token.
type XBackend struct {
	client        *httputil.Client
	baseURL       string
	token         string
	limiter       *rate.Limiter
	rateLimitWait time.Duration
	now           func() time.Time
}

// NewXBackend creates a backend from cfg.
func NewXBackend(cfg types.PublishConfig) (*XBackend, error) {
	if cfg.AccessToken == "" {
		return nil, errors.New("x publisher requires an access token")
	}
	base := cfg.BaseURL
	if base == "" {
		base = xAPIBase
	}
	wait := cfg.RateLimitWait
	if wait <= 0 {
		wait = DefaultRateLimitWait
	}
	b := &XBackend{
		client: httputil.NewClient(httputil.ClientConfig{
			Timeout:   cfg.Timeout,
			UserAgent: cfg.UserAgent,
		}),
		baseURL:       strings.TrimRight(base, "/"),
		token:         cfg.AccessToken,
		rateLimitWait: wait,
		now:           time.Now,
	}
	if cfg.MinInterval > 0 {
		b.limiter = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return b, nil
}

// Name returns the backend identifier.
func (b *XBackend) Name() string { return "x" }

type xCreateRequest struct {
	Text string `json:"text"`
}

type xCreateResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type xErrorResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Publish creates one post.
func (b *XBackend) Publish(ctx context.Context, text string) (Post, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return Post{}, fmt.Errorf("publish rate limiter: %w", err)
		}
	}

	body, err := json.Marshal(xCreateRequest{Text: text})
	if err != nil {
		return Post{}, &PublishError{Backend: b.Name(), Kind: KindRejected, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return Post{}, &PublishError{Backend: b.Name(), Kind: KindRejected, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.token)

	resp, err := b.client.Do(ctx, req)
	if err != nil {
		return Post{}, b.classify(err)
	}
	defer resp.Body.Close()

	var cr xCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return Post{}, &PublishError{Backend: b.Name(), Kind: KindUnavailable, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	if cr.Data.ID == "" {
		return Post{}, &PublishError{Backend: b.Name(), Kind: KindUnavailable, StatusCode: resp.StatusCode, Err: errors.New("response has no post id")}
	}
	return Post{ID: cr.Data.ID, Text: text}, nil
}

func (b *XBackend) classify(err error) *PublishError {
	pe := &PublishError{Backend: b.Name(), Kind: KindUnavailable, Err: err}

	var se *httputil.StatusError
	if !errors.As(err, &se) {
		return pe
	}
	pe.StatusCode = se.StatusCode

	var detail xErrorResponse
	_ = json.Unmarshal([]byte(se.Body), &detail)
	msg := strings.ToLower(detail.Detail + " " + detail.Title)
	for _, e := range detail.Errors {
		msg += " " + strings.ToLower(e.Message)
	}

	switch {
	case se.StatusCode == http.StatusTooManyRequests:
		pe.Kind = KindRateLimit
		pe.Wait = b.resetWait(se)
	case strings.Contains(msg, "duplicate"):
		pe.Kind = KindDuplicate
	case se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden:
		pe.Kind = KindAuth
	case se.StatusCode >= 500:
		pe.Kind = KindUnavailable
	default:
		pe.Kind = KindRejected
	}
	return pe
}

// resetWait reads the x-rate-limit-reset epoch, then Retry-After, then falls
// back to the configured wait.
func (b *XBackend) resetWait(se *httputil.StatusError) time.Duration {
	if se.Header != nil {
		if v := se.Header.Get("x-rate-limit-reset"); v != "" {
			if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
				if d := time.Unix(epoch, 0).Sub(b.now()); d > 0 {
					return d
				}
			}
		}
	}
	if se.Wait > 0 {
		return se.Wait
	}
	return b.rateLimitWait
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package publish posts summaries to a social feed and writes the
// per-candidate post logs the archive site is generated from.
package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultMaxLength is the platform's post length limit in characters.
const DefaultMaxLength = 280

// Post is a published item.
type Post struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Publisher sends one post.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, text string) (Post, error)
}

// Kind classifies a publish failure.
type Kind string

const (
	KindAuth        Kind = "auth"
	KindRateLimit   Kind = "rate_limit"
	KindDuplicate   Kind = "duplicate"
	KindRejected    Kind = "rejected"
	KindUnavailable Kind = "unavailable"
)

// PublishError reports a failed publish call. Wait is the platform's
// requested backoff for rate-limit failures.
type PublishError struct {
	Backend    string
	Kind       Kind
	StatusCode int
	Wait       time.Duration
	Err        error
}

func (e *PublishError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s publish (%s, HTTP %d): %v", e.Backend, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s publish (%s): %v", e.Backend, e.Kind, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// RetryAfter returns the platform's wait hint.
func (e *PublishError) RetryAfter() time.Duration { return e.Wait }

// IsRateLimited reports whether err is a rate-limit failure, the only kind
// worth one more attempt.
func IsRateLimited(err error) bool {
	var pe *PublishError
	return errors.As(err, &pe) && pe.Kind == KindRateLimit
}

const ellipsis = "..."

// ComposeText builds the post: prefix and summary, cut to maxLen characters
// with an ellipsis, then the abs URL on its own paragraph when it still
// fits.
func ComposeText(prefix, summary, absURL string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	text := prefix + strings.TrimSpace(summary)
	if utf8.RuneCountInString(text) > maxLen {
		r := []rune(text)
		if maxLen <= len(ellipsis) {
			return string(r[:maxLen])
		}
		text = strings.TrimRightFunc(string(r[:maxLen-len(ellipsis)]), func(r rune) bool { return r == ' ' || r == '\n' }) + ellipsis
	}
	if absURL != "" {
		withURL := text + "\n\n" + absURL
		if utf8.RuneCountInString(withURL) <= maxLen {
			text = withURL
		}
	}
	return text
}

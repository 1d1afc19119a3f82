// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry runs an operation under a bounded retry policy with
// exponential backoff. Every collaborator call site in the pipeline (source
// page fetches, PDF downloads, summarizer and publisher calls) uses a Policy
// value instead of an inline loop.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Sleep waits for d or until ctx is done. Tests replace it to avoid real
// waits.
var Sleep = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryAfterer is implemented by errors that carry a server-provided wait
// hint (for example an HTTP Retry-After header or a rate-limit reset time).
type RetryAfterer interface {
	RetryAfter() time.Duration
}

// Policy describes how many times to try an operation and how long to wait
// between tries. The zero value tries once.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt.
	BaseDelay time.Duration

	// Multiplier scales the delay after each failed attempt. Values below 1
	// are treated as 1 (fixed delay).
	Multiplier float64

	// MaxDelay caps a single wait. Zero means no cap.
	MaxDelay time.Duration

	// Jitter adds up to this fraction of the delay at random (0 disables).
	Jitter float64

	// Retryable reports whether err is worth another attempt. A nil
	// predicate retries every error.
	Retryable func(error) bool
}

// Exponential returns a policy that doubles BaseDelay after each attempt.
func Exponential(attempts int, base time.Duration, retryable func(error) bool) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: base, Multiplier: 2, Retryable: retryable}
}

// Fixed returns a policy that waits the same delay between attempts.
func Fixed(attempts int, delay time.Duration, retryable func(error) bool) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: delay, Multiplier: 1, Retryable: retryable}
}

// ErrExhausted marks an error returned after the last allowed attempt failed.
var ErrExhausted = errors.New("retries exhausted")

// ExhaustedError wraps the last error after all attempts failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() []error { return []error{ErrExhausted, e.Err} }

// Delay returns the wait before attempt n+1 given that attempt n (1-based)
// just failed, ignoring jitter and server hints.
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.BaseDelay)
	for i := 1; i < n; i++ {
		d *= mult
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && time.Duration(d) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Do calls op until it succeeds, returns a non-retryable error, the attempts
// run out, or ctx is done. op receives the 1-based attempt number.
//
// A non-retryable error is returned unchanged. When the attempts run out the
// last error is wrapped in *ExhaustedError. Errors implementing RetryAfterer
// override the computed delay when their hint is longer.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			if err != nil {
				return fmt.Errorf("%w (last error: %v)", cerr, err)
			}
			return cerr
		}

		err = op(ctx, attempt)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		wait := p.Delay(attempt)
		if p.Jitter > 0 {
			wait += time.Duration(rand.Float64() * p.Jitter * float64(wait))
		}
		var hinted RetryAfterer
		if errors.As(err, &hinted) {
			if hint := hinted.RetryAfter(); hint > wait {
				wait = hint
			}
		}
		if serr := Sleep(ctx, wait); serr != nil {
			return fmt.Errorf("%w (last error: %v)", serr, err)
		}
	}
	return &ExhaustedError{Attempts: attempts, Err: err}
}

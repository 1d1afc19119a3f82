// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert extracts plain text from PDF bytes with pluggable
// backends: the local pdftotext binary or the markitdown container image.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/pdiddy/paper-digest/internal/container"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// DefaultTimeout bounds one extraction run.
const DefaultTimeout = 2 * time.Minute

var pdfMagic = []byte("%PDF")

// Extractor turns PDF bytes into text. Extraction is deterministic for a
// given input; callers do not retry it.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, pdf []byte) (string, error)
}

// Sentinel causes carried by ExtractionError.
var (
	ErrNotPDF    = errors.New("input is not a PDF")
	ErrEmptyText = errors.New("empty text")
)

// ExtractionError reports a failed extraction.
type ExtractionError struct {
	Backend string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s extraction: %v", e.Backend, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Run validates pdf, runs ex under timeout and normalizes the result. Empty
// or whitespace-only output is reported as ErrEmptyText so the caller can
// stop before summarizing.
func Run(ctx context.Context, ex Extractor, pdf []byte, timeout time.Duration) (string, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(pdf, "\x00\t\r\n "), pdfMagic) {
		return "", &ExtractionError{Backend: ex.Name(), Err: ErrNotPDF}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := ex.Extract(ctx, pdf)
	if err != nil {
		var ee *ExtractionError
		if errors.As(err, &ee) {
			return "", err
		}
		return "", &ExtractionError{Backend: ex.Name(), Err: err}
	}
	text = Normalize(text)
	if text == "" {
		return "", &ExtractionError{Backend: ex.Name(), Err: ErrEmptyText}
	}
	return text, nil
}

// Normalize strips control characters, trims trailing spaces on each line
// and collapses runs of blank lines to one.
func Normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\f':
			return '\n'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// New returns the extractor selected by cfg. The markitdown backend needs a
// working container runtime with the image present.
func New(ctx context.Context, cfg types.ExtractConfig) (Extractor, error) {
	switch cfg.Backend {
	case "", types.ExtractPdftotext:
		return NewPdftotextExtractor(), nil
	case types.ExtractMarkitdown:
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			return nil, err
		}
		return NewMarkitdownExtractor(ctx, rt)
	default:
		return nil, fmt.Errorf("unknown extract backend %q", cfg.Backend)
	}
}

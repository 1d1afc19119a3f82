// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pdiddy/paper-digest/internal/container"
)

const imageMarkitdown = "markitdown:latest"

// MarkitdownExtractor pipes PDFs through the markitdown container image.
type MarkitdownExtractor struct {
	runtime container.Runtime
}

// NewMarkitdownExtractor verifies that the markitdown image exists in rt.
func NewMarkitdownExtractor(ctx context.Context, rt container.Runtime) (*MarkitdownExtractor, error) {
	if err := rt.ImageExists(ctx, imageMarkitdown); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &MarkitdownExtractor{runtime: rt}, nil
}

// Name returns the backend identifier.
func (m *MarkitdownExtractor) Name() string { return "markitdown" }

// Extract returns the Markdown produced by the container.
func (m *MarkitdownExtractor) Extract(ctx context.Context, pdf []byte) (string, error) {
	var out bytes.Buffer
	if err := m.runtime.Run(ctx, imageMarkitdown, bytes.NewReader(pdf), &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

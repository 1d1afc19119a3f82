// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// runCommand executes name with args. Declared as a var so tests can
// substitute a fake binary.
var runCommand = func(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// PdftotextExtractor runs poppler's pdftotext reading stdin and writing
// stdout.
type PdftotextExtractor struct {
	bin string
}

// NewPdftotextExtractor uses the pdftotext found on PATH.
func NewPdftotextExtractor() *PdftotextExtractor {
	return &PdftotextExtractor{bin: "pdftotext"}
}

// Name returns the backend identifier.
func (p *PdftotextExtractor) Name() string { return "pdftotext" }

// Extract returns the text layer of pdf in reading order.
func (p *PdftotextExtractor) Extract(ctx context.Context, pdf []byte) (string, error) {
	var out, stderr bytes.Buffer
	args := []string{"-enc", "UTF-8", "-nopgbrk", "-", "-"}
	if err := runCommand(ctx, p.bin, args, bytes.NewReader(pdf), &out, &stderr); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("running %s: %w: %s", p.bin, err, msg)
		}
		return "", fmt.Errorf("running %s: %w", p.bin, err)
	}
	return out.String(), nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"regexp"
	"strings"
)

// arxivPDFBase is the arXiv PDF endpoint.
var arxivPDFBase = "https://arxiv.org/pdf/"

// newStylePattern matches modern ids: "2301.07041", "arXiv:2301.07041v2".
var newStylePattern = regexp.MustCompile(`^(?i:arxiv:)?(\d{4}\.\d{4,5})(?:v\d+)?$`)

// oldStylePattern matches archive ids: "hep-th/9901001", "math.GT/0309136v1".
var oldStylePattern = regexp.MustCompile(`^(?i:arxiv:)?([a-z\-]+(?:\.[A-Z]{2})?/\d{7})(?:v\d+)?$`)

// urlPattern matches abs and pdf URLs on arxiv.org.
var urlPattern = regexp.MustCompile(`^https?://(?:export\.)?arxiv\.org/(?:abs|pdf)/(.+?)(?:\.pdf)?$`)

// NormalizeID accepts an arXiv id in any common spelling (bare, "arXiv:"
// prefixed, versioned, abs or pdf URL) and returns the bare id without the
// version suffix. The ledger and the paper store key on this form.
func NormalizeID(input string) (string, bool) {
	s := strings.TrimSpace(input)
	if m := urlPattern.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	if m := newStylePattern.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	if m := oldStylePattern.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	return "", false
}

// Slug returns a filesystem-safe filename stem for an arXiv id. Archive ids
// contain a slash, which becomes an underscore.
func Slug(id string) string {
	return strings.NewReplacer("/", "_", ":", "-").Replace(id)
}

// PDFURL returns the arXiv download URL for a bare id.
func PDFURL(id string) string {
	return arxivPDFBase + id
}

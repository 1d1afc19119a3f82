// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/atom"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ErrRejected marks a query the source refused (an arXiv error entry). It is
// not retried.
var ErrRejected = errors.New("query rejected by source")

var arxivIDPattern = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// ArxivBackend queries the arXiv Atom API sorted by submission date.
type ArxivBackend struct {
	client  *httputil.Client
	baseURL string
}

// NewArxivBackend creates a backend from cfg. An empty BaseURL uses the
// public endpoint.
func NewArxivBackend(cfg types.SourceConfig) *ArxivBackend {
	base := cfg.BaseURL
	if base == "" {
		base = arxivAPIBase
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1.0 / 3
	}
	return &ArxivBackend{
		client: httputil.NewClient(httputil.ClientConfig{
			Timeout:           cfg.Timeout,
			RequestsPerSecond: rps,
			Burst:             1,
			UserAgent:         cfg.UserAgent,
		}),
		baseURL: base,
	}
}

// Name returns the backend identifier.
func (b *ArxivBackend) Name() string { return "arxiv" }

// FetchPage requests one page of results, newest submission first.
func (b *ArxivBackend) FetchPage(ctx context.Context, req PageRequest) (Page, error) {
	u, err := b.buildURL(req)
	if err != nil {
		return Page{}, err
	}

	resp, err := b.client.Get(ctx, u, "application/atom+xml")
	if err != nil {
		return Page{}, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	// The Atom parser is used directly: the generic gofeed translation
	// drops rel="related" links, which is where arXiv puts the PDF.
	var parser atom.Parser
	feed, err := parser.Parse(resp.Body)
	if err != nil {
		return Page{}, fmt.Errorf("%w: parsing arXiv feed: %v", ErrMalformedResponse, err)
	}

	page := Page{TotalResults: totalResults(feed)}
	for _, entry := range feed.Entries {
		if strings.Contains(entry.ID, "/api/errors") {
			return Page{}, fmt.Errorf("%w: %s", ErrRejected, normalizeWhitespace(entry.Summary))
		}
		c, ok := entryToCandidate(entry)
		if !ok {
			continue
		}
		page.Candidates = append(page.Candidates, c)
	}
	return page, nil
}

func (b *ArxivBackend) buildURL(req PageRequest) (string, error) {
	u, err := url.Parse(b.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	v := url.Values{}
	v.Set("search_query", buildSearchQuery(req.Query))
	v.Set("start", strconv.Itoa(req.Start))
	v.Set("max_results", strconv.Itoa(req.Size))
	v.Set("sortBy", "submittedDate")
	v.Set("sortOrder", "descending")
	u.RawQuery = v.Encode()
	return u.String(), nil
}

// buildSearchQuery joins the keywords with AND (or OR) and appends a
// submittedDate lower bound when the query has a cursor. arXiv filters at
// minute granularity, so the bound is inclusive and the adapter re-checks
// the exact timestamp.
func buildSearchQuery(q Query) string {
	var terms []string
	for _, kw := range q.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.ContainsAny(kw, " \t") {
			terms = append(terms, `all:"`+strings.Join(strings.Fields(kw), " ")+`"`)
		} else {
			terms = append(terms, "all:"+kw)
		}
	}

	op := " AND "
	if q.UseOr {
		op = " OR "
	}
	query := strings.Join(terms, op)

	if !q.Since.IsZero() {
		if len(terms) > 1 {
			query = "(" + query + ")"
		}
		query += fmt.Sprintf(" AND submittedDate:[%s TO *]", q.Since.UTC().Format("200601021504"))
	}
	return query
}

func entryToCandidate(entry *atom.Entry) (types.Candidate, bool) {
	id := extractArxivID(entry.ID)
	for _, link := range entry.Links {
		if id != "" {
			break
		}
		if link != nil && (link.Rel == "" || link.Rel == "alternate") {
			id = extractArxivID(link.Href)
		}
	}
	if id == "" {
		return types.Candidate{}, false
	}

	c := types.Candidate{
		ID:       id,
		Title:    normalizeWhitespace(entry.Title),
		Abstract: normalizeWhitespace(entry.Summary),
		AbsURL:   "https://arxiv.org/abs/" + id,
		PDFURL:   pdfLink(entry.Links),
	}
	for _, cat := range entry.Categories {
		if cat != nil && cat.Term != "" {
			c.Categories = append(c.Categories, cat.Term)
		}
	}
	for _, a := range entry.Authors {
		if a == nil {
			continue
		}
		if name := strings.TrimSpace(a.Name); name != "" {
			c.Authors = append(c.Authors, name)
		}
	}
	switch {
	case entry.PublishedParsed != nil:
		c.PublishedAt = entry.PublishedParsed.UTC()
	case entry.UpdatedParsed != nil:
		c.PublishedAt = entry.UpdatedParsed.UTC()
	}
	if c.PDFURL == "" {
		c.PDFURL = "https://arxiv.org/pdf/" + id
	}
	return c, true
}

// pdfLink returns the entry's PDF link: title "pdf" or type application/pdf.
func pdfLink(links []*atom.Link) string {
	for _, l := range links {
		if l == nil || l.Href == "" {
			continue
		}
		if l.Title == "pdf" || l.Type == "application/pdf" {
			return strings.TrimSpace(l.Href)
		}
	}
	return ""
}

func totalResults(feed *atom.Feed) int {
	ns, ok := feed.Extensions["opensearch"]
	if !ok {
		return 0
	}
	vals := ns["totalResults"]
	if len(vals) == 0 {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(vals[0].Value))
	if err != nil {
		return 0
	}
	return n
}

// extractArxivID pulls the arXiv ID from an entry URL and strips the
// version suffix ("http://arxiv.org/abs/2301.07041v2" becomes "2301.07041").
func extractArxivID(entryURL string) string {
	m := arxivIDPattern.FindStringSubmatch(strings.TrimSpace(entryURL))
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// normalizeWhitespace trims and collapses runs of whitespace.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// formatSince renders a cursor for log lines.
func formatSince(t time.Time) string {
	if t.IsZero() {
		return "beginning"
	}
	return t.UTC().Format(time.RFC3339)
}

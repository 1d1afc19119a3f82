// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

const atomHeader = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <title>ArXiv Query</title>
  <id>http://arxiv.org/api/query</id>
  <updated>2026-03-02T00:00:00-05:00</updated>
  <opensearch:totalResults>%d</opensearch:totalResults>
`

const atomEntry = `  <entry>
    <id>http://arxiv.org/abs/%sv2</id>
    <published>%s</published>
    <updated>%s</updated>
    <title>%s</title>
    <summary>  An abstract
      spanning lines.  </summary>
    <author><name>Ada Lovelace</name></author>
    <author><name> Alan Turing </name></author>
    <link href="http://arxiv.org/abs/%sv2" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/%sv2" rel="related" type="application/pdf"/>
    <category term="cs.CL" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.AI" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
`

type testEntry struct {
	id        string
	title     string
	published time.Time
}

func atomFeed(total int, entries ...testEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, atomHeader, total)
	for _, e := range entries {
		ts := e.published.Format(time.RFC3339)
		fmt.Fprintf(&b, atomEntry, e.id, ts, ts, e.title, e.id, e.id)
	}
	b.WriteString("</feed>\n")
	return b.String()
}

func newTestBackend(t *testing.T, h http.HandlerFunc) *ArxivBackend {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return NewArxivBackend(types.SourceConfig{BaseURL: ts.URL, RequestsPerSecond: 1000})
}

func TestArxivFetchPage(t *testing.T) {
	published := time.Date(2026, 3, 1, 17, 59, 0, 0, time.UTC)
	var gotQuery url.Values
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, atomFeed(1, testEntry{id: "2603.01234", title: "Agents   that\n  plan", published: published}))
	})

	page, err := b.FetchPage(context.Background(), PageRequest{
		Query: Query{Keywords: []string{"LLM", "agents"}},
		Start: 10,
		Size:  5,
	})
	require.NoError(t, err)

	assert.Equal(t, "all:LLM AND all:agents", gotQuery.Get("search_query"))
	assert.Equal(t, "10", gotQuery.Get("start"))
	assert.Equal(t, "5", gotQuery.Get("max_results"))
	assert.Equal(t, "submittedDate", gotQuery.Get("sortBy"))
	assert.Equal(t, "descending", gotQuery.Get("sortOrder"))

	require.Len(t, page.Candidates, 1)
	c := page.Candidates[0]
	assert.Equal(t, "2603.01234", c.ID)
	assert.Equal(t, "Agents that plan", c.Title)
	assert.Equal(t, "An abstract spanning lines.", c.Abstract)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, c.Authors)
	assert.True(t, c.PublishedAt.Equal(published))
	assert.Equal(t, "http://arxiv.org/pdf/2603.01234v2", c.PDFURL)
	assert.Equal(t, "https://arxiv.org/abs/2603.01234", c.AbsURL)
	assert.Equal(t, []string{"cs.CL", "cs.AI"}, c.Categories)
}

func TestArxivFetchPage_PDFLinkFallback(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/hep-th/9901001v1</id>
    <published>1999-01-04T00:00:00Z</published>
    <title>Old style</title>
    <link href="http://arxiv.org/abs/hep-th/9901001v1" rel="alternate" type="text/html"/>
  </entry>
</feed>`)
	})

	page, err := b.FetchPage(context.Background(), PageRequest{Query: Query{Keywords: []string{"x"}}, Size: 10})
	require.NoError(t, err)
	require.Len(t, page.Candidates, 1)
	assert.Equal(t, "hep-th/9901001", page.Candidates[0].ID)
	assert.Equal(t, "https://arxiv.org/pdf/hep-th/9901001", page.Candidates[0].PDFURL)
}

func TestArxivFetchPage_ErrorEntryRejected(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/api/errors#incorrect_id_format</id>
    <title>Error</title>
    <summary>incorrect id format</summary>
  </entry>
</feed>`)
	})

	_, err := b.FetchPage(context.Background(), PageRequest{Query: Query{Keywords: []string{"x"}}, Size: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
	assert.False(t, isRetryable(err))
}

func TestArxivFetchPage_Malformed(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "this is not a feed")
	})

	_, err := b.FetchPage(context.Background(), PageRequest{Query: Query{Keywords: []string{"x"}}, Size: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.False(t, isRetryable(err))
}

func TestArxivFetchPage_ServerError(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := b.FetchPage(context.Background(), PageRequest{Query: Query{Keywords: []string{"x"}}, Size: 10})
	require.Error(t, err)

	var se *httputil.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.True(t, isRetryable(err))
}

func TestBuildSearchQuery(t *testing.T) {
	since := time.Date(2026, 2, 28, 9, 5, 30, 0, time.UTC)

	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{"single", Query{Keywords: []string{"LLM"}}, "all:LLM"},
		{"and", Query{Keywords: []string{"LLM", "agents"}}, "all:LLM AND all:agents"},
		{"or", Query{Keywords: []string{"LLM", "agents"}, UseOr: true}, "all:LLM OR all:agents"},
		{"phrase", Query{Keywords: []string{"large  language model"}}, `all:"large language model"`},
		{"blank keywords skipped", Query{Keywords: []string{" ", "RAG"}}, "all:RAG"},
		{"since single", Query{Keywords: []string{"RAG"}, Since: since}, "all:RAG AND submittedDate:[202602280905 TO *]"},
		{"since multi", Query{Keywords: []string{"a", "b"}, UseOr: true, Since: since}, "(all:a OR all:b) AND submittedDate:[202602280905 TO *]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildSearchQuery(tt.query))
		})
	}
}

func TestExtractArxivID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://arxiv.org/abs/2301.07041v1", "2301.07041"},
		{"http://arxiv.org/abs/2301.07041v12", "2301.07041"},
		{"https://arxiv.org/abs/2301.07041", "2301.07041"},
		{"http://arxiv.org/abs/hep-th/9901001v1", "hep-th/9901001"},
		{"http://example.com/paper", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, extractArxivID(tt.in))
		})
	}
}

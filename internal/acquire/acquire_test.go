// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

func TestStorePDFRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	if _, ok, err := s.LoadPDF("2301.07041"); err != nil || ok {
		t.Fatalf("LoadPDF on empty store = (%v, %v), want (false, nil)", ok, err)
	}

	path, err := s.SavePDF("2301.07041", []byte("%PDF-1.7 body"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(path, filepath.Join("raw", "2301.07041.pdf")) {
		t.Errorf("SavePDF path = %q", path)
	}

	data, ok, err := s.LoadPDF("2301.07041")
	if err != nil || !ok {
		t.Fatalf("LoadPDF = (%v, %v)", ok, err)
	}
	if string(data) != "%PDF-1.7 body" {
		t.Errorf("LoadPDF data = %q", data)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("raw dir has %d entries, want 1", len(entries))
	}
}

func TestStoreEmptyCachedPDFIgnored(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := os.MkdirAll(filepath.Dir(s.PDFPath("2301.00001")), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.PDFPath("2301.00001"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.LoadPDF("2301.00001"); err != nil || ok {
		t.Errorf("LoadPDF on empty file = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestStoreMetadataMergesSearchSets(t *testing.T) {
	s := NewStore(t.TempDir())
	published := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rec := PaperRecord{
		Candidate: types.Candidate{
			ID:          "hep-th/9901001",
			Title:       "Strings",
			Authors:     []string{"A. Author"},
			PublishedAt: published,
		},
		PDFPath:    s.PDFPath("hep-th/9901001"),
		SearchSets: []string{"strings"},
	}
	if err := s.WriteMetadata(rec); err != nil {
		t.Fatal(err)
	}
	rec.SearchSets = []string{"physics", "strings"}
	if err := s.WriteMetadata(rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.ReadMetadata("hep-th/9901001")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Strings" || !got.PublishedAt.Equal(published) {
		t.Errorf("ReadMetadata = %+v", got)
	}
	if strings.Join(got.SearchSets, ",") != "strings,physics" {
		t.Errorf("SearchSets = %v, want [strings physics]", got.SearchSets)
	}
}

func TestFetchPDF(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pdf/ok":
			if r.Header.Get("Accept") != "application/pdf" {
				t.Errorf("Accept = %q", r.Header.Get("Accept"))
			}
			w.Write([]byte("%PDF-1.4 content"))
		case "/pdf/empty":
		case "/pdf/big":
			w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	d := NewDownloader(types.DownloadConfig{MaxBytes: 32})
	ctx := context.Background()

	data, err := d.FetchPDF(ctx, ts.URL+"/pdf/ok")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "%PDF-1.4 content" {
		t.Errorf("FetchPDF data = %q", data)
	}

	if _, err := d.FetchPDF(ctx, ts.URL+"/pdf/empty"); !errors.Is(err, ErrEmptyPDF) {
		t.Errorf("empty body err = %v, want ErrEmptyPDF", err)
	}
	if _, err := d.FetchPDF(ctx, ts.URL+"/pdf/big"); !errors.Is(err, ErrTooLarge) {
		t.Errorf("oversize err = %v, want ErrTooLarge", err)
	}

	_, err = d.FetchPDF(ctx, ts.URL+"/pdf/missing")
	var se *httputil.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Errorf("missing err = %v, want 404 StatusError", err)
	}
}

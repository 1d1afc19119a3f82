// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads paper PDFs and keeps the on-disk paper store:
// one PDF and one YAML metadata record per arXiv id, shared by every search
// set so a paper matched by several sets is downloaded once.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-digest/internal/httputil"
	"github.com/pdiddy/paper-digest/pkg/types"
)

const (
	rawDir      = "raw"
	metadataDir = "metadata"
)

// DefaultMaxBytes caps a single PDF download.
const DefaultMaxBytes int64 = 100 << 20

// Download errors that retrying will not fix.
var (
	ErrEmptyPDF = errors.New("empty PDF body")
	ErrTooLarge = errors.New("PDF exceeds size limit")
)

// PaperRecord is the metadata written next to each cached PDF.
type PaperRecord struct {
	types.Candidate `yaml:",inline"`

	// PDFPath is the local path of the cached PDF.
	PDFPath string `json:"pdf_path" yaml:"pdf_path"`

	// DownloadedAt is when the PDF was stored.
	DownloadedAt time.Time `json:"downloaded_at" yaml:"downloaded_at"`

	// SearchSets lists the sets that matched this paper.
	SearchSets []string `json:"search_sets,omitempty" yaml:"search_sets,omitempty"`
}

// Store is the directory layout under papers_dir.
type Store struct {
	dir string
}

// NewStore returns a store rooted at papersDir. Directories are created on
// first write.
func NewStore(papersDir string) *Store {
	return &Store{dir: papersDir}
}

// PDFPath returns where the PDF for id is cached.
func (s *Store) PDFPath(id string) string {
	return filepath.Join(s.dir, rawDir, Slug(id)+".pdf")
}

// MetadataPath returns where the metadata record for id is kept.
func (s *Store) MetadataPath(id string) string {
	return filepath.Join(s.dir, metadataDir, Slug(id)+".yaml")
}

// LoadPDF returns the cached PDF for id. The boolean is false when nothing
// usable is cached.
func (s *Store) LoadPDF(id string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.PDFPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cached PDF %s: %w", id, err)
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	return data, true, nil
}

// SavePDF writes data for id through a temporary file and a rename, so a
// crash never leaves a truncated PDF under the final name.
func (s *Store) SavePDF(id string, data []byte) (string, error) {
	dest := s.PDFPath(id)
	if err := writeAtomic(dest, data); err != nil {
		return "", fmt.Errorf("saving PDF %s: %w", id, err)
	}
	return dest, nil
}

// WriteMetadata writes the YAML record for rec.ID, merging the search sets
// of any existing record.
func (s *Store) WriteMetadata(rec PaperRecord) error {
	if prev, err := s.ReadMetadata(rec.ID); err == nil {
		rec.SearchSets = mergeSets(prev.SearchSets, rec.SearchSets)
	}
	data, err := yaml.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := writeAtomic(s.MetadataPath(rec.ID), data); err != nil {
		return fmt.Errorf("writing metadata for %s: %w", rec.ID, err)
	}
	return nil
}

// ReadMetadata reads the YAML record for id.
func (s *Store) ReadMetadata(id string) (*PaperRecord, error) {
	data, err := os.ReadFile(s.MetadataPath(id))
	if err != nil {
		return nil, err
	}
	var rec PaperRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing metadata for %s: %w", id, err)
	}
	return &rec, nil
}

func mergeSets(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func writeAtomic(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".acquire-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Downloader fetches PDFs over HTTP.
type Downloader struct {
	client   *httputil.Client
	maxBytes int64
}

// NewDownloader creates a Downloader from cfg.
func NewDownloader(cfg types.DownloadConfig) *Downloader {
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &Downloader{
		client: httputil.NewClient(httputil.ClientConfig{
			Timeout:   timeout,
			UserAgent: cfg.UserAgent,
		}),
		maxBytes: maxBytes,
	}
}

// FetchPDF downloads the PDF at url. The body must be non-empty and no
// larger than the configured limit.
func (d *Downloader) FetchPDF(ctx context.Context, url string) ([]byte, error) {
	resp, err := d.client.Get(ctx, url, "application/pdf")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading PDF body: %w", err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, d.maxBytes)
	}
	if len(data) == 0 {
		return nil, ErrEmptyPDF
	}
	return data, nil
}

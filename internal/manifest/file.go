// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package manifest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// fileDocument is the on-disk YAML layout.
type fileDocument struct {
	Cursors types.Cursors `yaml:"cursors"`
	LastRun *Manifest     `yaml:"last_run,omitempty"`
}

// FileStore keeps cursors and the last manifest in one YAML file, replaced
// atomically on every save.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. The file is created on the
// first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) read() (fileDocument, error) {
	var doc fileDocument
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return fileDocument{Cursors: types.Cursors{}}, nil
	}
	if err != nil {
		return doc, fmt.Errorf("reading manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parsing manifest %s: %w", s.path, err)
	}
	if doc.Cursors == nil {
		doc.Cursors = types.Cursors{}
	}
	return doc, nil
}

// LoadCursors implements Store.
func (s *FileStore) LoadCursors(context.Context) (types.Cursors, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Cursors, nil
}

// LastRun implements Store.
func (s *FileStore) LastRun(context.Context) (*Manifest, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.LastRun, nil
}

// Save implements Store.
func (s *FileStore) Save(_ context.Context, m *Manifest) error {
	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Cursors = m.Cursors(doc.Cursors)
	doc.LastRun = m

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming manifest: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package manifest

import (
	"context"
	"fmt"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Store persists cursors and the most recent manifest.
type Store interface {
	// LoadCursors returns the cursor per search set. A fresh store returns
	// an empty map.
	LoadCursors(ctx context.Context) (types.Cursors, error)

	// Save merges m's cursors forward and records m as the latest run.
	Save(ctx context.Context, m *Manifest) error

	// LastRun returns the most recent manifest, or nil when none exists.
	LastRun(ctx context.Context) (*Manifest, error)

	Close() error
}

// Open returns the store selected by cfg.
func Open(cfg types.ManifestConfig) (Store, error) {
	switch cfg.Backend {
	case types.ManifestFile, "":
		return NewFileStore(cfg.Path), nil
	case types.ManifestSQLite:
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown manifest backend %q", cfg.Backend)
	}
}

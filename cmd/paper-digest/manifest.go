// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-digest/internal/manifest"
	"github.com/pdiddy/paper-digest/internal/report"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Show search set cursors and the last run",
	Long: `Manifest prints, for each search set, the publication time the next run
will query after, followed by the counters and failures of the most recent
run.`,
	RunE: runManifest,
}

func init() {
	manifestCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(manifestCmd)
}

func runManifest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := manifest.Open(cfg.Manifest)
	if err != nil {
		return fmt.Errorf("opening manifest store: %w", err)
	}
	defer store.Close()

	cursors, err := store.LoadCursors(cmd.Context())
	if err != nil {
		return err
	}
	last, err := store.LastRun(cmd.Context())
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"cursors": cursors, "last_run": last})
	}

	p := report.New(os.Stdout, !color.NoColor)
	if err := p.Cursors(cursors); err != nil {
		return err
	}
	fmt.Println()
	if last == nil {
		fmt.Println("No runs recorded yet.")
		return nil
	}
	return p.Run(last)
}

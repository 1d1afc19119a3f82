// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-digest/internal/acquire"
	"github.com/pdiddy/paper-digest/internal/ledger"
	"github.com/pdiddy/paper-digest/internal/report"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the idempotency ledger",
	Long: `The ledger holds one entry per paper that completed processing. A paper
with an entry is never processed again, whichever search set finds it.`,
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every ledger entry",
	RunE:  runLedgerList,
}

var ledgerCheckCmd = &cobra.Command{
	Use:   "check ID...",
	Short: "Report whether papers have been processed",
	Long: `Check accepts arXiv ids in any common spelling (2401.00001,
arXiv:2401.00001v2, https://arxiv.org/abs/2401.00001) and reports the
ledger entry for each.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLedgerCheck,
}

func init() {
	ledgerListCmd.Flags().Bool("json", false, "output entries as JSON")

	ledgerCmd.AddCommand(ledgerListCmd, ledgerCheckCmd)
	rootCmd.AddCommand(ledgerCmd)
}

func runLedgerList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l, err := ledger.Open(cmd.Context(), cfg.Ledger)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer l.Close()

	entries, err := l.List(cmd.Context())
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if err := report.New(os.Stdout, !color.NoColor).Ledger(entries); err != nil {
		return err
	}
	fmt.Printf("\n%d entries\n", len(entries))
	return nil
}

func runLedgerCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l, err := ledger.Open(cmd.Context(), cfg.Ledger)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer l.Close()

	invalid := 0
	for _, arg := range args {
		id, ok := acquire.NormalizeID(arg)
		if !ok {
			fmt.Printf("%s: not an arXiv id\n", arg)
			invalid++
			continue
		}
		e, found, err := l.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		if !found {
			fmt.Printf("%s: not processed\n", id)
			continue
		}
		fmt.Printf("%s: %s by %s at %s\n", id, e.Outcome, e.SearchSetName, e.ProcessedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if invalid > 0 {
		return fmt.Errorf("%d argument(s) were not arXiv ids", invalid)
	}
	return nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders run manifests, cursors and ledger entries as
// terminal tables.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/pdiddy/paper-digest/internal/manifest"
	"github.com/pdiddy/paper-digest/pkg/types"
)

// Printer writes tables to w, colored when Color is set.
type Printer struct {
	w      io.Writer
	green  *color.Color
	red    *color.Color
	yellow *color.Color
	bold   *color.Color
}

// New returns a Printer.
func New(w io.Writer, useColor bool) *Printer {
	p := &Printer{
		w:      w,
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		bold:   color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.green, p.red, p.yellow, p.bold} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *Printer) table(header ...string) *tablewriter.Table {
	t := tablewriter.NewTable(p.w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
	t.Header(header)
	return t
}

// Run prints the per-set counters of m followed by any failures.
func (p *Printer) Run(m *manifest.Manifest) error {
	fmt.Fprintf(p.w, "%s %s (%s", p.bold.Sprint("Run"), m.RunID, m.Mode)
	if m.TestMode {
		fmt.Fprint(p.w, ", test mode")
	}
	fmt.Fprintf(p.w, ", %s)\n\n", m.RunFinishedAt.Sub(m.RunStartedAt).Round(time.Second))

	t := p.table("Set", "Since", "Discovered", "Duplicate", "Failed earlier", "Succeeded", "Failed", "Publish failed", "Source")
	for _, s := range m.Sets {
		source := p.green.Sprint("ok")
		if s.SourceError != "" {
			source = p.red.Sprint("error")
		}
		failed := strconv.Itoa(s.Failed)
		if s.Failed > 0 {
			failed = p.red.Sprint(failed)
		}
		if err := t.Append([]string{
			s.Name,
			formatTime(s.Since),
			strconv.Itoa(s.Discovered),
			strconv.Itoa(s.SkippedDuplicate),
			strconv.Itoa(s.SkippedFailed),
			strconv.Itoa(s.Succeeded),
			failed,
			strconv.Itoa(s.PublishFailed),
			source,
		}); err != nil {
			return err
		}
	}
	tot := m.Totals
	if err := t.Append([]string{
		p.bold.Sprint("total"), "",
		strconv.Itoa(tot.Discovered),
		strconv.Itoa(tot.SkippedDuplicate),
		strconv.Itoa(tot.SkippedFailed),
		strconv.Itoa(tot.Succeeded),
		strconv.Itoa(tot.Failed),
		strconv.Itoa(tot.PublishFailed),
		strconv.Itoa(tot.SourceErrors) + " errors",
	}); err != nil {
		return err
	}
	if err := t.Render(); err != nil {
		return err
	}

	for _, s := range m.Sets {
		if s.SourceError != "" {
			fmt.Fprintf(p.w, "\n%s %s: %s\n", p.red.Sprint("source error"), s.Name, s.SourceError)
		}
		if s.Partial {
			fmt.Fprintf(p.w, "\n%s %s: stopped early, cursor held at %s\n", p.yellow.Sprint("partial"), s.Name, formatTime(s.Since))
		}
		for _, f := range s.Failures {
			fmt.Fprintf(p.w, "  %s %s [%s] %s\n", p.red.Sprint("✗"), f.CandidateID, f.Stage, f.Reason)
		}
	}
	return nil
}

// Cursors prints the stored cursor per set.
func (p *Printer) Cursors(c types.Cursors) error {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)

	t := p.table("Set", "Next query after")
	for _, name := range names {
		if err := t.Append([]string{name, formatTime(c[name])}); err != nil {
			return err
		}
	}
	return t.Render()
}

// Ledger prints ledger entries.
func (p *Printer) Ledger(entries []types.LedgerEntry) error {
	t := p.table("Candidate", "Outcome", "Set", "Processed")
	for _, e := range entries {
		outcome := string(e.Outcome)
		if e.Outcome == types.OutcomePublished {
			outcome = p.green.Sprint(outcome)
		}
		if err := t.Append([]string{e.CandidateID, outcome, e.SearchSetName, formatTime(e.ProcessedAt)}); err != nil {
			return err
		}
	}
	return t.Render()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"linefixer/internal/archive"
	"linefixer/internal/config"
	"linefixer/internal/driver"
)

// newSessionsCmd lists archived sessions. Read-only.
func newSessionsCmd(o *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List archived fixer sessions",
		Long: `Reads the session archive and prints one line per run, newest last.
Corrupt trailing records are skipped and counted.

Examples:
  fixer sessions
  fixer sessions --date 20260314
  fixer sessions --limit 5 --json-output`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runSessions(cmd)
		},
	}
	cmd.Flags().StringVar(&o.date, "date", "", "Only sessions started on this day (YYYYMMDD)")
	cmd.Flags().IntVar(&o.limit, "limit", 20, "Show at most this many sessions (0 = all)")
	return cmd
}

func (o *cliOptions) runSessions(cmd *cobra.Command) error {
	if o.limit < 0 {
		return &config.Error{Field: "--limit", Msg: "must not be negative"}
	}
	arch := archive.New(o.cfg.ArchiveDir)

	var (
		res archive.ReadResult
		err error
	)
	if o.date != "" {
		day, perr := time.ParseInLocation("20060102", o.date, time.Local)
		if perr != nil {
			return &config.Error{Field: "--date", Msg: "expected YYYYMMDD", Err: perr}
		}
		path := arch.PathFor(day)
		res, err = archive.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return &driver.IOError{Op: "read", Path: path, Err: err}
		}
	} else {
		res, err = arch.ReadAll()
		if err != nil {
			return &driver.IOError{Op: "read", Path: arch.Dir(), Err: err}
		}
	}

	records := res.Records
	if o.limit > 0 && len(records) > o.limit {
		records = records[len(records)-o.limit:]
	}
	rows := make([]sessionSummary, 0, len(records))
	for _, rec := range records {
		rows = append(rows, summarize(rec))
	}

	out := cmd.OutOrStdout()
	if o.jsonOutput {
		if err := writeJSON(out, struct {
			Sessions []sessionSummary `json:"sessions"`
			Corrupt  int              `json:"corrupt"`
		}{rows, res.Corrupt}); err != nil {
			return fmt.Errorf("failed to write sessions: %w", err)
		}
		return nil
	}
	newTextRenderer(out).sessions(rows, res.Corrupt)
	return nil
}

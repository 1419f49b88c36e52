package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"linefixer/internal/archive"
	"linefixer/internal/driver"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// textRenderer prints human-readable reports. Colour is decided by the
// writer: a buffer or pipe gets plain text.
type textRenderer struct {
	w      io.Writer
	file   lipgloss.Style
	ok     lipgloss.Style
	bad    lipgloss.Style
	dim    lipgloss.Style
	header lipgloss.Style
}

func newTextRenderer(w io.Writer) *textRenderer {
	r := lipgloss.NewRenderer(w)
	return &textRenderer{
		w:      w,
		file:   r.NewStyle().Bold(true),
		ok:     r.NewStyle().Foreground(lipgloss.Color("2")),
		bad:    r.NewStyle().Foreground(lipgloss.Color("1")),
		dim:    r.NewStyle().Faint(true),
		header: r.NewStyle().Bold(true).Underline(true),
	}
}

func (t *textRenderer) report(rep *driver.Report) {
	if rep.Mode == driver.ModeScan {
		t.scan(rep)
	} else {
		t.fix(rep)
	}
	for _, e := range rep.IOErrors {
		fmt.Fprintf(t.w, "%s %s: %s\n", t.bad.Render("io error"), e.FilePath, e.Error)
	}
	if rep.Cancelled {
		fmt.Fprintln(t.w, t.bad.Render("cancelled"))
	}
}

func (t *textRenderer) scan(rep *driver.Report) {
	for _, f := range rep.Files {
		for _, v := range f.Violations {
			fmt.Fprintf(t.w, "%s:%d: %s %s\n",
				t.file.Render(f.File), v.LineNumber,
				t.bad.Render(fmt.Sprintf("%d > %d", v.Length, rep.MaxWidth)),
				t.dim.Render(v.Prefix))
		}
	}
	s := rep.Summary
	status := t.ok.Render("clean")
	if s.LinesOverLimit > 0 {
		status = t.bad.Render(fmt.Sprintf("%d violations", s.LinesOverLimit))
	}
	fmt.Fprintf(t.w, "%s in %d files (%d lines scanned)\n", status, s.FilesScanned, s.LinesScanned)
}

func (t *textRenderer) fix(rep *driver.Report) {
	for _, r := range rep.Results {
		verdict := t.ok.Render("fixed")
		if !r.Success {
			verdict = t.bad.Render("failed")
		}
		line := fmt.Sprintf("%s:%d: %s by %s confidence=%.2f",
			t.file.Render(r.File), r.LineNumber, verdict, r.Strategy, r.Confidence)
		if r.Agent != "" {
			line += " agent=" + r.Agent
		}
		if r.Reason != "" {
			line += " " + t.dim.Render("("+r.Reason+")")
		}
		fmt.Fprintln(t.w, line)
	}

	s := rep.Summary
	parts := []string{
		fmt.Sprintf("%d over limit", s.LinesOverLimit),
		t.ok.Render(fmt.Sprintf("%d fixed", s.Fixed)),
	}
	if s.Failed > 0 {
		parts = append(parts, t.bad.Render(fmt.Sprintf("%d failed", s.Failed)))
	}
	parts = append(parts, fmt.Sprintf("%d files rewritten", s.FilesRewritten))
	if len(s.CountsByStrategy) > 0 {
		parts = append(parts, "by strategy "+formatCounts(s.CountsByStrategy))
	}
	fmt.Fprintf(t.w, "%d files scanned: %s\n", s.FilesScanned, strings.Join(parts, ", "))
}

func formatCounts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%d", k, m[k])
	}
	return b.String()
}

func (t *textRenderer) sessions(rows []sessionSummary, corrupt int) {
	if len(rows) == 0 {
		fmt.Fprintln(t.w, "No sessions archived.")
		return
	}
	fmt.Fprintln(t.w, t.header.Render("Archived sessions"))
	for _, s := range rows {
		status := t.ok.Render("ok")
		switch {
		case s.Cancelled:
			status = t.bad.Render("cancelled")
		case s.Failures > 0 || s.IOErrors > 0:
			status = t.bad.Render("dirty")
		}
		fmt.Fprintf(t.w, "%s  %-4s %-9s files=%d over=%d failed=%d rewritten=%d  %s\n",
			s.StartedAt.Local().Format("2006-01-02 15:04:05"), s.Mode, status,
			s.FilesScanned, s.LinesOverLimit, s.Failures, s.FilesRewritten,
			t.dim.Render(s.SessionID))
	}
	if corrupt > 0 {
		fmt.Fprintf(t.w, "%s\n", t.dim.Render(fmt.Sprintf("%d unreadable records skipped", corrupt)))
	}
}

// sessionSummary is the one-line view of an archived record.
type sessionSummary struct {
	SessionID      string         `json:"session_id"`
	StartedAt      time.Time      `json:"started_at"`
	Mode           string         `json:"mode"`
	FilesScanned   int            `json:"files_scanned"`
	LinesOverLimit int            `json:"lines_over_limit"`
	FilesRewritten int            `json:"files_rewritten"`
	Failures       int            `json:"failures"`
	IOErrors       int            `json:"io_errors"`
	Cancelled      bool           `json:"cancelled"`
	Fallbacks      []string       `json:"fallbacks_taken"`
	Counts         map[string]int `json:"counts_by_strategy"`
}

func summarize(rec archive.Record) sessionSummary {
	return sessionSummary{
		SessionID:      rec.SessionID,
		StartedAt:      rec.StartedAt,
		Mode:           rec.Mode,
		FilesScanned:   rec.FilesScanned,
		LinesOverLimit: rec.LinesOverLimit,
		FilesRewritten: rec.FilesRewritten,
		Failures:       len(rec.Failures),
		IOErrors:       len(rec.IOErrors),
		Cancelled:      rec.Cancelled,
		Fallbacks:      rec.FallbacksTaken,
		Counts:         rec.CountsByStrategy,
	}
}

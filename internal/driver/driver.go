// Package driver walks input paths, finds over-long lines, hands them to the
// coordinator and either reports or atomically rewrites the files. It owns
// the session record for the run and flushes it to the archive on exit.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"linefixer/internal/archive"
	"linefixer/internal/logging"
	"linefixer/internal/types"
	"linefixer/internal/usage"
)

// Mode selects what the driver does with violations.
type Mode string

const (
	ModeScan Mode = "scan"
	ModeFix  Mode = "fix"
)

// PrefixLen is how many code points of an offending line a scan reports.
const PrefixLen = 40

// LineFixer resolves one over-long line. The coordinator implements it.
type LineFixer interface {
	FixLine(ctx context.Context, req types.FixRequest) types.FixResult
}

// IOError is a file-system failure. The CLI maps it to exit code 3.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Options configures one run.
type Options struct {
	Mode         Mode
	Paths        []string
	Recursive    bool
	Include      []string
	MaxWidth     int
	Apply        bool
	LanguageHint string // overrides the per-file extension guess
}

// Violation is one over-long line found by a scan.
type Violation struct {
	LineNumber int    `json:"line_number"`
	Length     int    `json:"length"`
	Prefix     string `json:"prefix"`
}

// FileScan is the scan record for one file.
type FileScan struct {
	File       string      `json:"file"`
	Violations []Violation `json:"violations"`
}

// LineResult is the fix record for one offending line.
type LineResult struct {
	File       string   `json:"file"`
	LineNumber int      `json:"line_number"`
	Strategy   string   `json:"strategy"`
	Success    bool     `json:"success"`
	Confidence float64  `json:"confidence"`
	Agent      string   `json:"agent"`
	Reason     string   `json:"reason,omitempty"`
	FixedLines []string `json:"fixed_lines"`
}

// Summary aggregates a run.
type Summary struct {
	FilesScanned     int            `json:"files_scanned"`
	LinesScanned     int            `json:"lines_scanned"`
	LinesOverLimit   int            `json:"lines_over_limit"`
	Fixed            int            `json:"fixed"`
	Failed           int            `json:"failed"`
	FilesRewritten   int            `json:"files_rewritten"`
	CountsByStrategy map[string]int `json:"counts_by_strategy"`
}

// Report is what a run produced, in traversal order.
type Report struct {
	SessionID string              `json:"session_id"`
	Mode      Mode                `json:"mode"`
	MaxWidth  int                 `json:"max_width"`
	Files     []FileScan          `json:"files,omitempty"`
	Results   []LineResult        `json:"results,omitempty"`
	Rewritten []string            `json:"rewritten,omitempty"`
	IOErrors  []archive.IOFailure `json:"io_errors,omitempty"`
	Cancelled bool                `json:"cancelled,omitempty"`
	Summary   Summary             `json:"summary"`
	Archive   string              `json:"archive,omitempty"` // file the session was appended to
}

// Clean reports whether the run left nothing to do: no violations in scan
// mode, every fix successful in fix mode.
func (r *Report) Clean() bool {
	if r.Mode == ModeScan {
		return r.Summary.LinesOverLimit == 0
	}
	return r.Summary.Failed == 0
}

// Driver runs scans and fixes.
type Driver struct {
	fixer   LineFixer
	archive *archive.Archive
	log     *zap.Logger
	now     func() time.Time
}

// Option configures a Driver.
type Option func(*Driver)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// WithLogger overrides the driver logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// New creates a driver. fixer may be nil for scan-only use; arch may be nil
// to skip archiving.
func New(fixer LineFixer, arch *archive.Archive, opts ...Option) *Driver {
	d := &Driver{fixer: fixer, archive: arch, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	d.log = logging.Or(d.log, logging.CategoryDriver)
	return d
}

// Run processes every file and appends one session record. The returned
// error is nil, an *IOError (possibly joined with others), or the context
// error when the run was cancelled. The report is always non-nil.
func (d *Driver) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = types.DefaultMaxWidth
	}
	if opts.Mode == "" {
		opts.Mode = ModeScan
	}
	if opts.Mode == ModeFix && d.fixer == nil {
		return nil, errors.New("driver: fix mode requires a line fixer")
	}

	rec := archive.NewRecord(uuid.NewString(), d.now())
	rec.Mode = string(opts.Mode)
	rec.Apply = opts.Apply
	rec.Paths = append([]string{}, opts.Paths...)
	rec.MaxWidth = opts.MaxWidth

	rep := &Report{
		SessionID: rec.SessionID,
		Mode:      opts.Mode,
		MaxWidth:  opts.MaxWidth,
		Summary:   Summary{CountsByStrategy: rec.CountsByStrategy},
	}

	var errs []error
	files, walkErrs := collect(opts.Paths, opts.Recursive, opts.Include)
	for _, err := range walkErrs {
		d.log.Warn("path skipped", zap.Error(err))
		errs = append(errs, err)
		d.noteIOError(rep, err)
	}

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		var ferr error
		if opts.Mode == ModeScan {
			ferr = d.scanFile(path, opts, rep)
		} else {
			ferr = d.fixFile(ctx, path, opts, rep, &rec)
		}
		if ferr != nil {
			d.log.Warn("file aborted", zap.String("file", path), zap.Error(ferr))
			errs = append(errs, ferr)
			d.noteIOError(rep, ferr)
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		rep.Cancelled = true
		errs = append(errs, ctxErr)
	}

	rec.FinishedAt = d.now()
	rec.FilesScanned = rep.Summary.FilesScanned
	rec.LinesScanned = rep.Summary.LinesScanned
	rec.LinesOverLimit = rep.Summary.LinesOverLimit
	rec.FilesRewritten = rep.Summary.FilesRewritten
	rec.IOErrors = rep.IOErrors
	rec.Cancelled = rep.Cancelled
	if tracker := usage.FromContext(ctx); tracker != nil {
		stats := tracker.Snapshot()
		rec.Agents = &stats
	}

	if d.archive != nil {
		path, aerr := d.archive.Append(rec)
		if aerr != nil {
			aerr = &IOError{Op: "archive", Path: d.archive.Dir(), Err: aerr}
			d.noteIOError(rep, aerr)
			errs = append(errs, aerr)
		} else {
			rep.Archive = path
		}
	}

	d.log.Info("run finished",
		zap.String("session", rec.SessionID),
		zap.String("mode", rec.Mode),
		zap.Int("files", rec.FilesScanned),
		zap.Int("over_limit", rec.LinesOverLimit),
		zap.Int("failed", rep.Summary.Failed),
		zap.Int("rewritten", rec.FilesRewritten),
		zap.Duration("duration", rec.Duration()),
		zap.Bool("cancelled", rec.Cancelled))

	return rep, errors.Join(errs...)
}

func (d *Driver) noteIOError(rep *Report, err error) {
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		rep.IOErrors = append(rep.IOErrors, archive.IOFailure{FilePath: ioErr.Path, Error: ioErr.Err.Error()})
		return
	}
	rep.IOErrors = append(rep.IOErrors, archive.IOFailure{Error: err.Error()})
}

func (d *Driver) scanFile(path string, opts Options, rep *Report) error {
	src, err := readSource(path)
	if err != nil {
		return &IOError{Op: "read", Path: path, Err: err}
	}
	rep.Summary.FilesScanned++

	scan := FileScan{File: path, Violations: []Violation{}}
	for i, line := range src.lines {
		rep.Summary.LinesScanned++
		width := types.LineWidth(line)
		if width <= opts.MaxWidth {
			continue
		}
		rep.Summary.LinesOverLimit++
		scan.Violations = append(scan.Violations, Violation{
			LineNumber: i + 1,
			Length:     width,
			Prefix:     prefix(line, PrefixLen),
		})
	}
	rep.Files = append(rep.Files, scan)
	return nil
}

func (d *Driver) fixFile(ctx context.Context, path string, opts Options, rep *Report, rec *archive.Record) error {
	src, err := readSource(path)
	if err != nil {
		return &IOError{Op: "read", Path: path, Err: err}
	}
	rep.Summary.FilesScanned++

	lang := opts.LanguageHint
	if lang == "" {
		lang = types.LanguageFromPath(path)
	}

	replacements := make(map[int][]string)
	allFixed := true
	for i, line := range src.lines {
		rep.Summary.LinesScanned++
		if types.LineWidth(line) <= opts.MaxWidth {
			continue
		}
		rep.Summary.LinesOverLimit++
		if ctx.Err() != nil {
			allFixed = false
			continue
		}

		res := d.fixer.FixLine(ctx, types.FixRequest{
			FilePath:     path,
			LineNumber:   i + 1,
			OriginalLine: line,
			MaxWidth:     opts.MaxWidth,
			LanguageHint: lang,
		})

		rep.Results = append(rep.Results, LineResult{
			File:       path,
			LineNumber: i + 1,
			Strategy:   string(res.Strategy),
			Success:    res.Success,
			Confidence: res.Confidence,
			Agent:      res.AgentUsed,
			Reason:     res.Reason,
			FixedLines: res.FixedLines,
		})
		rec.CountsByStrategy[string(res.Strategy)]++
		for _, s := range res.Attempts {
			rec.NoteFallback(string(s))
		}
		if res.Success {
			rep.Summary.Fixed++
			replacements[i] = res.FixedLines
		} else {
			rep.Summary.Failed++
			allFixed = false
			rec.Failures = append(rec.Failures, archive.Failure{
				FilePath:   path,
				LineNumber: i + 1,
				Reason:     failureReason(res),
			})
		}
	}

	if !opts.Apply || len(replacements) == 0 || !allFixed || ctx.Err() != nil {
		return nil
	}

	out := make([]string, 0, len(src.lines)+len(replacements))
	for i, line := range src.lines {
		if fixed, ok := replacements[i]; ok {
			out = append(out, fixed...)
			continue
		}
		out = append(out, line)
	}
	if err := writeFileAtomic(path, src.render(out), src.mode); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	rep.Summary.FilesRewritten++
	rep.Rewritten = append(rep.Rewritten, path)
	d.log.Debug("file rewritten", zap.String("file", path), zap.Int("lines_fixed", len(replacements)))
	return nil
}

func failureReason(res types.FixResult) string {
	if res.Reason != "" {
		return res.Reason
	}
	return string(res.Strategy) + ":failed"
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package archive

import (
	"time"

	"linefixer/internal/usage"
)

// Record is one CLI invocation. It is appended once and never rewritten.
type Record struct {
	SessionID  string    `json:"session_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Mode       string    `json:"mode"` // scan or fix
	Apply      bool      `json:"apply,omitempty"`
	Paths      []string  `json:"paths"`
	MaxWidth   int       `json:"max_width"`

	FilesScanned   int `json:"files_scanned"`
	LinesScanned   int `json:"lines_scanned"`
	LinesOverLimit int `json:"lines_over_limit"`
	FilesRewritten int `json:"files_rewritten"`

	CountsByStrategy map[string]int `json:"counts_by_strategy"`
	Failures         []Failure      `json:"failures"`

	// FallbacksTaken lists the strategies attempted during the run, in
	// first-use order, without duplicates.
	FallbacksTaken []string `json:"fallbacks_taken"`

	IOErrors  []IOFailure  `json:"io_errors,omitempty"`
	Cancelled bool         `json:"cancelled"`
	Agents    *usage.Stats `json:"agents,omitempty"`
}

// Failure is a line that could not be fixed.
type Failure struct {
	FilePath   string `json:"file_path"`
	LineNumber int    `json:"line_number"`
	Reason     string `json:"reason"`
}

// IOFailure is a file the driver had to abort.
type IOFailure struct {
	FilePath string `json:"file_path"`
	Error    string `json:"error"`
}

// NewRecord starts a record with empty collections so that the JSON form
// always carries arrays and objects instead of nulls.
func NewRecord(sessionID string, startedAt time.Time) Record {
	return Record{
		SessionID:        sessionID,
		StartedAt:        startedAt,
		CountsByStrategy: make(map[string]int),
		Failures:         []Failure{},
		FallbacksTaken:   []string{},
	}
}

// NoteFallback adds a strategy to FallbacksTaken if it is not there yet.
func (r *Record) NoteFallback(strategy string) {
	for _, s := range r.FallbacksTaken {
		if s == strategy {
			return
		}
	}
	r.FallbacksTaken = append(r.FallbacksTaken, strategy)
}

// Duration returns the wall-clock time of the run.
func (r Record) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

package types

import (
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// =============================================================================
// FIX REQUEST / RESULT
// =============================================================================
//
// FixRequest and FixResult are the per-line input and output of the
// coordinator. They flow one way: driver -> coordinator -> pipeline/conclave,
// and results flow back. Nothing below the coordinator mutates them.

// DefaultMaxWidth is the line width used when a request does not carry one.
const DefaultMaxWidth = 79

// Strategy identifies which tier produced a FixResult.
type Strategy string

const (
	StrategyHierarchical Strategy = "hierarchical"
	StrategyConclave     Strategy = "conclave"
	StrategyPattern      Strategy = "pattern"
	StrategyPassthrough  Strategy = "passthrough"
)

// FixRequest asks for one over-length line to be rewritten.
type FixRequest struct {
	FilePath     string `json:"file_path"`
	LineNumber   int    `json:"line_number"` // 1-based
	OriginalLine string `json:"original_line"`
	MaxWidth     int    `json:"max_width"`
	LanguageHint string `json:"language_hint,omitempty"`
}

// Width returns the effective maximum width of the request.
func (r FixRequest) Width() int {
	if r.MaxWidth <= 0 {
		return DefaultMaxWidth
	}
	return r.MaxWidth
}

// NeedsFix reports whether the original line exceeds the width.
func (r FixRequest) NeedsFix() bool {
	return LineWidth(r.OriginalLine) > r.Width()
}

// FixResult is the coordinator's verdict for one request.
type FixResult struct {
	FixedLines []string      `json:"fixed_lines"`
	Strategy   Strategy      `json:"strategy"`
	AgentUsed  string        `json:"agent,omitempty"`
	Confidence float64       `json:"confidence"`
	Success    bool          `json:"success"`
	Reason     string        `json:"reason,omitempty"`
	Attempts   []Strategy    `json:"attempts,omitempty"`
	Duration   time.Duration `json:"-"`
}

// LineWidth measures a line in code points.
func LineWidth(s string) int {
	return utf8.RuneCountInString(s)
}

// FitsWidth reports whether every line is at most width code points.
func FitsWidth(lines []string, width int) bool {
	for _, l := range lines {
		if LineWidth(l) > width {
			return false
		}
	}
	return true
}

var languageByExt = map[string]string{
	".py":   "python",
	".pyi":  "python",
	".go":   "go",
	".js":   "javascript",
	".mjs":  "javascript",
	".ts":   "typescript",
	".rb":   "ruby",
	".rs":   "rust",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cc":   "cpp",
	".cpp":  "cpp",
	".sh":   "shell",
	".md":   "markdown",
	".yaml": "yaml",
	".yml":  "yaml",
}

// LanguageFromPath guesses a language hint from a file extension.
// Unknown extensions return "".
func LanguageFromPath(path string) string {
	return languageByExt[strings.ToLower(filepath.Ext(path))]
}

// Role selects an adapter slot in the hierarchy. Adapters are chosen by role,
// never by vendor name.
type Role string

const (
	RolePrepare  Role = "prepare"
	RoleGenerate Role = "generate"
	RoleValidate Role = "validate"
	RoleFallback Role = "fallback"
)

// Roles lists every role in configuration order.
var Roles = []Role{RolePrepare, RoleGenerate, RoleValidate, RoleFallback}

// ParseRole validates a role name.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

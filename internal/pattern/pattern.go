// Package pattern implements the deterministic, network-free line breaker
// used as the last fallback tier.
package pattern

import (
	"strings"
	"unicode"

	"linefixer/internal/types"
)

// Confidence reported when every emitted line fits.
const Confidence = 0.6

// Failure reasons.
const (
	ReasonUnbreakable      = "pattern_unbreakable"
	ReasonHardBreakRefused = "hard_break_refused"
)

// Result is the outcome of one Fix call.
type Result struct {
	Lines      []string
	Success    bool
	Confidence float64
	HardBreak  bool   // at least one segment was split at max_width
	Reason     string // set when Success is false
}

// Fixer breaks long lines at punctuation and whitespace.
type Fixer struct {
	// AllowHardBreak declares whether splitting mid-token at max_width is
	// an acceptable fix. When false such results report success=false.
	AllowHardBreak bool
}

// New returns a Fixer.
func New(allowHardBreak bool) *Fixer {
	return &Fixer{AllowHardBreak: allowHardBreak}
}

// Lines is the bare breaking algorithm with hard breaks allowed.
func Lines(line string, maxWidth int) []string {
	return New(true).Fix(line, maxWidth).Lines
}

// Fix breaks line into segments of at most maxWidth code points.
//
// Each round looks for a break in the first maxWidth code points, in order:
// the last ", ", the last whitespace before an operator, the last whitespace
// run, else a hard break at maxWidth. The remainder keeps its leading
// whitespace and is prefixed with the original indent. A round that does not
// shrink the remainder stops the loop.
func (f *Fixer) Fix(line string, maxWidth int) Result {
	if maxWidth <= 0 {
		maxWidth = types.DefaultMaxWidth
	}
	cur := []rune(line)
	if len(cur) <= maxWidth {
		return Result{Lines: []string{line}, Success: true, Confidence: Confidence}
	}

	indent := leadingSpace(cur)
	var (
		out   []string
		hard  bool
		stuck bool
	)
	for len(cur) > maxWidth {
		pos, isHard := breakPoint(cur, maxWidth, len(indent))
		hard = hard || isHard

		out = append(out, strings.TrimRightFunc(string(cur[:pos]), unicode.IsSpace))
		next := make([]rune, 0, len(indent)+len(cur)-pos)
		next = append(next, indent...)
		next = append(next, cur[pos:]...)
		if len(next) >= len(cur) {
			cur = next
			stuck = true
			break
		}
		cur = next
	}
	out = append(out, string(cur))

	res := Result{Lines: out, HardBreak: hard}
	switch {
	case stuck || !types.FitsWidth(out, maxWidth):
		res.Reason = ReasonUnbreakable
	case hard && !f.AllowHardBreak:
		res.Reason = ReasonHardBreakRefused
	default:
		res.Success = true
		res.Confidence = Confidence
	}
	return res
}

// breakPoint returns the index at which to split s. Positions inside the
// indent are never chosen so that every round makes progress.
func breakPoint(s []rune, maxWidth, indent int) (pos int, hard bool) {
	window := maxWidth
	if window > len(s) {
		window = len(s)
	}

	// a. last comma followed by whitespace; break after the comma
	for i := window - 1; i >= indent; i-- {
		if s[i] == ',' && i+1 < len(s) && unicode.IsSpace(s[i+1]) {
			return i + 1, false
		}
	}

	// b. last whitespace immediately before an operator
	for j := window - 1; j > indent; j-- {
		if unicode.IsSpace(s[j]) && j+1 < len(s) && isOperator(s[j+1]) {
			return j, false
		}
	}

	// c. last run of whitespace; break at its start
	for k := window - 1; k > indent; k-- {
		if !unicode.IsSpace(s[k]) {
			continue
		}
		start := k
		for start > 0 && unicode.IsSpace(s[start-1]) {
			start--
		}
		if start > indent {
			return start, false
		}
		break
	}

	return maxWidth, true
}

func isOperator(r rune) bool {
	return strings.ContainsRune("+-*/=<>!&|", r)
}

func leadingSpace(s []rune) []rune {
	n := 0
	for n < len(s) && (s[n] == ' ' || s[n] == '\t') {
		n++
	}
	return s[:n:n]
}

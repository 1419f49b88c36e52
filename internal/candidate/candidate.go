// Package candidate turns raw provider text into candidate replacement lines.
//
// Sanitising is an ordered rule table: each rule is a predicate over one line
// and an action. The first matching rule wins; lines no rule matches are kept.
package candidate

import (
	"strings"
	"unicode"

	"linefixer/internal/types"
)

// Action is what a rule does with a matching line.
type Action int

const (
	Keep Action = iota
	Drop
)

// Rule is one entry in the sanitiser table. Edge rules only drop lines in
// the prose regions before the first code line and after the last one; a
// matching line between code lines is kept.
type Rule struct {
	Name   string
	Match  func(trimmed, lower string) bool
	Action Action
	Edge   bool
}

// proseWords open the sentences models wrap around code.
var proseWords = map[string]bool{
	"answer":         true,
	"analysis":       true,
	"consensus":      true,
	"explanation":    true,
	"fixed":          true,
	"here":           true,
	"here's":         true,
	"note":           true,
	"output":         true,
	"rationale":      true,
	"recommend":      true,
	"recommendation": true,
	"recommended":    true,
	"sure":           true,
	"the":            true,
}

// codePunct never appears in the prose lines above but is common in code.
const codePunct = "()[]{}=;<>+*/%&|^~`\"@#$\\"

// isProse reports whether a trimmed, lower-cased line reads as commentary:
// it opens with a prose word followed by a space, colon or sentence end, and
// carries no code punctuation. Markdown emphasis around the whole line is
// ignored.
func isProse(lower string) bool {
	if len(lower) > 4 && strings.HasPrefix(lower, "**") && strings.HasSuffix(lower, "**") {
		lower = strings.TrimSpace(lower[2 : len(lower)-2])
	}
	if lower == "" || strings.ContainsAny(lower, codePunct) {
		return false
	}
	end := strings.IndexFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	word := lower
	if end >= 0 {
		word = lower[:end]
		switch lower[end] {
		case ' ', ':', '.', ',', '!':
		default:
			return false
		}
	}
	return proseWords[word]
}

// Rules is the default sanitiser table, evaluated in order.
var Rules = []Rule{
	{
		Name:   "fence",
		Match:  func(trimmed, _ string) bool { return strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") },
		Action: Drop,
	},
	{
		Name:   "empty",
		Match:  func(trimmed, _ string) bool { return trimmed == "" },
		Action: Drop,
	},
	{
		Name:   "commentary",
		Match:  func(_, lower string) bool { return isProse(lower) },
		Action: Drop,
		Edge:   true,
	},
}

// Parse sanitises content with the default rules.
func Parse(content string) []string {
	return ParseWith(Rules, content)
}

// ParseWith sanitises content with a custom rule table. Kept lines are
// right-trimmed; leading indentation is preserved.
func ParseWith(rules []Rule, content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	type entry struct {
		line string
		edge bool // dropped only outside the code region
	}
	var (
		kept        []entry
		first, last = -1, -1
	)
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		trimmed := strings.TrimSpace(line)
		r := match(rules, trimmed, strings.ToLower(trimmed))
		if r != nil && r.Action == Drop && !r.Edge {
			continue
		}
		e := entry{line: line, edge: r != nil && r.Action == Drop}
		if !e.edge {
			if first < 0 {
				first = len(kept)
			}
			last = len(kept)
		}
		kept = append(kept, e)
	}

	var out []string
	for i, e := range kept {
		if e.edge && (first < 0 || i < first || i > last) {
			continue
		}
		out = append(out, e.line)
	}
	return out
}

func match(rules []Rule, trimmed, lower string) *Rule {
	for i := range rules {
		if rules[i].Match(trimmed, lower) {
			return &rules[i]
		}
	}
	return nil
}

// Problem explains why a candidate is unusable.
type Problem string

const (
	ProblemNone  Problem = ""
	ProblemEmpty Problem = "empty"
	ProblemWidth Problem = "too_wide"
)

// Check reports whether lines form a usable candidate for maxWidth.
func Check(lines []string, maxWidth int) Problem {
	if len(lines) == 0 {
		return ProblemEmpty
	}
	if !types.FitsWidth(lines, maxWidth) {
		return ProblemWidth
	}
	return ProblemNone
}

// Extract parses content and checks the result.
func Extract(content string, maxWidth int) (lines []string, problem Problem) {
	lines = Parse(content)
	return lines, Check(lines, maxWidth)
}

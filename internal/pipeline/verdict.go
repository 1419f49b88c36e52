package pipeline

import (
	"strings"
	"unicode"
)

// Verdict is the validator's decision.
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictAccept
	VerdictReject
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccept:
		return "accept"
	case VerdictReject:
		return "reject"
	}
	return "unknown"
}

// ParseVerdict reads the validator reply. The verdict is the first word of
// the first non-empty line, or the value of a "verdict:" line. The remaining
// text is returned as the rationale.
func ParseVerdict(content string) (Verdict, string) {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	first := -1
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			first = i
			break
		}
	}
	if first < 0 {
		return VerdictUnknown, ""
	}

	for _, l := range lines[first:] {
		lower := strings.ToLower(strings.TrimSpace(l))
		if rest, ok := strings.CutPrefix(lower, "verdict:"); ok {
			return wordVerdict(rest), strings.TrimSpace(strings.Join(lines[first:], "\n"))
		}
	}

	head := strings.TrimSpace(lines[first])
	v := wordVerdict(strings.ToLower(head))
	rationale := strings.TrimSpace(strings.Join(lines[first+1:], "\n"))
	if _, after, ok := strings.Cut(head, " "); ok {
		rationale = strings.TrimSpace(after + "\n" + rationale)
	}
	return v, rationale
}

func wordVerdict(s string) Verdict {
	s = strings.TrimLeftFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	word := strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	if len(word) == 0 {
		return VerdictUnknown
	}
	switch {
	case strings.HasPrefix(word[0], "accept"):
		return VerdictAccept
	case strings.HasPrefix(word[0], "reject"):
		return VerdictReject
	}
	return VerdictUnknown
}

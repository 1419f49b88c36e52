package pipeline

import (
	"fmt"
	"strings"

	"linefixer/internal/types"
)

// CanonicalPrompt builds the generator prompt from the request fields alone.
// It is used when no prepare adapter is configured or the prepare stage fails.
func CanonicalPrompt(req types.FixRequest, styleRules []string) string {
	var sb strings.Builder
	lang := req.LanguageHint
	if lang == "" {
		lang = "plain text"
	}
	fmt.Fprintf(&sb, "Rewrite the following %s line so that every resulting line is at most %d characters wide.\n",
		lang, req.Width())
	sb.WriteString("Keep the meaning of the line. Keep its leading indentation on the first line.\n")
	for _, rule := range styleRules {
		fmt.Fprintf(&sb, "Style rule: %s\n", rule)
	}
	sb.WriteString("Reply with the replacement lines only. No explanations, no code fences.\n\n")
	sb.WriteString(lineBlock(req))
	return sb.String()
}

// preparePrompt asks the prepare adapter for a focused generator prompt.
func preparePrompt(req types.FixRequest, styleRules []string) string {
	var sb strings.Builder
	sb.WriteString("You write instructions for a code-rewriting model.\n")
	fmt.Fprintf(&sb, "Task: the line below is %d characters wide; the limit is %d.\n",
		types.LineWidth(req.OriginalLine), req.Width())
	if req.LanguageHint != "" {
		fmt.Fprintf(&sb, "Language: %s\n", req.LanguageHint)
	}
	for _, rule := range styleRules {
		fmt.Fprintf(&sb, "Style rule: %s\n", rule)
	}
	sb.WriteString("Write a short prompt that tells the model where this line can be split and which ")
	sb.WriteString("continuation convention to use. The model must reply with replacement lines only.\n\n")
	sb.WriteString(lineBlock(req))
	return sb.String()
}

// generatorPrompt turns prepare output into the final generator prompt. The
// original line is appended when the prepared text does not quote it.
func generatorPrompt(prepared string, req types.FixRequest) string {
	prepared = strings.TrimSpace(prepared)
	if strings.Contains(prepared, strings.TrimSpace(req.OriginalLine)) {
		return prepared
	}
	return prepared + "\n\n" + lineBlock(req)
}

// validatePrompt asks for a binary verdict on a candidate.
func validatePrompt(req types.FixRequest, candidate []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "A line was rewritten to fit within %d characters.\n\n", req.Width())
	sb.WriteString("Original:\n")
	sb.WriteString(req.OriginalLine)
	sb.WriteString("\n\nRewritten:\n")
	sb.WriteString(strings.Join(candidate, "\n"))
	sb.WriteString("\n\nDoes the rewrite preserve the meaning of the original as a line of text? ")
	sb.WriteString("Answer with one word, accept or reject, then one sentence of rationale.\n")
	return sb.String()
}

func lineBlock(req types.FixRequest) string {
	return "Line:\n" + req.OriginalLine + "\n"
}

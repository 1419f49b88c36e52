package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// classifyStatus maps an HTTP status and error text onto a FailReason.
func classifyStatus(status int, msg string) FailReason {
	lower := strings.ToLower(msg)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return FailAuth
	case status == http.StatusTooManyRequests:
		return FailRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return FailTimeout
	case strings.Contains(lower, "recitation"):
		return FailRecitation
	case containsAny(lower, "content_policy", "content policy", "content_filter", "moderation", "safety"):
		return FailContentPolicy
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "rate_limit"):
		return FailRateLimited
	}
	return FailTransport
}

// classifyContextErr returns FailTimeout when the call context expired or was
// cancelled, and "" otherwise.
func classifyContextErr(callCtx context.Context, err error) FailReason {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailTimeout
	}
	if callCtx.Err() != nil {
		return FailTimeout
	}
	return ""
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// trimReply drops surrounding blank lines and trailing whitespace but keeps
// the first line's indentation. All-blank replies become "".
func trimReply(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.TrimRight(strings.Join(lines[start:end], "\n"), " \t")
}

// truncate shortens s for log fields.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

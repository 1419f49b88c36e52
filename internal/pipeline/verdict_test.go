package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		content   string
		want      Verdict
		rationale string
	}{
		{"accept", VerdictAccept, ""},
		{"Accepted - the call is unchanged", VerdictAccept, "- the call is unchanged"},
		{"\n\n**REJECT** drops an argument", VerdictReject, "drops an argument"},
		{"The rewrite is fine.\nVerdict: accept", VerdictAccept, "The rewrite is fine.\nVerdict: accept"},
		{"verdict: Reject\nbreaks string literal", VerdictReject, "verdict: Reject\nbreaks string literal"},
		{"I think so", VerdictUnknown, "think so"},
		{"   ", VerdictUnknown, ""},
	}

	for _, tt := range tests {
		got, rationale := ParseVerdict(tt.content)
		assert.Equal(t, tt.want, got, "content %q", tt.content)
		assert.Equal(t, tt.rationale, rationale, "content %q", tt.content)
	}
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "accept", VerdictAccept.String())
	assert.Equal(t, "reject", VerdictReject.String())
	assert.Equal(t, "unknown", VerdictUnknown.String())
}

package provider

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		msg    string
		want   FailReason
	}{
		{http.StatusUnauthorized, "", FailAuth},
		{http.StatusForbidden, "", FailAuth},
		{http.StatusTooManyRequests, "", FailRateLimited},
		{http.StatusGatewayTimeout, "", FailTimeout},
		{http.StatusBadRequest, "Output blocked: RECITATION", FailRecitation},
		{http.StatusBadRequest, "content_filter triggered", FailContentPolicy},
		{http.StatusServiceUnavailable, "rate limit exceeded upstream", FailRateLimited},
		{http.StatusBadGateway, "bad gateway", FailTransport},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyStatus(tt.status, tt.msg), "status=%d msg=%q", tt.status, tt.msg)
	}
}

func TestTransient(t *testing.T) {
	for _, r := range []FailReason{FailRateLimited, FailTransport, FailTimeout, FailEmpty} {
		assert.True(t, r.Transient(), r)
	}
	for _, r := range []FailReason{FailAuth, FailContentPolicy, FailRecitation} {
		assert.False(t, r.Transient(), r)
	}
}

func TestTrimReply(t *testing.T) {
	assert.Equal(t, "", trimReply(" \n\t\n"))
	assert.Equal(t, "    a,\n    b", trimReply("\n\n    a,\r\n    b  \n\n"))
}

func TestPriorConfidence(t *testing.T) {
	assert.Equal(t, PriorFirstAttempt, PriorConfidence(0))
	assert.Equal(t, PriorRetry, PriorConfidence(1))
	assert.Equal(t, PriorRetry, PriorConfidence(3))
}

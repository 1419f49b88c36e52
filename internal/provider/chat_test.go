package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatReply(content, finish string) string {
	return fmt.Sprintf(`{"id":"cmpl-1","object":"chat.completion","created":1,"model":"m",`+
		`"choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":%q}],`+
		`"usage":{"prompt_tokens":12,"completion_tokens":7,"total_tokens":19}}`, content, finish)
}

func newChatServer(t *testing.T, status int, body string) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var seen []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		req["_auth"] = r.Header.Get("Authorization")
		seen = append(seen, req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestChatAdapter_Success(t *testing.T) {
	srv, seen := newChatServer(t, http.StatusOK, chatReply("x = f(a,\n      b)", "stop"))

	a := NewChatAdapter(ChatConfig{ID: "generate", BaseURL: srv.URL + "/v1/", APIKey: "k-123", Model: "tiny"})
	resp := a.Generate(context.Background(), "fix this", Options{
		Temperature: 0.1, MaxOutput: 64, Timeout: 5 * time.Second, Purpose: PurposeGenerate,
	})

	require.True(t, resp.OK(), "fail reason: %s", resp.FailReason)
	assert.Equal(t, "x = f(a,\n      b)", resp.Content)
	assert.Equal(t, "generate", resp.AgentID)
	assert.InDelta(t, PriorFirstAttempt, resp.Confidence, 1e-9)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, 7, resp.OutputTokens)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "tiny", req["model"])
	assert.Equal(t, "Bearer k-123", req["_auth"])
	msgs, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "fix this", msgs[1].(map[string]any)["content"])
}

func TestChatAdapter_RetryAttemptLowersPrior(t *testing.T) {
	srv, _ := newChatServer(t, http.StatusOK, chatReply("ok", "stop"))
	a := NewChatAdapter(ChatConfig{ID: "generate", BaseURL: srv.URL + "/v1"})

	resp := a.Generate(context.Background(), "p", Options{Attempt: 1})
	require.True(t, resp.OK())
	assert.InDelta(t, PriorRetry, resp.Confidence, 1e-9)
}

func TestChatAdapter_FullCompletionsURL(t *testing.T) {
	srv, seen := newChatServer(t, http.StatusOK, chatReply("ok", "stop"))
	a := NewChatAdapter(ChatConfig{ID: "generate", BaseURL: srv.URL + "/v1/chat/completions"})

	resp := a.Generate(context.Background(), "p", Options{})
	require.True(t, resp.OK())
	assert.Len(t, *seen, 1)
}

func TestChatAdapter_FailureClasses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   FailReason
	}{
		{"unauthorized", 401, `{"error":{"message":"bad key","type":"invalid_request_error"}}`, FailAuth},
		{"forbidden", 403, `{"error":{"message":"no access","type":"permission"}}`, FailAuth},
		{"rate limited", 429, `{"error":{"message":"slow down","type":"rate_limit"}}`, FailRateLimited},
		{"server error", 500, `{"error":{"message":"boom","type":"server_error"}}`, FailTransport},
		{"moderation", 400, `{"error":{"message":"flagged by moderation","type":"content_policy_violation"}}`, FailContentPolicy},
		{"content filter finish", 200, chatReply("", "content_filter"), FailContentPolicy},
		{"empty content", 200, chatReply("   ", "stop"), FailEmpty},
		{"no choices", 200, `{"id":"x","object":"chat.completion","choices":[]}`, FailEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newChatServer(t, tt.status, tt.body)
			a := NewChatAdapter(ChatConfig{ID: "generate", BaseURL: srv.URL + "/v1"})

			resp := a.Generate(context.Background(), "p", Options{Timeout: 5 * time.Second})
			assert.False(t, resp.OK())
			assert.Equal(t, tt.want, resp.FailReason)
			assert.Zero(t, resp.Confidence)
			assert.Empty(t, resp.Content)
		})
	}
}

func TestChatAdapter_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	a := NewChatAdapter(ChatConfig{ID: "generate", BaseURL: srv.URL + "/v1"})
	start := time.Now()
	resp := a.Generate(context.Background(), "p", Options{Timeout: 50 * time.Millisecond})

	assert.Equal(t, FailTimeout, resp.FailReason)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestChatAdapter_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	a := NewChatAdapter(ChatConfig{ID: "generate", BaseURL: url})
	resp := a.Generate(context.Background(), "p", Options{Timeout: 2 * time.Second})
	assert.Equal(t, FailTransport, resp.FailReason)
}

func TestNormalizeBaseURL(t *testing.T) {
	assert.Equal(t, "https://api.example.com/v1", normalizeBaseURL("https://api.example.com/v1/"))
	assert.Equal(t, "https://api.example.com/v1", normalizeBaseURL(" https://api.example.com/v1/chat/completions "))
}

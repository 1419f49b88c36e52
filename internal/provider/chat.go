package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"linefixer/internal/logging"
)

const defaultSystemPrompt = "You rewrite single over-long source lines so that every line fits a width limit. " +
	"Reply with the replacement lines only. No prose, no code fences."

// ChatConfig holds configuration for a chat-completion adapter.
type ChatConfig struct {
	ID           string
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
	HTTPClient   *http.Client // optional
}

// ChatAdapter speaks the chat-completion protocol: POST {model, messages,
// temperature, max_tokens} with a bearer key, reply {choices[].message.content}.
// Any server implementing that shape works (OpenRouter, DeepSeek, GitHub
// Models, local gateways).
type ChatAdapter struct {
	id     string
	model  string
	system string
	client *openai.Client
	log    *zap.Logger
}

// NewChatAdapter creates a chat-completion adapter.
func NewChatAdapter(cfg ChatConfig) *ChatAdapter {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = normalizeBaseURL(cfg.BaseURL)
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	system := strings.TrimSpace(cfg.SystemPrompt)
	if system == "" {
		system = defaultSystemPrompt
	}

	return &ChatAdapter{
		id:     cfg.ID,
		model:  cfg.Model,
		system: system,
		client: openai.NewClientWithConfig(oc),
		log:    logging.Get(logging.CategoryAPI).With(zap.String("agent", cfg.ID)),
	}
}

// normalizeBaseURL accepts either the API base or the full completions URL.
func normalizeBaseURL(u string) string {
	u = strings.TrimRight(strings.TrimSpace(u), "/")
	u = strings.TrimSuffix(u, "/chat/completions")
	return u
}

// ID returns the agent id (the role name for env-configured adapters).
func (a *ChatAdapter) ID() string { return a.id }

// Generate sends the prompt as a single user turn.
func (a *ChatAdapter) Generate(ctx context.Context, prompt string, opts Options) Response {
	callCtx, cancel := callContext(ctx, opts)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: a.system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxOutput,
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(callCtx, req)
	out := Response{AgentID: a.id, Attempts: 1, Latency: time.Since(start)}
	if err != nil {
		out.FailReason = classifyChatError(callCtx, err)
		a.log.Debug("chat completion failed",
			zap.String("purpose", string(opts.Purpose)),
			zap.String("reason", string(out.FailReason)),
			zap.String("error", truncate(err.Error(), 300)))
		return out
	}

	out.InputTokens = resp.Usage.PromptTokens
	out.OutputTokens = resp.Usage.CompletionTokens

	if len(resp.Choices) == 0 {
		out.FailReason = FailEmpty
		return out
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		out.FailReason = FailContentPolicy
		return out
	}
	content := trimReply(choice.Message.Content)
	if content == "" {
		out.FailReason = FailEmpty
		return out
	}

	out.Content = content
	out.Confidence = PriorConfidence(opts.Attempt)
	return out
}

func classifyChatError(callCtx context.Context, err error) FailReason {
	if reason := classifyContextErr(callCtx, err); reason != "" {
		return reason
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, fmt.Sprintf("%s %v %s", apiErr.Type, apiErr.Code, apiErr.Message))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, reqErr.Error())
	}
	return FailTransport
}

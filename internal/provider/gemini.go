package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"linefixer/internal/logging"
)

// GeminiConfig holds configuration for the Gemini adapter.
type GeminiConfig struct {
	ID           string
	APIKey       string
	Model        string
	BaseURL      string // optional, for proxies and tests
	SystemPrompt string
	HTTPClient   *http.Client // optional
}

// GeminiAdapter calls Google Gemini through the genai SDK.
type GeminiAdapter struct {
	id     string
	model  string
	system string
	client *genai.Client
	log    *zap.Logger
}

// NewGeminiAdapter creates a Gemini adapter. It does not contact the API.
func NewGeminiAdapter(ctx context.Context, cfg GeminiConfig) (*GeminiAdapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	if cfg.HTTPClient != nil {
		cc.HTTPClient = cfg.HTTPClient
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	system := strings.TrimSpace(cfg.SystemPrompt)
	if system == "" {
		system = defaultSystemPrompt
	}

	return &GeminiAdapter{
		id:     cfg.ID,
		model:  model,
		system: system,
		client: client,
		log:    logging.Get(logging.CategoryAPI).With(zap.String("agent", cfg.ID)),
	}, nil
}

// ID returns the agent id.
func (a *GeminiAdapter) ID() string { return a.id }

// Generate runs one GenerateContent call.
func (a *GeminiAdapter) Generate(ctx context.Context, prompt string, opts Options) Response {
	callCtx, cancel := callContext(ctx, opts)
	defer cancel()

	temp := float32(opts.Temperature)
	gc := &genai.GenerateContentConfig{
		Temperature:       &temp,
		MaxOutputTokens:   int32(opts.MaxOutput),
		SystemInstruction: genai.NewContentFromText(a.system, genai.RoleUser),
	}

	start := time.Now()
	resp, err := a.client.Models.GenerateContent(callCtx, a.model, genai.Text(prompt), gc)
	out := Response{AgentID: a.id, Attempts: 1, Latency: time.Since(start)}
	if err != nil {
		out.FailReason = classifyGeminiError(callCtx, err)
		a.log.Debug("gemini generate failed",
			zap.String("purpose", string(opts.Purpose)),
			zap.String("reason", string(out.FailReason)),
			zap.String("error", truncate(err.Error(), 300)))
		return out
	}

	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		out.FailReason = FailContentPolicy
		return out
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		out.FailReason = FailEmpty
		return out
	}

	cand := resp.Candidates[0]
	switch cand.FinishReason {
	case genai.FinishReasonRecitation:
		out.FailReason = FailRecitation
		return out
	case genai.FinishReasonSafety, genai.FinishReasonBlocklist, genai.FinishReasonProhibitedContent:
		out.FailReason = FailContentPolicy
		return out
	}

	var sb strings.Builder
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
	}
	content := trimReply(sb.String())
	if content == "" {
		out.FailReason = FailEmpty
		return out
	}

	out.Content = content
	out.Confidence = PriorConfidence(opts.Attempt)
	if cand.AvgLogprobs != 0 {
		out.Confidence = clamp01(math.Exp(cand.AvgLogprobs))
	}
	return out
}

func classifyGeminiError(callCtx context.Context, err error) FailReason {
	if reason := classifyContextErr(callCtx, err); reason != "" {
		return reason
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, apiErr.Status+" "+apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return classifyStatus(apiErrPtr.Code, apiErrPtr.Status+" "+apiErrPtr.Message)
	}
	return FailTransport
}

// Package provider defines the uniform adapter contract over external model
// services and the adapters that implement it.
//
// An adapter never returns a Go error for upstream trouble. Every failure is
// mapped onto a FailReason inside the Response, so callers branch on data
// instead of unwinding errors.
package provider

import (
	"context"
	"time"
)

// Purpose tells an adapter which pipeline stage is calling.
type Purpose string

const (
	PurposePrepare  Purpose = "prepare"
	PurposeGenerate Purpose = "generate"
	PurposeValidate Purpose = "validate"
)

// FailReason classifies why a provider call did not produce usable content.
// Empty means success.
type FailReason string

const (
	FailAuth          FailReason = "auth"
	FailRateLimited   FailReason = "rate_limited"
	FailContentPolicy FailReason = "content_policy"
	FailRecitation    FailReason = "recitation"
	FailEmpty         FailReason = "empty"
	FailTransport     FailReason = "transport"
	FailTimeout       FailReason = "timeout"
)

// Transient reports whether the failure class is worth one automatic retry.
func (f FailReason) Transient() bool {
	switch f {
	case FailRateLimited, FailTransport, FailTimeout, FailEmpty:
		return true
	}
	return false
}

// Confidence priors used when a provider offers no signal of its own.
const (
	PriorFirstAttempt = 0.7
	PriorRetry        = 0.5
)

// PriorConfidence returns the fixed prior for an attempt (0-based).
func PriorConfidence(attempt int) float64 {
	if attempt > 0 {
		return PriorRetry
	}
	return PriorFirstAttempt
}

// Options carries per-call generation settings.
type Options struct {
	Temperature float64
	MaxOutput   int
	Timeout     time.Duration
	Purpose     Purpose

	// Attempt is 0 for the first call and increments on each retry.
	Attempt int
}

// DefaultTimeout applies when Options.Timeout is unset.
const DefaultTimeout = 30 * time.Second

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// Response is the outcome of one adapter call.
type Response struct {
	Content    string     `json:"content"`
	AgentID    string     `json:"agent_id"`
	Confidence float64    `json:"confidence"`
	FailReason FailReason `json:"fail_reason,omitempty"`

	Attempts     int           `json:"attempts"`
	InputTokens  int           `json:"input_tokens,omitempty"`
	OutputTokens int           `json:"output_tokens,omitempty"`
	Latency      time.Duration `json:"latency"`
}

// OK reports whether the call succeeded.
func (r Response) OK() bool { return r.FailReason == "" }

// Failed builds a failure response with zero confidence.
func Failed(agentID string, reason FailReason) Response {
	return Response{AgentID: agentID, FailReason: reason, Attempts: 1}
}

// Adapter is the uniform interface to a generation or validation service.
// Generate must return within opts.Timeout plus a small slack and must not
// panic or return errors for upstream failures.
type Adapter interface {
	ID() string
	Generate(ctx context.Context, prompt string, opts Options) Response
}

// callContext bounds one call by the adapter timeout.
func callContext(ctx context.Context, opts Options) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opts.timeout())
}

// clamp01 keeps confidences within [0,1].
func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

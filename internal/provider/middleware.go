package provider

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"linefixer/internal/logging"
)

// Middleware decorates an Adapter to inject cross-cutting concerns
// (retries, rate limiting, logging, usage accounting).
type Middleware func(Adapter) Adapter

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Adapter, mws ...Middleware) Adapter {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		out = mws[i](out)
	}
	return out
}

// -------- Retry with exponential backoff --------

// RetryPolicy configures WithRetry.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy is one retry, 1s base, 8s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 1, BaseDelay: time.Second, MaxDelay: 8 * time.Second}
}

type failError FailReason

func (e failError) Error() string { return "provider failure: " + string(e) }

// WithRetry retries transient failures (rate_limited, transport, timeout,
// empty) with exponential backoff. auth, content_policy and recitation are
// returned immediately. Cancellation of ctx stops the loop and returns the
// last response.
func WithRetry(p RetryPolicy) Middleware {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	return func(next Adapter) Adapter {
		return &retrying{next: next, policy: p}
	}
}

type retrying struct {
	next   Adapter
	policy RetryPolicy
}

func (r *retrying) ID() string { return r.next.ID() }

func (r *retrying) Generate(ctx context.Context, prompt string, opts Options) Response {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.BaseDelay
	b.MaxInterval = r.policy.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0

	attempt := 0
	var last Response
	op := func() (Response, error) {
		o := opts
		o.Attempt = attempt
		resp := r.next.Generate(ctx, prompt, o)
		attempt++
		resp.Attempts = attempt
		last = resp
		if resp.OK() {
			return resp, nil
		}
		if !resp.FailReason.Transient() {
			return resp, backoff.Permanent(failError(resp.FailReason))
		}
		return resp, failError(resp.FailReason)
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.policy.MaxRetries+1)),
	)
	if err != nil {
		if last.AgentID == "" {
			last = Failed(r.next.ID(), FailTimeout)
		}
		return last
	}
	return resp
}

// -------- Rate limiting --------

// RateLimit limits request rate per adapter. If rps <= 0 the middleware is a
// no-op. A wait that would outlive ctx fails with FailTimeout.
func RateLimit(rps float64, burst int) Middleware {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return func(next Adapter) Adapter {
		return &rateLimited{next: next, lim: rate.NewLimiter(rate.Limit(rps), burst)}
	}
}

type rateLimited struct {
	next Adapter
	lim  *rate.Limiter
}

func (r *rateLimited) ID() string { return r.next.ID() }

func (r *rateLimited) Generate(ctx context.Context, prompt string, opts Options) Response {
	if err := r.lim.Wait(ctx); err != nil {
		return Failed(r.next.ID(), FailTimeout)
	}
	return r.next.Generate(ctx, prompt, opts)
}

// -------- Auth halt --------

// HaltOnAuth stops calling the wrapped adapter after its first auth failure.
// Later calls fail with FailAuth immediately for the rest of the run.
func HaltOnAuth(logger *zap.Logger) Middleware {
	return func(next Adapter) Adapter {
		return &authHalt{next: next, log: logging.Or(logger, logging.CategoryAPI)}
	}
}

type authHalt struct {
	next   Adapter
	log    *zap.Logger
	halted atomic.Bool
}

func (h *authHalt) ID() string { return h.next.ID() }

func (h *authHalt) Generate(ctx context.Context, prompt string, opts Options) Response {
	if h.halted.Load() {
		return Failed(h.next.ID(), FailAuth)
	}
	resp := h.next.Generate(ctx, prompt, opts)
	if resp.FailReason == FailAuth && h.halted.CompareAndSwap(false, true) {
		h.log.Warn("authentication failed; role disabled for this run", zap.String("agent", h.next.ID()))
	}
	return resp
}

// -------- Logging --------

// WithLogging logs every call at debug level. A nil logger uses the api
// category logger.
func WithLogging(logger *zap.Logger) Middleware {
	return func(next Adapter) Adapter {
		return &logged{next: next, log: logging.Or(logger, logging.CategoryAPI)}
	}
}

type logged struct {
	next Adapter
	log  *zap.Logger
}

func (l *logged) ID() string { return l.next.ID() }

func (l *logged) Generate(ctx context.Context, prompt string, opts Options) Response {
	resp := l.next.Generate(ctx, prompt, opts)
	fields := []zap.Field{
		zap.String("agent", l.next.ID()),
		zap.String("purpose", string(opts.Purpose)),
		zap.Int("prompt_bytes", len(prompt)),
		zap.Int("attempts", resp.Attempts),
		zap.Duration("latency", resp.Latency),
		zap.Float64("confidence", resp.Confidence),
	}
	if resp.OK() {
		l.log.Debug("provider call ok", fields...)
	} else {
		l.log.Debug("provider call failed", append(fields, zap.String("reason", string(resp.FailReason)))...)
	}
	return resp
}

// -------- Usage accounting --------

// UsageRecorder receives one record per completed adapter call.
type UsageRecorder interface {
	RecordCall(purpose Purpose, resp Response)
}

// WithUsage reports every call to rec. A nil recorder disables the
// middleware.
func WithUsage(rec UsageRecorder) Middleware {
	if rec == nil {
		return nil
	}
	return func(next Adapter) Adapter {
		return &usageCounted{next: next, rec: rec}
	}
}

type usageCounted struct {
	next Adapter
	rec  UsageRecorder
}

func (u *usageCounted) ID() string { return u.next.ID() }

func (u *usageCounted) Generate(ctx context.Context, prompt string, opts Options) Response {
	resp := u.next.Generate(ctx, prompt, opts)
	u.rec.RecordCall(opts.Purpose, resp)
	return resp
}

// Package coordinator picks the fixing strategy for each over-long line:
// hierarchical pipeline, then conclave, then the pattern fixer.
package coordinator

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"linefixer/internal/conclave"
	"linefixer/internal/logging"
	"linefixer/internal/pattern"
	"linefixer/internal/pipeline"
	"linefixer/internal/provider"
	"linefixer/internal/types"
)

// DefaultBudget is the per-request wall-clock budget.
const DefaultBudget = 30 * time.Second

// Options configures a Coordinator.
type Options struct {
	Budget          time.Duration
	StyleRules      []string
	AllowHardBreak  bool
	ConclaveMembers []types.Role
	Logger          *zap.Logger
}

// Coordinator is the sole arbiter of strategy selection.
type Coordinator struct {
	pipeline   *pipeline.Pipeline
	conclave   *conclave.Conclave
	pattern    *pattern.Fixer
	budget     time.Duration
	styleRules []string
	log        *zap.Logger
}

// New wires the three tiers over a roster.
func New(roster provider.Roster, opts Options) *Coordinator {
	log := logging.Or(opts.Logger, logging.CategoryCoordinator)
	budget := opts.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Coordinator{
		pipeline:   pipeline.New(roster, pipeline.WithStyleRules(opts.StyleRules)),
		conclave:   conclave.New(roster, opts.ConclaveMembers, nil),
		pattern:    pattern.New(opts.AllowHardBreak),
		budget:     budget,
		styleRules: opts.StyleRules,
		log:        log,
	}
}

// FixLine returns a verdict for one request. It never fails: every
// downstream problem becomes a FixResult with Success=false or a later
// strategy. The AI tiers share one budget; the pattern fixer always runs
// when they do not succeed.
func (c *Coordinator) FixLine(ctx context.Context, req types.FixRequest) types.FixResult {
	start := time.Now()
	if !req.NeedsFix() {
		return types.FixResult{
			FixedLines: []string{req.OriginalLine},
			Strategy:   types.StrategyPassthrough,
			Confidence: 1.0,
			Success:    true,
		}
	}

	log := c.log.With(zap.String("file", req.FilePath), zap.Int("line", req.LineNumber))
	bctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	var (
		attempts []types.Strategy
		failures []string
	)
	finish := func(r types.FixResult) types.FixResult {
		r.Attempts = attempts
		r.Duration = time.Since(start)
		if !r.Success || len(failures) > 0 {
			reasons := failures
			if r.Reason != "" {
				reasons = append(reasons, string(r.Strategy)+":"+r.Reason)
			}
			r.Reason = strings.Join(reasons, "; ")
		}
		log.Debug("line resolved",
			zap.String("strategy", string(r.Strategy)),
			zap.Bool("success", r.Success),
			zap.Float64("confidence", r.Confidence),
			zap.Duration("duration", r.Duration),
			zap.String("reason", r.Reason))
		return r
	}

	if c.pipeline.Available() {
		attempts = append(attempts, types.StrategyHierarchical)
		out := c.pipeline.Run(bctx, req)
		if out.Accepted() {
			return finish(types.FixResult{
				FixedLines: out.Lines,
				Strategy:   types.StrategyHierarchical,
				AgentUsed:  out.AgentID,
				Confidence: out.Confidence,
				Success:    true,
			})
		}
		failures = append(failures, string(types.StrategyHierarchical)+":"+out.FailReason)
	}

	if c.conclave.Available() {
		attempts = append(attempts, types.StrategyConclave)
		if bctx.Err() != nil {
			failures = append(failures, string(types.StrategyConclave)+":"+budgetReason(bctx))
		} else {
			out := c.conclave.Propose(bctx, req, pipeline.CanonicalPrompt(req, c.styleRules))
			if out.OK() {
				return finish(types.FixResult{
					FixedLines: out.Lines,
					Strategy:   types.StrategyConclave,
					AgentUsed:  out.AgentID,
					Confidence: out.Confidence,
					Success:    true,
				})
			}
			failures = append(failures, string(types.StrategyConclave)+":"+out.FailReason)
		}
	}

	attempts = append(attempts, types.StrategyPattern)
	pr := c.pattern.Fix(req.OriginalLine, req.Width())
	return finish(types.FixResult{
		FixedLines: pr.Lines,
		Strategy:   types.StrategyPattern,
		Confidence: pr.Confidence,
		Success:    pr.Success,
		Reason:     pr.Reason,
	})
}

func budgetReason(ctx context.Context) string {
	if ctx.Err() == context.DeadlineExceeded {
		return pipeline.ReasonBudget
	}
	return pipeline.ReasonCancelled
}

// Package pipeline implements the hierarchical Prepare → Generate → Validate
// tier over role-selected provider adapters.
//
// State machine per request:
//
//	NEW → PREPARING → GENERATING → VALIDATING → ACCEPTED
//	               ↘ (fail)     ↘ (fail)      ↘ (reject)
//	                         REJECTED
//
// ACCEPTED is the only success terminal state. Stages run strictly in order;
// the caller's context carries the per-request budget.
package pipeline

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"linefixer/internal/candidate"
	"linefixer/internal/logging"
	"linefixer/internal/provider"
	"linefixer/internal/types"
)

// State is a pipeline state.
type State string

const (
	StateNew        State = "NEW"
	StatePreparing  State = "PREPARING"
	StateGenerating State = "GENERATING"
	StateValidating State = "VALIDATING"
	StateAccepted   State = "ACCEPTED"
	StateRejected   State = "REJECTED"
)

// Failure reasons.
const (
	ReasonBudget           = "budget"
	ReasonCancelled        = "cancelled"
	ReasonUnconfigured     = "unconfigured"
	ReasonInvalidCandidate = "invalid_candidate"
	ReasonValidatorReject  = "validator_reject"
)

const (
	// CanonicalConfidence is the prepare-stage confidence of the canonical
	// prompt.
	CanonicalConfidence = 0.7

	// ValidatorPenalty is subtracted when no usable verdict is available.
	ValidatorPenalty = 0.1
)

// Stage records the outcome of one stage.
type Stage struct {
	State      State
	AgentID    string
	Confidence float64
	FailReason string
}

// Outcome is the pipeline's result for one request.
type Outcome struct {
	State      State
	Lines      []string
	AgentID    string // generator that produced Lines
	Confidence float64
	FailReason string
	Rationale  string // validator rationale, when given

	// ValidatorUsed is false when the candidate was accepted without a
	// verdict.
	ValidatorUsed bool

	Trace  []State
	Stages []Stage
}

// Accepted reports whether the request reached ACCEPTED.
func (o Outcome) Accepted() bool { return o.State == StateAccepted }

// Pipeline runs the three stages over a roster.
type Pipeline struct {
	roster     provider.Roster
	styleRules []string
	log        *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStyleRules forwards style rules to the prepare stage and canonical
// prompt.
func WithStyleRules(rules []string) Option {
	return func(p *Pipeline) { p.styleRules = rules }
}

// WithLogger overrides the pipeline logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// New creates a pipeline.
func New(roster provider.Roster, opts ...Option) *Pipeline {
	p := &Pipeline{roster: roster}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logging.Or(p.log, logging.CategoryPipeline)
	return p
}

// Available reports whether at least one generator role is configured.
func (p *Pipeline) Available() bool {
	return p.roster.Has(types.RoleGenerate) || p.roster.Has(types.RoleFallback)
}

// Run drives one request through the state machine.
func (p *Pipeline) Run(ctx context.Context, req types.FixRequest) Outcome {
	r := &run{p: p, req: req, log: p.log.With(
		zap.String("file", req.FilePath),
		zap.Int("line", req.LineNumber),
	)}
	r.enter(StateNew)

	if !p.Available() {
		return r.reject(ReasonUnconfigured)
	}

	r.enter(StatePreparing)
	prompt, prepConf := r.prepare(ctx)
	if reason := budgetReason(ctx); reason != "" {
		return r.reject(reason)
	}

	r.enter(StateGenerating)
	lines, agentID, genConf, failReason := r.generate(ctx, prompt)
	if reason := budgetReason(ctx); reason != "" {
		return r.reject(reason)
	}
	if failReason != "" {
		return r.reject(failReason)
	}
	r.out.Lines = lines
	r.out.AgentID = agentID

	r.enter(StateValidating)
	verdict, valConf, rationale := r.validate(ctx, lines)
	if reason := budgetReason(ctx); reason != "" {
		return r.reject(reason)
	}
	r.out.Rationale = rationale

	switch verdict {
	case VerdictReject:
		return r.reject(ReasonValidatorReject)
	case VerdictAccept:
		r.out.ValidatorUsed = true
		r.out.Confidence = math.Min(prepConf, math.Min(genConf, valConf))
	default:
		r.out.Confidence = math.Max(0, math.Min(prepConf, genConf)-ValidatorPenalty)
	}
	if !types.FitsWidth(lines, req.Width()) {
		return r.reject(ReasonInvalidCandidate)
	}

	r.enter(StateAccepted)
	r.log.Debug("candidate accepted",
		zap.String("agent", agentID),
		zap.Float64("confidence", r.out.Confidence),
		zap.Bool("validated", r.out.ValidatorUsed))
	return r.out
}

type run struct {
	p   *Pipeline
	req types.FixRequest
	log *zap.Logger
	out Outcome
}

func (r *run) enter(s State) {
	r.out.State = s
	r.out.Trace = append(r.out.Trace, s)
}

func (r *run) record(s Stage) {
	r.out.Stages = append(r.out.Stages, s)
}

func (r *run) reject(reason string) Outcome {
	r.enter(StateRejected)
	r.out.FailReason = reason
	r.out.Confidence = 0
	r.log.Debug("pipeline rejected", zap.String("reason", reason))
	return r.out
}

// prepare returns the generator prompt and the stage confidence. Any prepare
// failure degrades to the canonical prompt.
func (r *run) prepare(ctx context.Context) (string, float64) {
	agent := r.p.roster.Get(types.RolePrepare)
	if agent == nil {
		r.record(Stage{State: StatePreparing, Confidence: CanonicalConfidence})
		return CanonicalPrompt(r.req, r.p.styleRules), CanonicalConfidence
	}

	resp := agent.Call(ctx, preparePrompt(r.req, r.p.styleRules), provider.PurposePrepare)
	if !resp.OK() {
		r.log.Debug("prepare failed; using canonical prompt", zap.String("reason", string(resp.FailReason)))
		r.record(Stage{State: StatePreparing, AgentID: agent.ID(), Confidence: CanonicalConfidence, FailReason: string(resp.FailReason)})
		return CanonicalPrompt(r.req, r.p.styleRules), CanonicalConfidence
	}
	r.record(Stage{State: StatePreparing, AgentID: agent.ID(), Confidence: resp.Confidence})
	return generatorPrompt(resp.Content, r.req), resp.Confidence
}

// generate tries the generate role, then the fallback role once.
func (r *run) generate(ctx context.Context, prompt string) (lines []string, agentID string, conf float64, failReason string) {
	failReason = ReasonUnconfigured
	for _, role := range []types.Role{types.RoleGenerate, types.RoleFallback} {
		agent := r.p.roster.Get(role)
		if agent == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil, "", 0, budgetReason(ctx)
		}

		resp := agent.Call(ctx, prompt, provider.PurposeGenerate)
		if !resp.OK() {
			failReason = string(resp.FailReason)
			r.record(Stage{State: StateGenerating, AgentID: agent.ID(), FailReason: failReason})
			r.log.Debug("generator failed", zap.String("agent", agent.ID()), zap.String("reason", failReason))
			continue
		}

		cand, problem := candidate.Extract(resp.Content, r.req.Width())
		if problem != candidate.ProblemNone {
			failReason = ReasonInvalidCandidate
			r.record(Stage{State: StateGenerating, AgentID: agent.ID(), FailReason: failReason})
			r.log.Debug("generator candidate invalid", zap.String("agent", agent.ID()), zap.String("problem", string(problem)))
			continue
		}

		r.record(Stage{State: StateGenerating, AgentID: agent.ID(), Confidence: resp.Confidence})
		return cand, agent.ID(), resp.Confidence, ""
	}
	return nil, "", 0, failReason
}

// validate asks the validator for a verdict. An unconfigured or failed
// validator, or an unreadable reply, yields VerdictUnknown.
func (r *run) validate(ctx context.Context, lines []string) (Verdict, float64, string) {
	agent := r.p.roster.Get(types.RoleValidate)
	if agent == nil {
		r.record(Stage{State: StateValidating, FailReason: ReasonUnconfigured})
		return VerdictUnknown, 0, ""
	}

	resp := agent.Call(ctx, validatePrompt(r.req, lines), provider.PurposeValidate)
	if !resp.OK() {
		r.record(Stage{State: StateValidating, AgentID: agent.ID(), FailReason: string(resp.FailReason)})
		return VerdictUnknown, 0, ""
	}
	verdict, rationale := ParseVerdict(resp.Content)
	st := Stage{State: StateValidating, AgentID: agent.ID(), Confidence: resp.Confidence}
	if verdict == VerdictUnknown {
		st.FailReason = "unreadable_verdict"
	}
	r.record(st)
	return verdict, resp.Confidence, rationale
}

func budgetReason(ctx context.Context) string {
	err := ctx.Err()
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonBudget
	default:
		return ReasonCancelled
	}
}

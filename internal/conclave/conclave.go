// Package conclave implements the multi-agent fallback: the same prompt goes
// to every member concurrently and the width-compliant candidate closest to
// the original line wins.
package conclave

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/agext/levenshtein"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"linefixer/internal/candidate"
	"linefixer/internal/logging"
	"linefixer/internal/provider"
	"linefixer/internal/types"
)

// Failure reasons.
const (
	ReasonNoConsensus  = "no_consensus"
	ReasonUnconfigured = "unconfigured"
	ReasonBudget       = "budget"
	ReasonCancelled    = "cancelled"
)

// Proposal is one member's parsed answer.
type Proposal struct {
	AgentID    string
	Lines      []string
	Confidence float64
	Arrival    int    // 0-based completion order
	FailReason string // provider failure, or the candidate problem
	Distance   int    // edit distance to the original; valid for survivors
}

// Survived reports whether the proposal passed the width filter.
func (p Proposal) Survived() bool { return p.FailReason == "" }

// Outcome is the conclave's verdict.
type Outcome struct {
	Lines            []string
	AgentID          string
	Confidence       float64
	FailReason       string
	SurvivorFraction float64
	Proposals        []Proposal // in arrival order
}

// OK reports whether a candidate was adopted.
func (o Outcome) OK() bool { return o.FailReason == "" }

// MinMembers is the smallest conclave that can run. With fewer members the
// coordinator skips this tier.
const MinMembers = 2

// Conclave queries its members concurrently.
type Conclave struct {
	members []*provider.Agent
	log     *zap.Logger
}

// New selects members from roster by role. Roles that are not configured
// are skipped; when none of the listed roles is configured every configured
// role takes part.
func New(roster provider.Roster, roles []types.Role, logger *zap.Logger) *Conclave {
	c := &Conclave{log: logging.Or(logger, logging.CategoryConclave)}
	seen := make(map[types.Role]bool)
	for _, role := range roles {
		if seen[role] {
			continue
		}
		seen[role] = true
		if a := roster.Get(role); a != nil {
			c.members = append(c.members, a)
		}
	}
	if len(c.members) == 0 {
		for _, role := range roster.Roles() {
			c.members = append(c.members, roster.Get(role))
		}
	}
	return c
}

// Available reports whether at least MinMembers members are configured.
func (c *Conclave) Available() bool { return len(c.members) >= MinMembers }

// Size returns the number of members.
func (c *Conclave) Size() int { return len(c.members) }

// Propose sends prompt to every member and selects a candidate for req.
// All member calls share ctx; Propose returns only after every call has
// returned.
func (c *Conclave) Propose(ctx context.Context, req types.FixRequest, prompt string) Outcome {
	if !c.Available() {
		return Outcome{FailReason: ReasonUnconfigured}
	}

	var (
		mu        sync.Mutex
		proposals = make([]Proposal, 0, len(c.members))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range c.members {
		g.Go(func() error {
			resp := m.Call(gctx, prompt, provider.PurposeGenerate)
			p := evaluate(resp, req)

			mu.Lock()
			p.Arrival = len(proposals)
			proposals = append(proposals, p)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	out := Outcome{Proposals: proposals}
	best, survivors, sum := -1, 0, 0.0
	for i, p := range proposals {
		c.log.Debug("proposal",
			zap.String("agent", p.AgentID),
			zap.Int("arrival", p.Arrival),
			zap.String("fail_reason", p.FailReason),
			zap.Int("distance", p.Distance),
			zap.Float64("confidence", p.Confidence))
		if !p.Survived() {
			continue
		}
		survivors++
		sum += p.Confidence
		if best < 0 || better(p, proposals[best]) {
			best = i
		}
	}

	if best < 0 {
		out.FailReason = ReasonNoConsensus
		switch err := ctx.Err(); {
		case errors.Is(err, context.DeadlineExceeded):
			out.FailReason = ReasonBudget
		case err != nil:
			out.FailReason = ReasonCancelled
		}
		return out
	}

	fraction := float64(survivors) / float64(len(c.members))
	winner := proposals[best]
	out.Lines = winner.Lines
	out.AgentID = winner.AgentID
	out.SurvivorFraction = fraction
	out.Confidence = sum / float64(survivors) * fraction
	return out
}

func evaluate(resp provider.Response, req types.FixRequest) Proposal {
	p := Proposal{AgentID: resp.AgentID, Confidence: resp.Confidence}
	if !resp.OK() {
		p.FailReason = string(resp.FailReason)
		p.Confidence = 0
		return p
	}
	lines, problem := candidate.Extract(resp.Content, req.Width())
	if problem != candidate.ProblemNone {
		p.FailReason = "candidate_" + string(problem)
		return p
	}
	p.Lines = lines
	p.Distance = levenshtein.Distance(strings.Join(lines, ""), req.OriginalLine, nil)
	return p
}

// better orders survivors: smaller edit distance, then higher confidence,
// then earlier arrival.
func better(a, b Proposal) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Arrival < b.Arrival
}

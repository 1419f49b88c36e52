// Package providertest offers a scripted in-memory adapter for tests.
package providertest

import (
	"context"
	"sync"
	"time"

	"linefixer/internal/provider"
	"linefixer/internal/types"
)

// Step is one scripted reply.
type Step struct {
	Content    string
	Confidence float64
	Fail       provider.FailReason
	Delay      time.Duration
}

// Reply is a successful step.
func Reply(content string, confidence float64) Step {
	return Step{Content: content, Confidence: confidence}
}

// Fail is a failed step.
func Fail(reason provider.FailReason) Step {
	return Step{Fail: reason}
}

// Call records one invocation.
type Call struct {
	Prompt  string
	Options provider.Options
}

// Scripted replays steps in order. When the script is exhausted the last
// step repeats. A Delay is honored against ctx; cancellation yields
// FailTimeout.
type Scripted struct {
	id string

	mu    sync.Mutex
	steps []Step
	next  int
	calls []Call
}

// New creates a scripted adapter.
func New(id string, steps ...Step) *Scripted {
	return &Scripted{id: id, steps: steps}
}

// ID returns the agent id.
func (s *Scripted) ID() string { return s.id }

// Generate plays the next step.
func (s *Scripted) Generate(ctx context.Context, prompt string, opts provider.Options) provider.Response {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Prompt: prompt, Options: opts})
	var step Step
	if len(s.steps) > 0 {
		idx := s.next
		if idx >= len(s.steps) {
			idx = len(s.steps) - 1
		}
		step = s.steps[idx]
		s.next++
	} else {
		step = Step{Fail: provider.FailEmpty}
	}
	s.mu.Unlock()

	if step.Delay > 0 {
		t := time.NewTimer(step.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return provider.Failed(s.id, provider.FailTimeout)
		case <-t.C:
		}
	} else if ctx.Err() != nil {
		return provider.Failed(s.id, provider.FailTimeout)
	}

	if step.Fail != "" {
		return provider.Failed(s.id, step.Fail)
	}
	return provider.Response{
		Content:    step.Content,
		AgentID:    s.id,
		Confidence: step.Confidence,
		Attempts:   1,
		Latency:    step.Delay,
	}
}

// Calls returns a copy of the recorded invocations.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns the number of invocations.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Agent wraps s as a roster agent for role.
func (s *Scripted) Agent(role types.Role) *provider.Agent {
	return &provider.Agent{Adapter: s, Role: role}
}

// Roster builds a roster from role/adapter pairs.
func Roster(agents map[types.Role]*Scripted) provider.Roster {
	r := make(provider.Roster, len(agents))
	for role, s := range agents {
		r[role] = s.Agent(role)
	}
	return r
}

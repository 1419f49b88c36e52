package usage

import (
	"context"
	"sync"

	"linefixer/internal/provider"
)

type contextKey struct{}

// Tracker accumulates adapter usage for one run. It is safe for concurrent
// use by conclave members.
type Tracker struct {
	mu   sync.Mutex
	data Stats
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		data: Stats{
			ByAgent:   make(map[string]AgentStats),
			ByPurpose: make(map[string]TokenCounts),
		},
	}
}

// RecordCall records one logical adapter call (retries included).
func (t *Tracker) RecordCall(purpose provider.Purpose, resp provider.Response) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.Total.Add(resp.InputTokens, resp.OutputTokens)
	addToMap(t.data.ByPurpose, string(purpose), resp.InputTokens, resp.OutputTokens)

	agent := resp.AgentID
	if agent == "" {
		agent = "unknown"
	}
	entry := t.data.ByAgent[agent]
	entry.Calls++
	attempts := resp.Attempts
	if attempts < 1 {
		attempts = 1
	}
	entry.Attempts += attempts
	if resp.OK() {
		entry.Successes++
	} else {
		if entry.Failures == nil {
			entry.Failures = make(map[string]int)
		}
		entry.Failures[string(resp.FailReason)]++
	}
	entry.Tokens.Add(resp.InputTokens, resp.OutputTokens)
	entry.addLatency(resp.Latency)
	t.data.ByAgent[agent] = entry
}

// Snapshot returns a deep copy of the accumulated stats.
func (t *Tracker) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := Stats{
		Total:     t.data.Total,
		ByAgent:   make(map[string]AgentStats, len(t.data.ByAgent)),
		ByPurpose: make(map[string]TokenCounts, len(t.data.ByPurpose)),
	}
	for k, v := range t.data.ByAgent {
		if v.Failures != nil {
			f := make(map[string]int, len(v.Failures))
			for r, n := range v.Failures {
				f[r] = n
			}
			v.Failures = f
		}
		out.ByAgent[k] = v
	}
	for k, v := range t.data.ByPurpose {
		out.ByPurpose[k] = v
	}
	return out
}

// Calls returns the total number of logical calls recorded.
func (t *Tracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, a := range t.data.ByAgent {
		n += a.Calls
	}
	return n
}

func addToMap(m map[string]TokenCounts, key string, input, output int) {
	entry := m[key]
	entry.Add(input, output)
	m[key] = entry
}

// Context Helpers

// NewContext returns a new context carrying the tracker.
func NewContext(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

// FromContext retrieves the tracker from the context.
func FromContext(ctx context.Context) *Tracker {
	val := ctx.Value(contextKey{})
	if val == nil {
		return nil
	}
	return val.(*Tracker)
}

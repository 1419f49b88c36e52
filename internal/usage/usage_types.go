package usage

import "time"

// Stats is the usage snapshot stored in a session record.
type Stats struct {
	Total     TokenCounts            `json:"total"`
	ByAgent   map[string]AgentStats  `json:"by_agent"`
	ByPurpose map[string]TokenCounts `json:"by_purpose"`
}

// AgentStats holds per-agent call counters.
type AgentStats struct {
	Calls     int            `json:"calls"`
	Attempts  int            `json:"attempts"`
	Successes int            `json:"successes"`
	Failures  map[string]int `json:"failures,omitempty"` // by fail reason
	Tokens    TokenCounts    `json:"tokens"`
	LatencyMS int64          `json:"latency_ms"`
}

// TokenCounts holds input/output sums.
type TokenCounts struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
	Total  int64 `json:"total"`
}

func (tc *TokenCounts) Add(input, output int) {
	tc.Input += int64(input)
	tc.Output += int64(output)
	tc.Total += int64(input + output)
}

func (a *AgentStats) addLatency(d time.Duration) {
	a.LatencyMS += d.Milliseconds()
}

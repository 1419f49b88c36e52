package usage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linefixer/internal/provider"
)

func TestTracker_RecordCallAggregates(t *testing.T) {
	tracker := NewTracker()

	tracker.RecordCall(provider.PurposeGenerate, provider.Response{
		AgentID: "generate", Content: "x", InputTokens: 10, OutputTokens: 5,
		Attempts: 1, Latency: 120 * time.Millisecond,
	})
	tracker.RecordCall(provider.PurposeGenerate, provider.Response{
		AgentID: "generate", FailReason: provider.FailRateLimited, Attempts: 2,
	})
	tracker.RecordCall(provider.PurposeValidate, provider.Response{
		AgentID: "validate", Content: "accept", InputTokens: 2, OutputTokens: 3, Attempts: 1,
	})

	stats := tracker.Snapshot()
	assert.Equal(t, TokenCounts{Input: 12, Output: 8, Total: 20}, stats.Total)
	assert.Equal(t, int64(15), stats.ByPurpose["generate"].Total)
	assert.Equal(t, int64(5), stats.ByPurpose["validate"].Total)

	gen := stats.ByAgent["generate"]
	assert.Equal(t, 2, gen.Calls)
	assert.Equal(t, 3, gen.Attempts)
	assert.Equal(t, 1, gen.Successes)
	assert.Equal(t, map[string]int{"rate_limited": 1}, gen.Failures)
	assert.Equal(t, int64(120), gen.LatencyMS)

	assert.Equal(t, 3, tracker.Calls())
}

func TestTracker_SnapshotIsACopy(t *testing.T) {
	tracker := NewTracker()
	tracker.RecordCall(provider.PurposeGenerate, provider.Response{AgentID: "fallback", FailReason: provider.FailAuth})

	snap := tracker.Snapshot()
	snap.ByAgent["fallback"].Failures["auth"] = 99

	assert.Equal(t, 1, tracker.Snapshot().ByAgent["fallback"].Failures["auth"])
}

func TestTracker_Concurrent(t *testing.T) {
	tracker := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.RecordCall(provider.PurposeGenerate, provider.Response{AgentID: "generate", InputTokens: 1, Attempts: 1})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, tracker.Snapshot().ByAgent["generate"].Calls)
}

func TestContextRoundTrip(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	tracker := NewTracker()
	ctx := NewContext(context.Background(), tracker)
	require.NotNil(t, FromContext(ctx))
	assert.Same(t, tracker, FromContext(ctx))
}

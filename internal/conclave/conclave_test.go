package conclave_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"linefixer/internal/conclave"
	"linefixer/internal/provider"
	"linefixer/internal/provider/providertest"
	"linefixer/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// Started at init by the genai SDK's opencensus dependency.
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

const origLine = "    x = f(aaaa, bbbb)"

func request() types.FixRequest {
	return types.FixRequest{FilePath: "a.py", LineNumber: 1, OriginalLine: origLine, MaxWidth: 15}
}

var members = []types.Role{types.RoleGenerate, types.RoleFallback}

func TestPropose_OneSurvivorOneTimeout(t *testing.T) {
	gen := providertest.New("generate", providertest.Reply("    x = f(aaaa,\n      bbbb)", 0.8))
	fb := providertest.New("fallback", providertest.Step{Content: "late", Delay: 5 * time.Second})
	c := conclave.New(providertest.Roster(map[types.Role]*providertest.Scripted{
		types.RoleGenerate: gen, types.RoleFallback: fb,
	}), members, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	out := c.Propose(ctx, request(), "prompt")

	require.True(t, out.OK(), "reason: %s", out.FailReason)
	assert.Equal(t, "generate", out.AgentID)
	assert.Equal(t, []string{"    x = f(aaaa,", "      bbbb)"}, out.Lines)
	assert.InDelta(t, 0.5, out.SurvivorFraction, 1e-9)
	assert.InDelta(t, 0.4, out.Confidence, 1e-9)
	require.Len(t, out.Proposals, 2)
	assert.Equal(t, "generate", out.Proposals[0].AgentID, "fast member arrives first")
	assert.Equal(t, string(provider.FailTimeout), out.Proposals[1].FailReason)
}

func TestPropose_SmallestEditDistanceWins(t *testing.T) {
	// Both fit; the fallback keeps the text closer to the original.
	gen := providertest.New("generate", providertest.Reply("y = f(\n aaaa,\n bbbb)", 0.9))
	fb := providertest.New("fallback", providertest.Reply("    x = f(aaaa,\n bbbb)", 0.5))
	c := conclave.New(providertest.Roster(map[types.Role]*providertest.Scripted{
		types.RoleGenerate: gen, types.RoleFallback: fb,
	}), members, nil)

	out := c.Propose(context.Background(), request(), "prompt")
	require.True(t, out.OK())
	assert.Equal(t, "fallback", out.AgentID)
	assert.InDelta(t, 1.0, out.SurvivorFraction, 1e-9)
	assert.InDelta(t, (0.9+0.5)/2, out.Confidence, 1e-9)
}

func TestPropose_TieBreaks(t *testing.T) {
	reply := "    x = f(aaaa,\n bbbb)"

	t.Run("higher confidence", func(t *testing.T) {
		gen := providertest.New("generate", providertest.Reply(reply, 0.6))
		fb := providertest.New("fallback", providertest.Step{Content: reply, Confidence: 0.9, Delay: 20 * time.Millisecond})
		c := conclave.New(providertest.Roster(map[types.Role]*providertest.Scripted{
			types.RoleGenerate: gen, types.RoleFallback: fb,
		}), members, nil)

		out := c.Propose(context.Background(), request(), "prompt")
		require.True(t, out.OK())
		assert.Equal(t, "fallback", out.AgentID)
	})

	t.Run("first arrival", func(t *testing.T) {
		gen := providertest.New("generate", providertest.Step{Content: reply, Confidence: 0.7, Delay: 30 * time.Millisecond})
		fb := providertest.New("fallback", providertest.Reply(reply, 0.7))
		c := conclave.New(providertest.Roster(map[types.Role]*providertest.Scripted{
			types.RoleGenerate: gen, types.RoleFallback: fb,
		}), members, nil)

		out := c.Propose(context.Background(), request(), "prompt")
		require.True(t, out.OK())
		assert.Equal(t, "fallback", out.AgentID)
	})
}

func TestPropose_NoConsensus(t *testing.T) {
	gen := providertest.New("generate", providertest.Reply(strings.Repeat("z", 30), 0.9))
	fb := providertest.New("fallback", providertest.Fail(provider.FailRecitation))
	c := conclave.New(providertest.Roster(map[types.Role]*providertest.Scripted{
		types.RoleGenerate: gen, types.RoleFallback: fb,
	}), members, nil)

	out := c.Propose(context.Background(), request(), "prompt")
	assert.False(t, out.OK())
	assert.Equal(t, conclave.ReasonNoConsensus, out.FailReason)
	assert.Zero(t, out.Confidence)
	require.Len(t, out.Proposals, 2)
	byAgent := make(map[string]conclave.Proposal)
	for _, p := range out.Proposals {
		byAgent[p.AgentID] = p
	}
	assert.Equal(t, "candidate_too_wide", byAgent["generate"].FailReason)
	assert.Equal(t, string(provider.FailRecitation), byAgent["fallback"].FailReason)
}

func TestPropose_BudgetExhausted(t *testing.T) {
	slow := providertest.Step{Content: "x", Confidence: 0.9, Delay: 5 * time.Second}
	c := conclave.New(providertest.Roster(map[types.Role]*providertest.Scripted{
		types.RoleGenerate: providertest.New("generate", slow),
		types.RoleFallback: providertest.New("fallback", slow),
	}), members, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	out := c.Propose(ctx, request(), "prompt")

	assert.Equal(t, conclave.ReasonBudget, out.FailReason)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestPropose_MembersRunConcurrently(t *testing.T) {
	step := providertest.Step{Content: "    x = f(aaaa,\n bbbb)", Confidence: 0.7, Delay: 200 * time.Millisecond}
	c := conclave.New(providertest.Roster(map[types.Role]*providertest.Scripted{
		types.RoleGenerate: providertest.New("generate", step),
		types.RoleFallback: providertest.New("fallback", step),
	}), members, nil)

	start := time.Now()
	out := c.Propose(context.Background(), request(), "prompt")
	require.True(t, out.OK())
	assert.Less(t, time.Since(start), 390*time.Millisecond)
}

func TestNew_MemberSelection(t *testing.T) {
	prep := providertest.New("prepare", providertest.Reply("x", 0.7))
	val := providertest.New("validate", providertest.Reply("x", 0.7))
	roster := providertest.Roster(map[types.Role]*providertest.Scripted{
		types.RolePrepare: prep, types.RoleValidate: val,
	})

	// None of the listed members is configured: every configured role joins.
	c := conclave.New(roster, members, nil)
	assert.Equal(t, 2, c.Size())

	c = conclave.New(roster, []types.Role{types.RoleValidate, types.RoleValidate}, nil)
	assert.Equal(t, 1, c.Size())
	assert.False(t, c.Available(), "a single member cannot form a conclave")
	assert.Equal(t, conclave.ReasonUnconfigured, c.Propose(context.Background(), request(), "p").FailReason)
	assert.Zero(t, val.CallCount())

	empty := conclave.New(nil, members, nil)
	assert.False(t, empty.Available())
	assert.Equal(t, conclave.ReasonUnconfigured, empty.Propose(context.Background(), request(), "p").FailReason)
}

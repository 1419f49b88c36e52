package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"linefixer/internal/config"
	"linefixer/internal/types"
)

// Agent binds an adapter to the role it serves and the per-call defaults
// configured for that role.
type Agent struct {
	Role     types.Role
	Adapter  Adapter
	Defaults Options
}

// ID returns the agent id.
func (a *Agent) ID() string { return a.Adapter.ID() }

// Call invokes the adapter with the role defaults and the given purpose.
func (a *Agent) Call(ctx context.Context, prompt string, purpose Purpose) Response {
	opts := a.Defaults
	opts.Purpose = purpose
	return a.Adapter.Generate(ctx, prompt, opts)
}

// Roster holds the configured agents by role. Missing roles are disabled.
type Roster map[types.Role]*Agent

// Get returns the agent for role, or nil when the role is not configured.
func (r Roster) Get(role types.Role) *Agent {
	if r == nil {
		return nil
	}
	return r[role]
}

// Has reports whether role is configured.
func (r Roster) Has(role types.Role) bool { return r.Get(role) != nil }

// Roles returns the configured roles in canonical order.
func (r Roster) Roles() []types.Role {
	var out []types.Role
	for _, role := range types.Roles {
		if r.Has(role) {
			out = append(out, role)
		}
	}
	return out
}

// BuildOptions carries shared dependencies for BuildRoster.
type BuildOptions struct {
	Usage  UsageRecorder
	Logger *zap.Logger
}

// BuildRoster constructs one agent per enabled role. The agent id is the
// role name. Every adapter is wrapped, outermost first, with logging, usage
// accounting, the auth halt, retry and (when configured) rate limiting.
func BuildRoster(ctx context.Context, cfg *config.Config, bo BuildOptions) (Roster, error) {
	roster := make(Roster)
	policy := RetryPolicy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.GetBackoffBase(),
		MaxDelay:   cfg.Retry.GetBackoffMax(),
	}

	for _, role := range cfg.Providers.Enabled() {
		pc := cfg.Providers.ByRole(role)
		inner, err := NewAdapter(ctx, string(role), pc)
		if err != nil {
			return nil, fmt.Errorf("role %s: %w", role, err)
		}
		adapter := Wrap(inner,
			WithLogging(bo.Logger),
			WithUsage(bo.Usage),
			HaltOnAuth(bo.Logger),
			WithRetry(policy),
			RateLimit(pc.RPS, pc.Burst),
		)
		roster[role] = &Agent{
			Role:    role,
			Adapter: adapter,
			Defaults: Options{
				Temperature: pc.Temperature,
				MaxOutput:   pc.MaxOutput,
				Timeout:     pc.GetTimeout(),
			},
		}
	}
	return roster, nil
}

// NewAdapter builds the bare adapter for one provider slot.
func NewAdapter(ctx context.Context, id string, pc *config.ProviderConfig) (Adapter, error) {
	switch kind := pc.EffectiveKind(); kind {
	case config.KindChat:
		return NewChatAdapter(ChatConfig{
			ID:      id,
			BaseURL: pc.URL,
			APIKey:  pc.APIKey,
			Model:   pc.Model,
		}), nil
	case config.KindGemini:
		return NewGeminiAdapter(ctx, GeminiConfig{
			ID:      id,
			APIKey:  pc.APIKey,
			Model:   pc.Model,
			BaseURL: pc.URL,
		})
	case config.KindCommand:
		return NewCommandAdapter(CommandConfig{
			ID:      id,
			Command: pc.Command,
			Model:   pc.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported adapter kind: %s", kind)
	}
}

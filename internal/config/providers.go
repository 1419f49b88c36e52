package config

import (
	"strings"
	"time"

	"linefixer/internal/types"
)

// Adapter kinds.
const (
	KindChat    = "chat"    // HTTP chat-completion protocol
	KindGemini  = "gemini"  // Google Gemini SDK
	KindCommand = "command" // local CLI fed the prompt on stdin
)

// ValidKinds lists all supported adapter kinds.
var ValidKinds = []string{KindChat, KindGemini, KindCommand}

// ProvidersConfig holds one adapter slot per role.
type ProvidersConfig struct {
	Prepare  ProviderConfig `yaml:"prepare"`
	Generate ProviderConfig `yaml:"generate"`
	Validate ProviderConfig `yaml:"validate"`
	Fallback ProviderConfig `yaml:"fallback"`
}

// ProviderConfig configures the adapter serving one role.
type ProviderConfig struct {
	Kind        string  `yaml:"kind"`
	URL         string  `yaml:"url"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Command     string  `yaml:"command"`
	Timeout     string  `yaml:"timeout"`
	Temperature float64 `yaml:"temperature"`
	MaxOutput   int     `yaml:"max_output"`
	RPS         float64 `yaml:"rps"`
	Burst       int     `yaml:"burst"`
}

// DefaultProvidersConfig returns role slots with sampling defaults and no
// endpoints, so every role starts disabled.
func DefaultProvidersConfig() ProvidersConfig {
	return ProvidersConfig{
		Prepare:  ProviderConfig{Kind: KindChat, Timeout: "30s", Temperature: 0.2, MaxOutput: 512},
		Generate: ProviderConfig{Kind: KindChat, Timeout: "30s", Temperature: 0.1, MaxOutput: 1024},
		Validate: ProviderConfig{Kind: KindChat, Timeout: "30s", Temperature: 0.0, MaxOutput: 256},
		Fallback: ProviderConfig{Kind: KindChat, Timeout: "30s", Temperature: 0.2, MaxOutput: 1024},
	}
}

// ByRole returns the slot for a role. Unknown roles return nil.
func (p *ProvidersConfig) ByRole(role types.Role) *ProviderConfig {
	switch role {
	case types.RolePrepare:
		return &p.Prepare
	case types.RoleGenerate:
		return &p.Generate
	case types.RoleValidate:
		return &p.Validate
	case types.RoleFallback:
		return &p.Fallback
	}
	return nil
}

// Enabled returns the configured roles in configuration order.
func (p *ProvidersConfig) Enabled() []types.Role {
	var out []types.Role
	for _, role := range types.Roles {
		if p.ByRole(role).Enabled() {
			out = append(out, role)
		}
	}
	return out
}

// EffectiveKind returns the adapter kind, defaulting to chat.
func (p *ProviderConfig) EffectiveKind() string {
	k := strings.ToLower(strings.TrimSpace(p.Kind))
	if k == "" {
		return KindChat
	}
	return k
}

// Enabled reports whether the slot has enough configuration to build an
// adapter. Absence disables the role.
func (p *ProviderConfig) Enabled() bool {
	switch p.EffectiveKind() {
	case KindChat:
		return strings.TrimSpace(p.URL) != ""
	case KindGemini:
		return strings.TrimSpace(p.APIKey) != ""
	case KindCommand:
		return strings.TrimSpace(p.Command) != ""
	}
	return false
}

// GetTimeout returns the per-call timeout as a duration.
func (p *ProviderConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(p.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// Validate checks one slot. role is used for error messages.
func (p *ProviderConfig) Validate(role string) error {
	field := "providers." + role
	kind := p.EffectiveKind()
	valid := false
	for _, k := range ValidKinds {
		if kind == k {
			valid = true
			break
		}
	}
	if !valid {
		return fieldErr(field+".kind", "invalid kind %q (valid: %v)", p.Kind, ValidKinds)
	}
	if p.Timeout != "" {
		if d, err := time.ParseDuration(p.Timeout); err != nil || d <= 0 {
			return fieldErr(field+".timeout", "invalid duration %q", p.Timeout)
		}
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return fieldErr(field+".temperature", "must be within [0,2], got %g", p.Temperature)
	}
	if p.MaxOutput < 0 {
		return fieldErr(field+".max_output", "must not be negative")
	}
	if p.RPS < 0 || p.Burst < 0 {
		return fieldErr(field+".rps", "rate limits must not be negative")
	}
	return nil
}

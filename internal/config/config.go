package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"linefixer/internal/types"
)

// DefaultPath is where the optional config file lives, relative to the
// working directory.
const DefaultPath = ".fixer/config.yaml"

// Config holds all fixer configuration.
type Config struct {
	// Width and file selection
	MaxWidth     int      `yaml:"max_width"`
	Include      []string `yaml:"include"`
	LanguageHint string   `yaml:"language_hint,omitempty"` // overrides the extension guess
	StyleRules   []string `yaml:"style_rules,omitempty"`   // forwarded to the prepare stage

	// Per-FixRequest wall-clock budget
	Budget string `yaml:"budget"`

	// Session archive directory
	ArchiveDir string `yaml:"archive_dir"`

	Pattern   PatternConfig   `yaml:"pattern"`
	Conclave  ConclaveConfig  `yaml:"conclave"`
	Retry     RetryConfig     `yaml:"retry"`
	Providers ProvidersConfig `yaml:"providers"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PatternConfig configures the deterministic fixer.
type PatternConfig struct {
	// AllowHardBreak declares whether a hard split at max_width counts as a
	// successful fix. When false, any hard break yields success=false and the
	// file is left unchanged. Held for the whole run.
	AllowHardBreak bool `yaml:"allow_hard_break"`
}

// ConclaveConfig configures the multi-agent fallback.
type ConclaveConfig struct {
	Members []string `yaml:"members"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console, auto
}

// Error is a configuration error. The CLI maps it to exit code 2.
type Error struct {
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Field == "" {
		return "config: " + msg
	}
	return fmt.Sprintf("config: %s: %s", e.Field, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func fieldErr(field, format string, args ...any) *Error {
	return &Error{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxWidth:   types.DefaultMaxWidth,
		Include:    []string{"*.py"},
		Budget:     "30s",
		ArchiveDir: ".fixer",
		Pattern: PatternConfig{
			AllowHardBreak: true,
		},
		Conclave: ConclaveConfig{
			Members: []string{string(types.RoleGenerate), string(types.RoleFallback)},
		},
		Retry:     DefaultRetryConfig(),
		Providers: DefaultProvidersConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from a YAML file and applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, &Error{Field: path, Msg: "failed to parse config", Err: err}
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, &Error{Field: path, Msg: "failed to read config", Err: err}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return &Error{Field: path, Msg: "failed to load env file", Err: err}
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// EnvPrefix returns the environment prefix for a role, e.g.
// AI_PROVIDER_GENERATE.
func EnvPrefix(role types.Role) string {
	return "AI_PROVIDER_" + strings.ToUpper(string(role))
}

// applyEnvOverrides applies AI_PROVIDER_<ROLE>_* variables.
func (c *Config) applyEnvOverrides() error {
	for _, role := range types.Roles {
		p := c.Providers.ByRole(role)
		prefix := EnvPrefix(role)

		if v := os.Getenv(prefix + "_URL"); v != "" {
			p.URL = v
		}
		if v := os.Getenv(prefix + "_KEY"); v != "" {
			p.APIKey = v
		}
		if v := os.Getenv(prefix + "_MODEL"); v != "" {
			p.Model = v
		}
		if v := os.Getenv(prefix + "_KIND"); v != "" {
			p.Kind = strings.ToLower(v)
		}
		if v := os.Getenv(prefix + "_COMMAND"); v != "" {
			p.Command = v
		}
		if v := os.Getenv(prefix + "_TIMEOUT"); v != "" {
			p.Timeout = v
		}
		if v := os.Getenv(prefix + "_RPS"); v != "" {
			rps, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return &Error{Field: prefix + "_RPS", Msg: "not a number", Err: err}
			}
			p.RPS = rps
		}
	}
	return nil
}

// GetBudget returns the per-request budget as a duration.
func (c *Config) GetBudget() time.Duration {
	d, err := time.ParseDuration(c.Budget)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// ConclaveMembers resolves the configured conclave roles. Unknown names are
// reported by Validate and skipped here.
func (c *Config) ConclaveMembers() []types.Role {
	var out []types.Role
	for _, m := range c.Conclave.Members {
		if r, ok := types.ParseRole(m); ok {
			out = append(out, r)
		}
	}
	return out
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.MaxWidth <= 0 {
		return fieldErr("max_width", "must be positive, got %d", c.MaxWidth)
	}
	if len(c.Include) == 0 {
		return fieldErr("include", "at least one pattern is required")
	}
	if d, err := time.ParseDuration(c.Budget); err != nil || d <= 0 {
		return fieldErr("budget", "invalid duration %q", c.Budget)
	}
	if strings.TrimSpace(c.ArchiveDir) == "" {
		return fieldErr("archive_dir", "must not be empty")
	}
	for _, m := range c.Conclave.Members {
		if _, ok := types.ParseRole(m); !ok {
			return fieldErr("conclave.members", "unknown role %q", m)
		}
	}
	if err := c.Retry.Validate(); err != nil {
		return err
	}
	for _, role := range types.Roles {
		if err := c.Providers.ByRole(role).Validate(string(role)); err != nil {
			return err
		}
	}
	switch c.Logging.Format {
	case "", "auto", "json", "console":
	default:
		return fieldErr("logging.format", "unknown format %q", c.Logging.Format)
	}
	return nil
}

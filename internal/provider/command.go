package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"linefixer/internal/logging"
)

// CommandConfig holds configuration for a subprocess adapter.
type CommandConfig struct {
	ID      string
	Command string // e.g. "gemini -m gemini-2.5-flash -p"; split on whitespace
	Model   string // exported to the child as FIXER_MODEL
}

// CommandAdapter runs a local CLI per call, writing the prompt to stdin and
// reading the reply from stdout. Some environments only offer model access
// through vendor CLIs; the role contract is unchanged.
type CommandAdapter struct {
	id    string
	name  string
	args  []string
	model string
	log   *zap.Logger
}

// NewCommandAdapter creates a subprocess adapter.
func NewCommandAdapter(cfg CommandConfig) (*CommandAdapter, error) {
	fields := strings.Fields(cfg.Command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("command adapter %q: empty command", cfg.ID)
	}
	return &CommandAdapter{
		id:    cfg.ID,
		name:  fields[0],
		args:  fields[1:],
		model: cfg.Model,
		log:   logging.Get(logging.CategoryAPI).With(zap.String("agent", cfg.ID)),
	}, nil
}

// ID returns the agent id.
func (a *CommandAdapter) ID() string { return a.id }

// Generate executes the command once.
func (a *CommandAdapter) Generate(ctx context.Context, prompt string, opts Options) Response {
	callCtx, cancel := callContext(ctx, opts)
	defer cancel()

	cmd := exec.CommandContext(callCtx, a.name, a.args...)
	cmd.Stdin = strings.NewReader(prompt)
	cmd.Env = append(cmd.Environ(),
		"FIXER_PURPOSE="+string(opts.Purpose),
		"FIXER_MODEL="+a.model,
	)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	out := Response{AgentID: a.id, Attempts: 1, Latency: time.Since(start)}
	if err != nil {
		out.FailReason = classifyCommandError(callCtx, err, stderr.String())
		a.log.Debug("command failed",
			zap.String("purpose", string(opts.Purpose)),
			zap.String("reason", string(out.FailReason)),
			zap.String("stderr", truncate(stderr.String(), 300)))
		return out
	}

	content := trimReply(stdout.String())
	if content == "" {
		out.FailReason = FailEmpty
		return out
	}
	out.Content = content
	out.Confidence = PriorConfidence(opts.Attempt)
	return out
}

func classifyCommandError(callCtx context.Context, err error, stderr string) FailReason {
	if callCtx.Err() != nil {
		return FailTimeout
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		// Binary missing or not executable.
		return FailTransport
	}
	lower := strings.ToLower(stderr)
	switch {
	case containsAny(lower, "unauthorized", "api key", "authentication", "permission denied"):
		return FailAuth
	case containsAny(lower, "rate limit", "rate_limit", "quota", "429"):
		return FailRateLimited
	case strings.Contains(lower, "recitation"):
		return FailRecitation
	case containsAny(lower, "content policy", "content_policy", "safety", "blocked"):
		return FailContentPolicy
	}
	return FailTransport
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"linefixer/internal/config"
	"linefixer/internal/driver"
	"linefixer/internal/logging"
)

// Exit codes.
const (
	exitOK        = 0
	exitDirty     = 1 // violations remain or some fixes failed
	exitConfig    = 2
	exitIO        = 3
	exitCancelled = 130
)

// cliOptions holds every flag value plus the resolved config.
type cliOptions struct {
	// Global flags
	verbose    bool
	configPath string
	envFile    string
	jsonOutput bool

	// Root flags
	scanOnly  bool
	fix       bool
	apply     bool
	recursive bool
	maxWidth  int
	include   []string
	budget    time.Duration

	// Sessions flags
	date  string
	limit int

	// Config flags
	force bool

	cfg *config.Config
}

// newRootCmd builds the command tree. Every call returns fresh flag state.
func newRootCmd() *cobra.Command {
	o := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:   "fixer <path>...",
		Short: "Rewrite over-long source lines with a tiered set of AI agents",
		Long: `fixer finds lines wider than --max-width and, in fix mode, asks a
hierarchy of model providers to rewrite them.

Each offending line goes through:
  1. Hierarchical pipeline: prepare, generate, validate
  2. Agent conclave: every member proposes, the closest survivor wins
  3. Pattern fixer: deterministic break at commas, operators or spaces

Providers are configured per role with AI_PROVIDER_<ROLE>_URL, _KEY and
_MODEL (roles: PREPARE, GENERATE, VALIDATE, FALLBACK). With no providers the
pattern fixer still runs.

Examples:
  fixer --scan-only src/
  fixer --fix --recursive --json-output .
  fixer --fix --apply --max-width 100 main.py`,
		Args:          requirePaths,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runRoot(cmd, args)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&o.configPath, "config", config.DefaultPath, "Path to the YAML config file")
	pf.StringVar(&o.envFile, "env-file", ".env", "Optional KEY=VALUE file loaded before environment overrides")
	pf.BoolVar(&o.jsonOutput, "json-output", false, "Emit a single JSON object on stdout")

	f := rootCmd.Flags()
	f.BoolVar(&o.scanOnly, "scan-only", false, "Report violations without calling providers")
	f.BoolVar(&o.fix, "fix", false, "Ask the coordinator to fix every violation")
	f.BoolVar(&o.apply, "apply", false, "With --fix, rewrite files whose violations were all fixed")
	f.BoolVarP(&o.recursive, "recursive", "r", false, "Descend into directories")
	f.IntVar(&o.maxWidth, "max-width", 79, "Maximum line width in characters")
	f.StringArrayVar(&o.include, "include", []string{"*.py"}, "Glob for files to process in directories (repeatable)")
	f.DurationVar(&o.budget, "budget", 30*time.Second, "Wall-clock budget per offending line")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &config.Error{Msg: "invalid flags", Err: err}
	})
	rootCmd.AddCommand(newSessionsCmd(o), newConfigCmd(o))
	return rootCmd
}

func requirePaths(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return &config.Error{Msg: "at least one path is required"}
	}
	return nil
}

// setup loads .env, the config file and environment overrides, applies flag
// overrides and builds the logger.
func (o *cliOptions) setup(cmd *cobra.Command) error {
	if err := config.LoadEnvFile(o.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("max-width") {
		cfg.MaxWidth = o.maxWidth
	}
	if flags.Changed("include") {
		cfg.Include = o.include
	}
	if flags.Changed("budget") {
		cfg.Budget = o.budget.String()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg

	if _, err := logging.Initialize(logging.Options{
		Level:   cfg.Logging.Level,
		Verbose: o.verbose,
		JSON:    jsonLogs(cfg.Logging.Format, os.Stderr),
	}); err != nil {
		return &config.Error{Field: "logging.level", Err: err}
	}
	return nil
}

// jsonLogs picks the log encoding: console on a terminal, JSON otherwise.
func jsonLogs(format string, w *os.File) bool {
	switch format {
	case "json":
		return true
	case "console":
		return false
	}
	return !isatty.IsTerminal(w.Fd()) && !isatty.IsCygwinTerminal(w.Fd())
}

// dirtyError reports a completed run that left violations or failed fixes.
type dirtyError struct{ msg string }

func (e *dirtyError) Error() string { return e.msg }

// exitCode maps a command error onto the process exit status.
func exitCode(err error) int {
	var (
		cfgErr *config.Error
		ioErr  *driver.IOError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitCancelled
	case errors.As(err, &cfgErr):
		return exitConfig
	case errors.As(err, &ioErr):
		return exitIO
	default:
		return exitDirty
	}
}

// execute runs the command tree and returns the exit status.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)

	code := exitCode(err)
	var dirty *dirtyError
	if err != nil && !errors.As(err, &dirty) && code != exitCancelled {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

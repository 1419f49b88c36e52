// Package logging provides category-scoped zap loggers for the fixer.
// Logs go to stderr; stdout is reserved for reports.
// Until Initialize is called every category logger is a no-op, so library
// code and tests stay silent.
package logging

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot        Category = "boot"        // Startup, config resolution
	CategoryAPI         Category = "api"         // Provider adapter calls
	CategoryPipeline    Category = "pipeline"    // Prepare/Generate/Validate stages
	CategoryConclave    Category = "conclave"    // Multi-agent fallback
	CategoryCoordinator Category = "coordinator" // Strategy selection
	CategoryDriver      Category = "driver"      // File traversal and rewrites
	CategoryArchive     Category = "archive"     // Session archive
)

// Options controls how the root logger is built.
type Options struct {
	Level   string // debug, info, warn, error
	Verbose bool   // forces debug
	JSON    bool   // JSON encoding instead of console
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	loggers = make(map[Category]*zap.Logger)
)

// Build creates a zap logger writing to stderr.
func Build(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if s := strings.TrimSpace(opts.Level); s != "" {
		parsed, err := zapcore.ParseLevel(s)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", s, err)
		}
		level = parsed
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	if !opts.JSON {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return cfg.Build()
}

// Initialize builds the root logger and installs it for every category.
func Initialize(opts Options) (*zap.Logger, error) {
	l, err := Build(opts)
	if err != nil {
		return nil, err
	}
	SetRoot(l)
	return l, nil
}

// SetRoot replaces the root logger. A nil logger installs a no-op.
func SetRoot(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	root = l
	loggers = make(map[Category]*zap.Logger)
}

// Get returns (or creates) the logger for a category.
func Get(category Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := root.Named(string(category))
	loggers[category] = l
	return l
}

// Or returns l when non-nil, otherwise the category logger.
func Or(l *zap.Logger, category Category) *zap.Logger {
	if l != nil {
		return l
	}
	return Get(category)
}

// Sync flushes the root logger.
func Sync() {
	mu.RLock()
	l := root
	mu.RUnlock()
	_ = l.Sync()
}

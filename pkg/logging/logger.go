// Package logging builds the zap loggers used by docfetch components.
//
// Console or JSON output is chosen by environment. When a log directory is
// configured, every process additionally writes to <dir>/<run-id>-docfetch.log
// so a batch can be traced after the fact.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New.
type Options struct {
	// Env is prod (JSON) or local/dev/docker (colored console)
	Env string

	// Level overrides the environment's default level when non-empty
	Level string

	// Dir enables the per-run log file
	Dir string
}

var (
	// Global run ID for the current process
	runID     string
	runIDOnce sync.Once
)

// RunID returns the identifier of the current process run.
func RunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

// New creates a logger for the given options.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	switch opts.Env {
	case "prod":
		cfg = zap.NewProductionConfig()
	case "", "local", "dev", "docker":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown environment %q for logger", opts.Env)
	}

	if opts.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	if opts.Dir != "" {
		path, err := LogPath(opts.Dir)
		if err != nil {
			return nil, err
		}
		cfg.OutputPaths = append(cfg.OutputPaths, path)
	}

	cfg.InitialFields = map[string]interface{}{"run_id": RunID()}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

// LogPath ensures dir exists and returns the log file path for this run.
func LogPath(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	return filepath.Join(dir, fmt.Sprintf("%s-docfetch.log", RunID())), nil
}

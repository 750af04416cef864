package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mattn/go-isatty"

	"wiffecg/internal/config"
)

// LogFileName is the file written inside the configured log directory.
const LogFileName = "wiffecg.log"

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// OutputPaths lists "stdout", "stderr" or file paths. Empty means stderr.
	OutputPaths []string
	Development bool
	// Color forces ANSI level colors on console output. When false, colors
	// are enabled only if the sole output is an interactive terminal.
	Color bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))
	addSource := opts.Development || level.Level() <= slog.LevelDebug

	targets := normalizeTargets(opts.OutputPaths)
	out, err := openTargets(targets)
	if err != nil {
		return nil, err
	}

	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "console":
		color := opts.Color || (len(targets) == 1 && isTerminal(targets[0]))
		return slog.New(newConsoleHandler(out, level, addSource, color)), nil
	case "json":
		return slog.New(newJSONHandler(out, level, addSource)), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// NewFromConfig logs to stderr and, when a log directory is configured, to
// LogFileName inside it.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{})
	}
	targets := []string{"stderr"}
	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		targets = append(targets, filepath.Join(dir, LogFileName))
	}
	return New(Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, OutputPaths: targets})
}

func parseLevel(level string) slog.Level {
	var parsed slog.Level
	switch name := strings.ToLower(strings.TrimSpace(level)); name {
	case "warning":
		return slog.LevelWarn
	case "":
		return slog.LevelInfo
	default:
		if err := parsed.UnmarshalText([]byte(name)); err != nil {
			return slog.LevelInfo
		}
		return parsed
	}
}

// normalizeTargets trims and de-duplicates output targets, defaulting to stderr.
func normalizeTargets(paths []string) []string {
	var targets []string
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" && !slices.Contains(targets, p) {
			targets = append(targets, p)
		}
	}
	if len(targets) == 0 {
		return []string{"stderr"}
	}
	return targets
}

func openTargets(targets []string) (io.Writer, error) {
	writers := make([]io.Writer, 0, len(targets))
	for _, target := range targets {
		w, err := openTarget(target)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func openTarget(target string) (io.Writer, error) {
	switch target {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory for %s: %w", target, err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", target, err)
	}
	return f, nil
}

func isTerminal(target string) bool {
	var f *os.File
	switch target {
	case "stdout":
		f = os.Stdout
	case "stderr":
		f = os.Stderr
	default:
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

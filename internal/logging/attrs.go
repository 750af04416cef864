package logging

import (
	"log/slog"
	"time"
)

// Attr is the attribute type accepted by every logger in the repository.
type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key, value string) Attr { return slog.String(key, value) }

// Error attaches err under FieldError. A nil error is logged as "<nil>".
func Error(err error) Attr {
	if err == nil {
		return slog.String(FieldError, "<nil>")
	}
	return slog.Any(FieldError, err)
}

func attrsToArgs(attrs []Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger tags every record of logger with a component name.
// A nil logger yields a no-op logger.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

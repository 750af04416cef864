package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldArchive is the standardized structured logging key for archive paths.
	FieldArchive = "archive"
	// FieldRunID is the standardized structured logging key for one driver invocation.
	FieldRunID = "run_id"
	// FieldEventType classifies lifecycle log lines (stage_start, stage_complete, ...).
	FieldEventType = "event_type"
	// FieldErrorKind carries the faults classification of a logged error.
	FieldErrorKind = "error_kind"
	// FieldError holds the error value of a failure log line.
	FieldError = "error"
)

type contextKey string

const (
	stageKey   contextKey = "stage"
	archiveKey contextKey = "archive"
	runIDKey   contextKey = "run_id"
)

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// WithArchive annotates context with the archive path being processed.
func WithArchive(ctx context.Context, path string) context.Context {
	if path == "" {
		return ctx
	}
	return context.WithValue(ctx, archiveKey, path)
}

// WithRunID annotates context with a correlation identifier for one invocation.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the invocation identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(runIDKey).(string)
	return v, ok && v != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if v, ok := ctx.Value(archiveKey).(string); ok && v != "" {
		fields = append(fields, slog.String(FieldArchive, v))
	}
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		fields = append(fields, slog.String(FieldStage, v))
	}
	if v, ok := RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, v))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}

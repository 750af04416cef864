package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCorruptArchive        = errors.New("corrupt archive")
	ErrAlreadyOpen           = errors.New("archive already open")
	ErrNotOpen               = errors.New("archive not open")
	ErrValidation            = errors.New("validation error")
	ErrStageFailure          = errors.New("stage failure")
	ErrPipelineAlreadyFailed = errors.New("pipeline already failed")
	ErrConfiguration         = errors.New("configuration error")
)

// Error carries the marker plus the context a failure was raised with.
type Error struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Marker, detail, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Marker, detail)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Err}
}

// Wrap builds an error that includes stage context while tagging it with the
// provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrStageFailure
	}
	return &Error{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Err:       err,
	}
}

// DiagnosticCarrier is implemented by errors that can attach contextual data
// to a persisted failure record.
type DiagnosticCarrier interface {
	DiagnosticData() map[string]any
}

// WithData attaches diagnostic data to err. A nil err stays nil.
func WithData(err error, data map[string]any) error {
	if err == nil {
		return nil
	}
	return &dataError{err: err, data: data}
}

type dataError struct {
	err  error
	data map[string]any
}

func (e *dataError) Error() string                  { return e.err.Error() }
func (e *dataError) Unwrap() error                  { return e.err }
func (e *dataError) DiagnosticData() map[string]any { return e.data }

// ErrorDetails is the flattened, serializable view of an error.
type ErrorDetails struct {
	Kind      string
	Stage     string
	Operation string
	Message   string
	Cause     error
	Data      map[string]any
}

// Details extracts the outermost wrapped context from err. Errors that were
// not produced by Wrap report their own message and a kind of "unknown".
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: "unknown", Message: strings.TrimSpace(err.Error())}
	var wrapped *Error
	if errors.As(err, &wrapped) {
		details.Kind = kindOf(wrapped.Marker)
		details.Stage = wrapped.Stage
		details.Operation = wrapped.Operation
		if wrapped.Message != "" {
			details.Message = wrapped.Message
		}
		details.Cause = wrapped.Err
	}
	var carrier DiagnosticCarrier
	if errors.As(err, &carrier) {
		details.Data = carrier.DiagnosticData()
	}
	return details
}

// Chain returns the messages of err and every error it wraps, outermost first.
func Chain(err error) []string {
	const maxDepth = 32
	var out []string
	var walk func(error, int)
	walk = func(e error, depth int) {
		if e == nil || depth > maxDepth {
			return
		}
		out = append(out, fmt.Sprintf("%T: %v", e, e))
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner, depth+1)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap(), depth+1)
		}
	}
	walk(err, 0)
	return out
}

func kindOf(marker error) string {
	switch {
	case marker == nil:
		return "unknown"
	case errors.Is(marker, ErrCorruptArchive):
		return "corrupt_archive"
	case errors.Is(marker, ErrAlreadyOpen):
		return "already_open"
	case errors.Is(marker, ErrNotOpen):
		return "not_open"
	case errors.Is(marker, ErrValidation):
		return "validation"
	case errors.Is(marker, ErrStageFailure):
		return "stage_failure"
	case errors.Is(marker, ErrPipelineAlreadyFailed):
		return "pipeline_already_failed"
	case errors.Is(marker, ErrConfiguration):
		return "configuration"
	default:
		return "unknown"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage != "" {
		parts = append(parts, stage)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "failure"
	}
	return strings.Join(parts, ": ")
}

package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"wiffecg/internal/archive"
	"wiffecg/internal/faults"
	"wiffecg/internal/logging"
	"wiffecg/internal/stage"
)

// panicError carries a value recovered from stage work.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.value) }

// fail moves the record to ERROR, keeping every field already set.
func (d *Driver) fail(logger *slog.Logger, a *archive.Archive, from stage.Stage, started time.Time, stageErr error) (Result, error) {
	failure := newFailure(from, stageErr)
	st := a.State()
	st.Stage = stage.Error
	st.Error = failure
	st.History = append(st.History, d.historyEntry(from, started, true))

	elapsed := time.Since(started)
	logger.Error(
		"stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldErrorKind, failure.Kind),
		logging.String("fault", failure.Fault),
		logging.String("error_message", failure.Message),
		logging.Duration("stage_duration", elapsed),
		logging.Error(stageErr),
	)

	result := Result{From: from, To: stage.Error, Status: StatusFailed, Duration: elapsed, Failure: failure}
	if err := a.SaveState(); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
		return result, fmt.Errorf("persist stage failure: %w", err)
	}
	return result, nil
}

func newFailure(from stage.Stage, err error) *archive.Failure {
	details := faults.Details(err)
	kind := details.Kind
	if kind == "unknown" {
		kind = "stage_failure"
	}
	failure := &archive.Failure{
		Stage:   from,
		Kind:    kind,
		Fault:   fmt.Sprintf("%T", err),
		Message: strings.TrimSpace(details.Message),
		Data:    serializable(details.Data),
	}

	var pe *panicError
	if errors.As(err, &pe) {
		failure.Kind = "panic"
		failure.Fault = fmt.Sprintf("%T", pe.value)
		failure.Trace = stackLines(pe.stack)
	} else {
		failure.Trace = faults.Chain(err)
	}
	if failure.Message == "" {
		failure.Message = err.Error()
	}
	return failure
}

// serializable replaces values JSON cannot encode with their printed form.
func serializable(data map[string]any) map[string]any {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if _, err := json.Marshal(v); err != nil {
			out[k] = fmt.Sprint(v)
			continue
		}
		out[k] = v
	}
	return out
}

func stackLines(stack []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(stack), "\n") {
		if line = strings.TrimRight(line, " \t"); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func recovered(value any) error {
	return &panicError{value: value, stack: debug.Stack()}
}

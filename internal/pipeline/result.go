package pipeline

import (
	"time"

	"wiffecg/internal/archive"
	"wiffecg/internal/faults"
	"wiffecg/internal/stage"
)

// Status classifies the outcome of one Step.
type Status int

const (
	// StatusAdvanced means more work remains.
	StatusAdvanced Status = iota
	// StatusCompleted means the step reached COMPLETED.
	StatusCompleted
	// StatusFailed means the step moved the record to ERROR.
	StatusFailed
	// StatusNoop means nothing ran.
	StatusNoop
)

func (s Status) String() string {
	switch s {
	case StatusAdvanced:
		return "advanced"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusNoop:
		return "noop"
	default:
		return "unknown"
	}
}

// Result describes one transition.
type Result struct {
	From     stage.Stage
	To       stage.Stage
	Status   Status
	Duration time.Duration
	// Failure is set when Status is StatusFailed.
	Failure *archive.Failure
}

// Err converts a failed result into an error tagged ErrStageFailure.
func (r Result) Err() error {
	if r.Status != StatusFailed {
		return nil
	}
	message := "stage failed"
	stageName := r.From.String()
	if r.Failure != nil {
		message = r.Failure.Message
		stageName = r.Failure.Stage.String()
	}
	return faults.Wrap(faults.ErrStageFailure, stageName, "", message, nil)
}

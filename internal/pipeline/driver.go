package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"wiffecg/internal/archive"
	"wiffecg/internal/faults"
	"wiffecg/internal/interval"
	"wiffecg/internal/logging"
	"wiffecg/internal/stage"
)

// Driver executes pipeline transitions against open archives.
type Driver struct {
	opts   Options
	spans  interval.FrameSpec
	runID  string
	logger *slog.Logger
}

// NewDriver validates opts and converts the interval specification to
// frames with the source's sampling rate.
func NewDriver(opts Options) (*Driver, error) {
	if err := opts.validate(); err != nil {
		return nil, faults.Wrap(faults.ErrConfiguration, "", "pipeline options", "", err)
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Driver{
		opts:   opts,
		spans:  opts.Intervals.ToFrames(opts.Source.SamplingRate()),
		runID:  runID,
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}, nil
}

// RunID identifies this driver's invocation in history and logs.
func (d *Driver) RunID() string { return d.runID }

// Spans returns the interval specification in frames.
func (d *Driver) Spans() interval.FrameSpec { return d.spans }

// Step performs exactly one transition. A stage failure is persisted as
// ERROR and reported through a StatusFailed result, not an error. Step on a
// COMPLETED record is a no-op; Step on an ERROR record fails with
// ErrPipelineAlreadyFailed.
func (d *Driver) Step(ctx context.Context, a *archive.Archive) (Result, error) {
	st := a.State()
	from := st.Stage
	switch from {
	case stage.Error:
		return Result{From: from, To: from, Status: StatusNoop},
			faults.Wrap(faults.ErrPipelineAlreadyFailed, from.String(), "step", a.Path(), nil)
	case stage.Completed:
		return Result{From: from, To: from, Status: StatusNoop}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{From: from, To: from, Status: StatusNoop}, err
	}
	if err := d.checkSource(st); err != nil {
		d.logger.Warn("source rejected",
			logging.String(logging.FieldStage, from.String()),
			logging.String(logging.FieldArchive, a.Path()),
			logging.Error(err),
		)
		return Result{From: from, To: from, Status: StatusNoop}, err
	}

	stageCtx := logging.WithStage(ctx, from.String())
	stageCtx = logging.WithArchive(stageCtx, a.Path())
	stageCtx = logging.WithRunID(stageCtx, d.runID)
	stageLogger := logging.WithContext(stageCtx, d.logger)

	started := time.Now()
	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("stage_label", from.Label()),
		logging.String("outputs", d.opts.Outputs.String()),
	)

	commit, err := d.execute(context.WithoutCancel(stageCtx), from, a)
	if err == nil {
		err = commit()
	}
	if err != nil {
		return d.fail(stageLogger, a, from, started, err)
	}

	next := from.Next(d.opts.Outputs)
	st.Stage = next
	st.History = append(st.History, d.historyEntry(from, started, false))
	if err := a.SaveState(); err != nil {
		stageLogger.Error("failed to persist stage result", logging.Error(err))
		return Result{From: from, To: next, Status: StatusNoop}, fmt.Errorf("persist stage result: %w", err)
	}

	elapsed := time.Since(started)
	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_stage", next.String()),
		logging.Duration("stage_duration", elapsed),
	)

	status := StatusAdvanced
	if next == stage.Completed {
		status = StatusCompleted
	}
	return Result{From: from, To: next, Status: status, Duration: elapsed}, nil
}

// checkSource rejects a source without leads, or one whose leads differ from
// the channels already recorded in st. Nothing is persisted on rejection.
func (d *Driver) checkSource(st *archive.State) error {
	leads := d.opts.Source.Leads()
	if len(leads) == 0 {
		return faults.Wrap(faults.ErrValidation, st.Stage.String(), "check source", "source has no leads", nil)
	}
	if st.Channels != nil && !slices.Equal(st.Channels, leads) {
		return faults.WithData(
			faults.Wrap(faults.ErrValidation, st.Stage.String(), "check source", "source leads differ from the archive", nil),
			map[string]any{"archive": st.Channels, "source": leads},
		)
	}
	return nil
}

func (d *Driver) historyEntry(s stage.Stage, started time.Time, failed bool) archive.HistoryEntry {
	return archive.HistoryEntry{
		Stage:      s,
		StartedAt:  started.UTC(),
		DurationMS: time.Since(started).Milliseconds(),
		RunID:      d.runID,
		Failed:     failed,
	}
}

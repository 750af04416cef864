package pipeline

import (
	"context"
	"errors"

	"wiffecg/internal/archive"
)

// Run opens the archive at path, steps it until a terminal stage (or once
// when opts.Single is set) and always releases the handle. Cancellation is
// honored between stages.
func Run(ctx context.Context, path string, opts Options) (result Result, err error) {
	driver, err := NewDriver(opts)
	if err != nil {
		return Result{}, err
	}
	a, err := archive.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()
	return driver.Drive(ctx, a)
}

// Drive steps an already open archive the way Run does, without closing it.
func (d *Driver) Drive(ctx context.Context, a *archive.Archive) (Result, error) {
	start := a.State().Stage
	result := Result{From: start, To: start, Status: StatusNoop}
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		step, err := d.Step(ctx, a)
		if err != nil {
			return step, err
		}
		result.To = step.To
		result.Status = step.Status
		result.Duration += step.Duration
		result.Failure = step.Failure
		if step.Status != StatusAdvanced || d.opts.Single {
			return result, nil
		}
	}
}

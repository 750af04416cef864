package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"wiffecg/internal/analysis"
	"wiffecg/internal/archive"
	"wiffecg/internal/faults"
	"wiffecg/internal/render"
	"wiffecg/internal/stage"
)

// Auxiliary file names written by the output stages.
const (
	PNGFile = "savepng/waveform.png"
	PDFFile = "savepdf/waveform.pdf"
)

// commitFunc assigns computed results to the record. It runs only after the
// stage work succeeded.
type commitFunc func() error

// execute runs the work for s and recovers panics into errors.
func (d *Driver) execute(ctx context.Context, s stage.Stage, a *archive.Archive) (commit commitFunc, err error) {
	defer func() {
		if r := recover(); r != nil {
			commit = nil
			err = recovered(r)
		}
	}()

	st := a.State()
	switch s {
	case stage.Empty:
		return d.recordChannels(st)
	case stage.Initialized:
		return d.detect(ctx, st)
	case stage.Correlate:
		return d.correlate(ctx, st)
	case stage.KeepKeys:
		return d.keepKeys(ctx, st)
	case stage.RemoveKeys:
		return d.removeKeys(ctx, st)
	case stage.UserFilter:
		return d.userFilter(ctx, st)
	case stage.CalculateRR:
		return d.calculateRR(ctx, st)
	case stage.SavePNG:
		return d.save(ctx, a, d.opts.PNG, PNGFile)
	case stage.SavePDF:
		return d.save(ctx, a, d.opts.PDF, PDFFile)
	default:
		return nil, fmt.Errorf("no work defined for stage %s", s)
	}
}

func (d *Driver) recordChannels(st *archive.State) (commitFunc, error) {
	leads := slices.Clone(d.opts.Source.Leads())
	return func() error {
		st.Channels = leads
		return nil
	}, nil
}

func (d *Driver) detect(ctx context.Context, st *archive.State) (commitFunc, error) {
	if st.Channels == nil {
		return nil, missing(stage.Initialized, "channels")
	}
	potentials, peaks, err := d.opts.Engine.Detect(ctx, d.opts.Source, d.spans.Ignore, d.spans.Noise)
	if err != nil {
		return nil, err
	}
	if potentials == nil {
		potentials = analysis.Potentials{}
	}
	if peaks == nil {
		peaks = analysis.Peaks{}
	}
	return func() error {
		st.Potentials = potentials
		st.Peaks = peaks
		return nil
	}, nil
}

func (d *Driver) correlate(ctx context.Context, st *archive.State) (commitFunc, error) {
	if st.Potentials == nil || st.Peaks == nil {
		return nil, missing(stage.Correlate, "potentials")
	}
	corr, err := d.opts.Engine.Correlate(ctx, st.Channels, st.Potentials, st.Peaks, d.rate())
	if err != nil {
		return nil, err
	}
	if corr.Pairs == nil {
		corr.Pairs = []analysis.Pair{}
	}
	return func() error {
		st.Correlate = &corr
		return nil
	}, nil
}

func (d *Driver) keepKeys(ctx context.Context, st *archive.State) (commitFunc, error) {
	if st.Peaks == nil {
		return nil, missing(stage.KeepKeys, "peaks")
	}
	points, keep, err := d.opts.Engine.KeepKeys(ctx, st.Channels, st.Peaks, d.rate())
	if err != nil {
		return nil, err
	}
	points, keep = frames(points), frames(keep)
	return func() error {
		st.Points = points
		st.Keep = keep
		return nil
	}, nil
}

func (d *Driver) removeKeys(ctx context.Context, st *archive.State) (commitFunc, error) {
	if st.Correlate == nil {
		return nil, missing(stage.RemoveKeys, "correlate")
	}
	if st.Points == nil || st.Keep == nil {
		return nil, missing(stage.RemoveKeys, "keep")
	}
	remove, err := d.opts.Engine.RemoveKeys(ctx, st.Channels, *st.Correlate, st.Points, st.Keep, d.rate())
	if err != nil {
		return nil, err
	}
	remove = frames(remove)
	return func() error {
		st.Remove = remove
		return nil
	}, nil
}

func (d *Driver) userFilter(ctx context.Context, st *archive.State) (commitFunc, error) {
	if st.Remove == nil {
		return nil, missing(stage.UserFilter, "remove")
	}
	filter, err := d.opts.Engine.ValidateUserFilter(ctx, d.opts.UserFilter, st.Points, st.Keep, st.Remove)
	if err != nil {
		return nil, err
	}
	filter.Keep, filter.Remove = frames(filter.Keep), frames(filter.Remove)
	return func() error {
		st.UserFilter = &filter
		return nil
	}, nil
}

func (d *Driver) calculateRR(ctx context.Context, st *archive.State) (commitFunc, error) {
	if st.UserFilter == nil {
		return nil, missing(stage.CalculateRR, "user_filter")
	}
	rr, err := d.opts.Engine.CalculateRR(ctx, st.Keep, st.Remove, *st.UserFilter, d.spans, analysis.RRParams{
		SamplingRate: d.rate(),
		MinMS:        d.opts.RRMinMS,
		MaxMS:        d.opts.RRMaxMS,
	})
	if err != nil {
		return nil, err
	}
	rr.Beats = frames(rr.Beats)
	if rr.Intervals == nil {
		rr.Intervals = []analysis.RRInterval{}
	}
	if rr.Segments == nil {
		rr.Segments = []analysis.Segment{}
	}
	return func() error {
		st.RR = &rr
		return nil
	}, nil
}

func (d *Driver) save(ctx context.Context, a *archive.Archive, renderer render.Renderer, name string) (commitFunc, error) {
	st := a.State()
	if st.RR == nil {
		return nil, missing(st.Stage, "rr")
	}
	if renderer == nil {
		return nil, faults.Wrap(faults.ErrConfiguration, st.Stage.String(), "render", "no renderer configured for "+name, nil)
	}
	reader, err := d.opts.Source.Frames(ctx)
	if err != nil {
		return nil, fmt.Errorf("open frame stream: %w", err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	err = renderer.Render(ctx, &buf, render.Document{
		Title:        d.opts.Title,
		Leads:        st.Channels,
		SamplingRate: d.rate(),
		Layout:       d.opts.Layout,
		Frames:       reader,
		Marks:        st.RR.Beats,
	})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	data := buf.Bytes()
	return func() error {
		if err := a.WriteFile(name, data); err != nil {
			return err
		}
		if !st.HasOutput(name) {
			st.Outputs = append(st.Outputs, name)
		}
		return nil
	}, nil
}

func (d *Driver) rate() float64 { return d.opts.Source.SamplingRate() }

func missing(s stage.Stage, field string) error {
	return faults.Wrap(faults.ErrStageFailure, s.String(), "load prior results", fmt.Sprintf("%s has not been recorded", field), nil)
}

func frames(v []int64) []int64 {
	if v == nil {
		return []int64{}
	}
	return v
}

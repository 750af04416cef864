package pipeline_test

import (
	"context"
	"io"

	"wiffecg/internal/analysis"
	"wiffecg/internal/interval"
	"wiffecg/internal/render"
	"wiffecg/internal/signal"
)

// fakeEngine returns fixed results and records every call.
type fakeEngine struct {
	calls  []string
	ignore []interval.Frames
	noise  []interval.Frames
	spans  interval.FrameSpec
	filter analysis.UserFilter

	failOn  string
	failErr error
	panicOn string
}

func (e *fakeEngine) enter(name string) error {
	e.calls = append(e.calls, name)
	if e.panicOn == name {
		panic("engine exploded in " + name)
	}
	if e.failOn == name {
		return e.failErr
	}
	return nil
}

func (e *fakeEngine) Detect(_ context.Context, src signal.Source, ignore, noise []interval.Frames) (analysis.Potentials, analysis.Peaks, error) {
	if err := e.enter("detect"); err != nil {
		return nil, nil, err
	}
	e.ignore, e.noise = ignore, noise
	potentials := analysis.Potentials{}
	peaks := analysis.Peaks{}
	for _, lead := range src.Leads() {
		potentials[lead] = []analysis.Candidate{{Frame: 150, Value: 1}, {Frame: 550, Value: 0.9}, {Frame: 950, Value: 1}}
		peaks[lead] = []int64{150, 550, 950}
	}
	return potentials, peaks, nil
}

func (e *fakeEngine) Correlate(_ context.Context, channels []string, _ analysis.Potentials, _ analysis.Peaks, _ float64) (analysis.Correlation, error) {
	if err := e.enter("correlate"); err != nil {
		return analysis.Correlation{}, err
	}
	return analysis.Correlation{Pairs: []analysis.Pair{{A: channels[0], B: channels[1], Score: 1, Matched: 3}}}, nil
}

func (e *fakeEngine) KeepKeys(_ context.Context, _ []string, _ analysis.Peaks, _ float64) ([]int64, []int64, error) {
	if err := e.enter("keepkeys"); err != nil {
		return nil, nil, err
	}
	return []int64{150, 550, 950}, []int64{150, 550, 950}, nil
}

func (e *fakeEngine) RemoveKeys(_ context.Context, _ []string, _ analysis.Correlation, _, _ []int64, _ float64) ([]int64, error) {
	if err := e.enter("removekeys"); err != nil {
		return nil, err
	}
	return nil, nil
}

func (e *fakeEngine) ValidateUserFilter(_ context.Context, filter analysis.UserFilter, _, _, _ []int64) (analysis.UserFilter, error) {
	if err := e.enter("userfilter"); err != nil {
		return analysis.UserFilter{}, err
	}
	e.filter = filter
	return filter, nil
}

func (e *fakeEngine) CalculateRR(_ context.Context, keep, _ []int64, _ analysis.UserFilter, spans interval.FrameSpec, params analysis.RRParams) (analysis.RRResult, error) {
	if err := e.enter("calculaterr"); err != nil {
		return analysis.RRResult{}, err
	}
	e.spans = spans
	result := analysis.RRResult{Beats: keep}
	for i := 1; i < len(keep); i++ {
		ms := float64(keep[i]-keep[i-1]) * 1000 / params.SamplingRate
		result.Intervals = append(result.Intervals, analysis.RRInterval{Start: keep[i-1], Stop: keep[i], Milliseconds: ms})
	}
	result.Segments = []analysis.Segment{{Label: analysis.SegmentAll, Count: len(result.Intervals), MeanMS: 800}}
	return result, nil
}

// fakeRenderer writes a fixed payload after draining the frame stream.
type fakeRenderer struct {
	payload string
	frames  int
	marks   []int64
	err     error
}

func (r *fakeRenderer) Render(_ context.Context, w io.Writer, doc render.Document) error {
	if r.err != nil {
		return r.err
	}
	r.frames = 0
	for {
		if _, err := doc.Frames.Next(); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		r.frames++
	}
	r.marks = doc.Marks
	_, err := io.WriteString(w, r.payload)
	return err
}

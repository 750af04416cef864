package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"wiffecg/internal/analysis"
	"wiffecg/internal/config"
	"wiffecg/internal/interval"
	"wiffecg/internal/render"
	"wiffecg/internal/signal"
	"wiffecg/internal/stage"
)

// Options carries everything a pipeline invocation needs. Intervals, the
// user filter and the output selection are not persisted; callers supply the
// same values on every invocation.
type Options struct {
	Source signal.Source
	Engine analysis.Engine
	PNG    render.Renderer
	PDF    render.Renderer

	Intervals  interval.Spec
	UserFilter analysis.UserFilter
	Outputs    stage.OutputSet

	RRMinMS float64
	RRMaxMS float64
	Layout  render.Layout
	Title   string

	Logger *slog.Logger
	// RunID tags history entries and log lines. Generated when empty.
	RunID string
	// Single makes Run perform at most one transition.
	Single bool
}

// OptionsFromConfig fills the engine, renderers, bounds, layout and output
// selection from cfg. Source, intervals and the user filter stay empty.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Engine: analysis.NewDetector(analysis.Params{
			Threshold:        cfg.Detection.Threshold,
			RefractoryMS:     float64(cfg.Detection.RefractoryMS),
			MatchToleranceMS: float64(cfg.Detection.MatchToleranceMS),
			MinAgreement:     cfg.Detection.MinAgreement,
		}),
		PNG:     render.NewPNG(cfg.Export.PNGWidth, cfg.Export.PNGHeight),
		PDF:     render.NewPDF(),
		Outputs: stage.OutputsFromFlags(cfg.Outputs.SavePNG, cfg.Outputs.SavePDF),
		RRMinMS: float64(cfg.RR.MinMS),
		RRMaxMS: float64(cfg.RR.MaxMS),
		Layout: render.Layout{
			PageWidthMM: cfg.Export.PageWidthMM,
			SpeedMMSec:  cfg.Export.SpeedMMSec,
		},
	}
}

func (o Options) validate() error {
	if o.Source == nil {
		return errors.New("signal source is required")
	}
	if o.Engine == nil {
		return errors.New("analysis engine is required")
	}
	if o.Source.SamplingRate() <= 0 {
		return fmt.Errorf("source sampling rate %g must be positive", o.Source.SamplingRate())
	}
	if o.Outputs.Has(stage.OutputPNG) && o.PNG == nil {
		return errors.New("png output selected without a png renderer")
	}
	if o.Outputs.Has(stage.OutputPDF) && o.PDF == nil {
		return errors.New("pdf output selected without a pdf renderer")
	}
	if o.Outputs != 0 && (o.Layout.PageWidthMM <= 0 || o.Layout.SpeedMMSec <= 0) {
		return errors.New("render layout needs a positive page width and speed")
	}
	if o.RRMinMS < 0 || o.RRMaxMS <= o.RRMinMS {
		return fmt.Errorf("R-R bounds %g..%g are invalid", o.RRMinMS, o.RRMaxMS)
	}
	return o.Intervals.Validate()
}

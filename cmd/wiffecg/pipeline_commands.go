package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"wiffecg/internal/analysis"
	"wiffecg/internal/interval"
	"wiffecg/internal/logging"
	"wiffecg/internal/pipeline"
	"wiffecg/internal/preflight"
	"wiffecg/internal/signal"
	"wiffecg/internal/stage"
)

// pipelineFlags holds the per-invocation inputs that are never persisted.
// Every invocation against an archive must repeat them.
type pipelineFlags struct {
	user   []string
	noise  []string
	ignore []string
	keep   []int64
	remove []int64
	png    bool
	pdf    bool
	title  string
	json   bool
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringArrayVar(&f.user, "user", nil, "Named interval label=start-stop in seconds (repeatable)")
	flags.StringArrayVar(&f.noise, "noise", nil, "Noise interval start-stop in seconds (repeatable)")
	flags.StringArrayVar(&f.ignore, "ignore", nil, "Ignored interval start-stop in seconds (repeatable)")
	flags.Int64SliceVar(&f.keep, "keep", nil, "Canonical beat frames to force in")
	flags.Int64SliceVar(&f.remove, "remove", nil, "Canonical beat frames to force out")
	flags.BoolVar(&f.png, "png", false, "Render the PNG waveform stage")
	flags.BoolVar(&f.pdf, "pdf", false, "Render the PDF waveform stage")
	flags.StringVar(&f.title, "title", "", "Title drawn on rendered pages")
	flags.BoolVar(&f.json, "json", false, "Emit the result as JSON")
}

func (f *pipelineFlags) intervals() (interval.Spec, error) {
	var spec interval.Spec
	for _, value := range f.user {
		named, err := interval.ParseNamed(value)
		if err != nil {
			return spec, fmt.Errorf("--user: %w", err)
		}
		spec.User = append(spec.User, named)
	}
	for _, value := range f.noise {
		r, err := interval.Parse(value)
		if err != nil {
			return spec, fmt.Errorf("--noise: %w", err)
		}
		spec.Noise = append(spec.Noise, r)
	}
	for _, value := range f.ignore {
		r, err := interval.Parse(value)
		if err != nil {
			return spec, fmt.Errorf("--ignore: %w", err)
		}
		spec.Ignore = append(spec.Ignore, r)
	}
	return spec, spec.Validate()
}

// outputs starts from the configured selection; explicit flags win.
func (f *pipelineFlags) outputs(cmd *cobra.Command, configured stage.OutputSet) stage.OutputSet {
	png := configured.Has(stage.OutputPNG)
	pdf := configured.Has(stage.OutputPDF)
	if cmd.Flags().Changed("png") {
		png = f.png
	}
	if cmd.Flags().Changed("pdf") {
		pdf = f.pdf
	}
	return stage.OutputsFromFlags(png, pdf)
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	flags := &pipelineFlags{}
	cmd := &cobra.Command{
		Use:   "run <recording> [archive]",
		Short: "Process a recording until its archive completes or fails",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, ctx, flags, args, false)
		},
	}
	flags.register(cmd)
	return cmd
}

func newStepCommand(ctx *commandContext) *cobra.Command {
	flags := &pipelineFlags{}
	cmd := &cobra.Command{
		Use:   "step <recording> [archive]",
		Short: "Advance an archive by exactly one stage",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, ctx, flags, args, true)
		},
	}
	flags.register(cmd)
	return cmd
}

func runPipeline(cmd *cobra.Command, ctx *commandContext, flags *pipelineFlags, args []string, single bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	spec, err := flags.intervals()
	if err != nil {
		return err
	}
	archivePath, err := archiveFor(cfg, args[0], args[1:])
	if err != nil {
		return err
	}

	results := preflight.RunAll(cfg, archivePath)
	if err := preflight.Failed(results); err != nil {
		return err
	}

	return ctx.withRecording(cmd.Context(), args[0], func(_ *signal.Store, rec *signal.Recording) error {
		opts := pipeline.OptionsFromConfig(cfg)
		opts.Source = rec
		opts.Intervals = spec
		opts.UserFilter = analysis.UserFilter{Keep: flags.keep, Remove: flags.remove}
		opts.Outputs = flags.outputs(cmd, opts.Outputs)
		opts.Title = strings.TrimSpace(flags.title)
		if opts.Title == "" {
			opts.Title = rec.Description()
		}
		opts.Logger = logger
		opts.Single = single

		logger.Info("pipeline invocation",
			logging.String(logging.FieldEventType, "pipeline_invoke"),
			logging.String("archive", archivePath),
			logging.String("outputs", opts.Outputs.String()),
			logging.Float64("sampling_rate", rec.SamplingRate()),
			logging.Int("leads", len(rec.Leads())),
			logging.Bool("single", single),
		)

		result, err := pipeline.Run(cmd.Context(), archivePath, opts)
		if err != nil {
			return err
		}
		if flags.json {
			if err := writeJSON(cmd, resultView(archivePath, result)); err != nil {
				return err
			}
		} else {
			printResult(cmd.OutOrStdout(), archivePath, result, shouldColorize(cmd.OutOrStdout()))
		}
		return result.Err()
	})
}

type resultJSON struct {
	Archive    string `json:"archive"`
	From       string `json:"from"`
	To         string `json:"to"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func resultView(archivePath string, result pipeline.Result) resultJSON {
	view := resultJSON{
		Archive:    archivePath,
		From:       result.From.String(),
		To:         result.To.String(),
		Status:     result.Status.String(),
		DurationMS: result.Duration.Milliseconds(),
	}
	if result.Failure != nil {
		view.Error = result.Failure.Message
	}
	return view
}

func printResult(out io.Writer, archivePath string, result pipeline.Result, colorize bool) {
	kind := statusOK
	message := fmt.Sprintf("%s -> %s", result.From, result.To)
	switch result.Status {
	case pipeline.StatusFailed:
		kind = statusError
		if result.Failure != nil {
			message = fmt.Sprintf("%s failed: %s", result.Failure.Stage, result.Failure.Message)
		}
	case pipeline.StatusAdvanced:
		kind = statusWarn
		message += fmt.Sprintf(" (next: %s)", result.To.Label())
	case pipeline.StatusNoop:
		kind = statusInfo
		message = fmt.Sprintf("already %s", result.To)
	}
	fmt.Fprintln(out, renderStatusLine("Archive", statusInfo, archivePath, colorize))
	fmt.Fprintln(out, renderStatusLine("Result", kind, message, colorize))
	if result.Duration > 0 {
		fmt.Fprintln(out, renderStatusLine("Elapsed", statusInfo, formatDuration(result.Duration), colorize))
	}
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"wiffecg/internal/archive"
	"wiffecg/internal/config"
	"wiffecg/internal/faults"
	"wiffecg/internal/fileutil"
	"wiffecg/internal/logging"
	"wiffecg/internal/render"
	"wiffecg/internal/signal"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <recording>",
		Short: "Check that a recording is a single six-lead ECG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			err := ctx.withRecording(cmd.Context(), args[0], func(store *signal.Store, rec *signal.Recording) error {
				frames, err := rec.FrameCount(cmd.Context())
				if err != nil {
					return err
				}
				duration, err := rec.Duration(cmd.Context())
				if err != nil {
					return err
				}
				labels := make([]string, 0, len(rec.Leads()))
				for _, lead := range rec.Leads() {
					labels = append(labels, signal.LeadLabel(lead))
				}
				fmt.Fprintln(out, renderStatusLine("Recording", statusOK, store.Path(), colorize))
				if desc := strings.TrimSpace(rec.Description()); desc != "" {
					fmt.Fprintln(out, renderStatusLine("Description", statusInfo, desc, colorize))
				}
				fmt.Fprintln(out, renderStatusLine("Leads", statusInfo, strings.Join(labels, ", "), colorize))
				fmt.Fprintln(out, renderStatusLine("Rate", statusInfo, formatRate(rec.SamplingRate()), colorize))
				fmt.Fprintln(out, renderStatusLine("Frames", statusInfo, formatCount(frames), colorize))
				fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, formatDuration(duration), colorize))
				fmt.Fprintln(out, "Recording valid")
				return nil
			})
			if err != nil && errors.Is(err, faults.ErrValidation) {
				fmt.Fprintln(out, renderStatusLine("Recording", statusError, faults.Details(err).Message, colorize))
			}
			return err
		},
	}
}

func newImportCSVCommand(ctx *commandContext) *cobra.Command {
	var rate float64
	var description string

	cmd := &cobra.Command{
		Use:   "import-csv <input.csv> <recording>",
		Short: "Convert a CSV device export into a recording store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			src, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			dst, err := config.ExpandPath(args[1])
			if err != nil {
				return err
			}
			file, err := os.Open(src)
			if err != nil {
				return fmt.Errorf("open csv: %w", err)
			}
			defer file.Close()

			summary, err := signal.ImportCSV(cmd.Context(), file, dst, signal.ImportOptions{
				SamplingRate: rate,
				Description:  description,
			})
			if err != nil {
				return err
			}
			logger.Info("csv imported",
				logging.String(logging.FieldEventType, "csv_import"),
				logging.String("source", src),
				logging.String("recording", dst),
				logging.Int64("frames", summary.Frames),
			)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %s frames across %d leads at %s into %s\n",
				formatCount(summary.Frames), len(summary.Leads), formatRate(summary.SamplingRate), dst)
			return nil
		},
	}
	cmd.Flags().Float64Var(&rate, "rate", 0, "Sampling rate in Hz (overrides the sampling_rate meta line)")
	cmd.Flags().StringVar(&description, "description", "", "Recording description")
	return cmd
}

func newExportPDFCommand(ctx *commandContext) *cobra.Command {
	var archiveName string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "export-pdf <recording> <output.pdf>",
		Short: "Render every page of a recording to PDF",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target, err := config.ExpandPath(args[1])
			if err != nil {
				return err
			}
			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("output %s already exists (use --overwrite to replace it)", target)
				}
			}

			var marks []int64
			if strings.TrimSpace(archiveName) != "" {
				path, err := cfg.ResolveArchive(archiveName)
				if err != nil {
					return err
				}
				st, _, err := archive.Inspect(path)
				if err != nil {
					return err
				}
				if st.RR != nil {
					marks = st.RR.Beats
				}
			}

			layout := render.Layout{PageWidthMM: cfg.Export.PageWidthMM, SpeedMMSec: cfg.Export.SpeedMMSec}
			return ctx.withRecording(cmd.Context(), args[0], func(_ *signal.Store, rec *signal.Recording) error {
				err := fileutil.WriteAtomic(target, 0o644, func(w io.Writer) error {
					return render.ExportPDF(cmd.Context(), rec, w, layout, marks)
				})
				if err != nil {
					return fmt.Errorf("export pdf: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d beat marks)\n", target, len(marks))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&archiveName, "archive", "", "Archive whose R-R beats are marked on the pages")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing output file")
	return cmd
}

package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"wiffecg/internal/archive"
	"wiffecg/internal/signal"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status <archive>",
		Short: "Show the persisted stage, results and history of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := cfg.ResolveArchive(args[0])
			if err != nil {
				return err
			}
			st, files, err := archive.Inspect(path)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, map[string]any{"archive": path, "state": st, "files": files})
			}
			out := cmd.OutOrStdout()
			writeStatus(out, statusLines(path, st, files, shouldColorize(out)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the state record as JSON")
	return cmd
}

func statusLines(path string, st *archive.State, files []archive.FileInfo, colorize bool) []string {
	var lines []string
	lines = append(lines, renderSectionHeader("Archive", colorize)...)
	lines = append(lines, renderStatusLine("Path", statusInfo, path, colorize))
	kind, message := stageStatus(st.Stage)
	lines = append(lines, renderStatusLine("Stage", kind, message, colorize))
	lines = append(lines, renderStatusLine("Archive ID", statusInfo, st.ArchiveID, colorize))
	lines = append(lines, renderStatusLine("Created", statusInfo, formatWhen(st.CreatedAt), colorize))
	lines = append(lines, renderStatusLine("Updated", statusInfo, formatWhen(st.UpdatedAt), colorize))
	if st.Channels != nil {
		labels := make([]string, len(st.Channels))
		for i, ch := range st.Channels {
			labels[i] = signal.LeadLabel(ch)
		}
		lines = append(lines, renderStatusLine("Channels", statusInfo, strings.Join(labels, ", "), colorize))
	}
	if st.Points != nil {
		lines = append(lines, renderStatusLine("Beats", statusInfo,
			fmt.Sprintf("%s canonical, %s kept", formatCount(int64(len(st.Points))), formatCount(int64(len(st.Keep)))), colorize))
	}
	if st.Remove != nil {
		lines = append(lines, renderStatusLine("Removed", statusInfo, formatCount(int64(len(st.Remove))), colorize))
	}
	if st.Correlate != nil {
		lines = append(lines, renderStatusLine("Correlation", statusInfo,
			fmt.Sprintf("%.3f mean over %d pairs", st.Correlate.MeanScore(), len(st.Correlate.Pairs)), colorize))
	}

	if st.Error != nil {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Failure", colorize)...)
		lines = append(lines, renderStatusLine("Stage", statusError, st.Error.Stage.String(), colorize))
		lines = append(lines, renderStatusLine("Kind", statusError, st.Error.Kind, colorize))
		lines = append(lines, renderStatusLine("Message", statusError, st.Error.Message, colorize))
		for _, key := range slices.Sorted(maps.Keys(st.Error.Data)) {
			lines = append(lines, renderStatusLine(key, statusInfo, fmt.Sprint(st.Error.Data[key]), colorize))
		}
	}

	if st.RR != nil && len(st.RR.Segments) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("R-R intervals", colorize)...)
		rows := make([][]string, 0, len(st.RR.Segments))
		for _, seg := range st.RR.Segments {
			rows = append(rows, []string{
				seg.Label,
				formatCount(int64(seg.Count)),
				formatMS(seg.MeanMS),
				formatMS(seg.SDNNMS),
				formatMS(seg.RMSSDMS),
				formatMS(seg.MinMS),
				formatMS(seg.MaxMS),
				formatMS(seg.HeartRate),
			})
		}
		lines = append(lines, renderTable(
			[]string{"Segment", "Count", "Mean ms", "SDNN ms", "RMSSD ms", "Min ms", "Max ms", "HR bpm"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
		))
		if st.RR.Rejected > 0 {
			lines = append(lines, renderStatusLine("Rejected", statusWarn,
				fmt.Sprintf("%s intervals outside bounds", formatCount(int64(st.RR.Rejected))), colorize))
		}
	}

	if len(files) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Files", colorize)...)
		rows := make([][]string, 0, len(files))
		for _, f := range files {
			rows = append(rows, []string{f.Name, formatBytes(f.Size)})
		}
		lines = append(lines, renderTable([]string{"Name", "Size"}, rows, []columnAlignment{alignLeft, alignRight}))
	}

	if len(st.History) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("History", colorize)...)
		rows := make([][]string, 0, len(st.History))
		for _, h := range st.History {
			outcome := "ok"
			if h.Failed {
				outcome = "failed"
			}
			rows = append(rows, []string{
				h.Stage.String(),
				outcome,
				h.StartedAt.Local().Format("2006-01-02 15:04:05"),
				formatCount(h.DurationMS) + " ms",
				shortRunID(h.RunID),
			})
		}
		lines = append(lines, renderTable(
			[]string{"Stage", "Outcome", "Started", "Duration", "Run"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		))
	}
	return lines
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeStatus(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}

package main

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"wiffecg/internal/analysis"
	"wiffecg/internal/archive"
	"wiffecg/internal/stage"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Stage", statusError, "ERROR", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Stage:", "[ERROR] ERROR")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Stage", statusOK, "COMPLETED", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestStageStatus(t *testing.T) {
	tests := []struct {
		stage stage.Stage
		kind  statusKind
		text  string
	}{
		{stage.Completed, statusOK, "COMPLETED"},
		{stage.Error, statusError, "ERROR"},
		{stage.KeepKeys, statusWarn, "KEEPKEYS (next work: Keep keys)"},
	}
	for _, tt := range tests {
		kind, text := stageStatus(tt.stage)
		if kind != tt.kind || text != tt.text {
			t.Fatalf("%s: expected (%d, %q), got (%d, %q)", tt.stage, tt.kind, tt.text, kind, text)
		}
	}
}

func TestStatusLinesForFailedArchive(t *testing.T) {
	st := &archive.State{
		Stage:     stage.Error,
		ArchiveID: "id",
		UpdatedAt: time.Now(),
		Channels:  []string{"Lead I", "Lead II"},
		Points:    []int64{10, 20, 30},
		Keep:      []int64{10, 20},
		Error: &archive.Failure{
			Stage:   stage.Correlate,
			Kind:    "stage_failure",
			Message: "leads disagree",
			Data:    map[string]any{"zeta": 1, "alpha": "x"},
		},
		History: []archive.HistoryEntry{
			{Stage: stage.Empty, StartedAt: time.Now(), DurationMS: 1234, RunID: "0123456789abcdef"},
			{Stage: stage.Initialized, StartedAt: time.Now(), DurationMS: 5, RunID: "0123456789abcdef", Failed: true},
		},
	}
	out := strings.Join(statusLines("/tmp/a.zip", st, nil, false), "\n")
	for _, want := range []string{"[ERROR] ERROR", "I, II", "3 canonical, 2 kept", "leads disagree", "1,234 ms", "01234567", "failed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
	if strings.Index(out, "alpha") > strings.Index(out, "zeta") {
		t.Fatalf("expected diagnostic data keys sorted:\n%s", out)
	}
	if strings.Contains(out, "R-R intervals") {
		t.Fatalf("expected no R-R section without results")
	}
}

func TestStatusLinesShowSegments(t *testing.T) {
	st := &archive.State{
		Stage: stage.Completed,
		RR: &analysis.RRResult{
			Segments: []analysis.Segment{{Label: "all", Count: 1200, MeanMS: 812.4, HeartRate: 73.9}},
			Rejected: 2,
		},
	}
	files := []archive.FileInfo{{Name: "savepdf/waveform.pdf", Size: 2048}}
	out := strings.Join(statusLines("a.zip", st, files, false), "\n")
	for _, want := range []string{"1,200", "812.4", "73.9", "2 intervals outside bounds", "2.0 KiB", "savepdf/waveform.pdf"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestFormatCountGroupsThousands(t *testing.T) {
	if got := formatCount(1234567); got != "1,234,567" {
		t.Fatalf("expected grouped digits, got %q", got)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

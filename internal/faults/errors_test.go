package faults_test

import (
	"errors"
	"strings"
	"testing"

	"wiffecg/internal/faults"
)

type diagErr struct{}

func (diagErr) Error() string { return "bad lead" }

func (diagErr) DiagnosticData() map[string]any { return map[string]any{"lead": "II"} }

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := faults.Wrap(faults.ErrStageFailure, "correlate", "engine", "failed", base)
	if !errors.Is(err, faults.ErrStageFailure) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"correlate", "engine", "failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := faults.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, faults.ErrStageFailure) {
		t.Fatalf("expected default stage failure marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "failure") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestDetailsFromWrappedError(t *testing.T) {
	err := faults.Wrap(faults.ErrValidation, "source", "validate", "lead not acceptable", diagErr{})
	details := faults.Details(err)
	if details.Kind != "validation" {
		t.Fatalf("expected validation kind, got %q", details.Kind)
	}
	if details.Operation != "validate" || details.Stage != "source" {
		t.Fatalf("unexpected context %+v", details)
	}
	if details.Message != "lead not acceptable" {
		t.Fatalf("unexpected message %q", details.Message)
	}
	if details.Data["lead"] != "II" {
		t.Fatalf("expected diagnostic data, got %#v", details.Data)
	}
}

func TestDetailsFromPlainError(t *testing.T) {
	details := faults.Details(errors.New("plain"))
	if details.Kind != "unknown" || details.Message != "plain" {
		t.Fatalf("unexpected details %+v", details)
	}
	if got := faults.Details(nil); got.Kind != "" {
		t.Fatalf("expected empty details for nil, got %+v", got)
	}
}

func TestChainListsWrappedErrors(t *testing.T) {
	base := errors.New("disk full")
	err := faults.Wrap(faults.ErrCorruptArchive, "archive", "save", "", base)
	chain := faults.Chain(err)
	if len(chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d: %v", len(chain), chain)
	}
	if !strings.Contains(chain[len(chain)-1], "disk full") {
		t.Fatalf("expected base error last, got %v", chain)
	}
}

func TestWithDataExposesDiagnostics(t *testing.T) {
	if faults.WithData(nil, map[string]any{"x": 1}) != nil {
		t.Fatal("expected nil for nil error")
	}
	err := faults.WithData(faults.Wrap(faults.ErrValidation, "USERFILTER", "validate", "unknown point", nil), map[string]any{"frames": []int64{7}})
	if !errors.Is(err, faults.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	details := faults.Details(err)
	if details.Kind != "validation" || details.Message != "unknown point" {
		t.Fatalf("unexpected details %+v", details)
	}
	if _, ok := details.Data["frames"]; !ok {
		t.Fatalf("expected frames diagnostic, got %#v", details.Data)
	}
}

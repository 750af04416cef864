package preflight

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wiffecg/internal/config"
	"wiffecg/internal/faults"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 0); !result.Passed {
		t.Fatalf("expected zero requirement to pass, got %s", result.Detail)
	}
	result := CheckFreeSpace("space", dir, math.MaxUint64/(1024*1024))
	if result.Passed {
		t.Fatal("expected absurd requirement to fail")
	}
	if !strings.Contains(result.Detail, "need") {
		t.Fatalf("expected detail to mention requirement, got %q", result.Detail)
	}
	if missing := CheckFreeSpace("space", filepath.Join(dir, "nope"), 1); missing.Passed {
		t.Fatal("expected missing path to fail")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(nil, ""); results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}

func TestRunAll_ChecksArchiveTarget(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ArchiveDir = filepath.Join(base, "archives")
	cfg.Preflight.MinFreeMiB = 1
	for _, dir := range []string{cfg.Paths.LogDir, cfg.Paths.ArchiveDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	results := RunAll(&cfg, filepath.Join(base, "elsewhere", "a.zip"))
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %+v", results)
	}
	err := Failed(results)
	if !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing target dir, got %v", err)
	}
	if !strings.Contains(err.Error(), "Target directory") {
		t.Fatalf("expected failing check name in error, got %v", err)
	}

	inDir := RunAll(&cfg, filepath.Join(cfg.Paths.ArchiveDir, "a.zip"))
	if len(inDir) != 3 {
		t.Fatalf("expected target check folded into archive dir, got %+v", inDir)
	}
	if err := Failed(inDir); err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
}

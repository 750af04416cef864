package fileutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomicReplacesContent(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.bin")
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := WriteFileAtomic(dst, []byte("new content"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new content" {
		t.Fatalf("content mismatch: got %q", got)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600, got %v", info.Mode().Perm())
	}
}

func TestWriteAtomicKeepsOriginalOnFailure(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.bin")
	if err := os.WriteFile(dst, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := WriteAtomic(dst, 0o644, func(w io.Writer) error {
		if _, err := w.Write([]byte("partial")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "original" {
		t.Fatalf("original content lost: %q", got)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp file cleanup, found %d entries", len(entries))
	}
}

func TestWriteAtomicCreatesMissingFile(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "fresh.txt")
	if err := WriteFileAtomic(dst, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
}

func TestWriteAtomicIgnoresDirectorySyncFailure(t *testing.T) {
	orig := openDir
	openDir = func(string) (*os.File, error) { return nil, errors.New("directory unavailable") }
	t.Cleanup(func() { openDir = orig })

	dst := filepath.Join(t.TempDir(), "state.json")
	if err := WriteFileAtomic(dst, []byte("{}"), 0o644); err != nil {
		t.Fatalf("expected success once the rename landed, got %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "{}" {
		t.Fatalf("content mismatch: got %q", got)
	}
}

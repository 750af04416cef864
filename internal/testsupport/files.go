package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile plants size bytes of filler at path, creating parent
// directories. Used for files that must exist but parse as neither an
// archive nor a recording.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{'B'}, int(max(size, 1))), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

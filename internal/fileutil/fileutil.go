package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic writes dst by streaming fn into a temporary file in the same
// directory, syncing it, then renaming it over dst. Readers observe either
// the previous content or the new content, never a partial file.
func WriteAtomic(dst string, mode os.FileMode, fn func(w io.Writer) error) (err error) {
	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err = fn(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("replace %s: %w", dst, err)
	}
	syncDir(dir)
	return nil
}

// WriteFileAtomic is WriteAtomic for an in-memory payload.
func WriteFileAtomic(dst string, data []byte, mode os.FileMode) error {
	return WriteAtomic(dst, mode, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// openDir is swapped in tests.
var openDir = os.Open

// syncDir flushes the rename to disk. The rename has already replaced dst,
// so failures here are not reported; some filesystems reject fsync on
// directories.
func syncDir(dir string) {
	d, err := openDir(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

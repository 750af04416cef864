package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

func failed(name, path, format string, args ...any) Result {
	return Result{Name: name, Detail: path + " (error: " + fmt.Sprintf(format, args...) + ")"}
}

// CheckDirectoryAccess passes when path is a directory the current user can
// list, create files in and traverse.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return failed(name, path, "does not exist")
	case err != nil:
		return failed(name, path, "stat: %v", err)
	case !info.IsDir():
		return failed(name, path, "is not a directory")
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return failed(name, path, "insufficient permissions: %v", err)
	}
	return Result{Name: name, Passed: true, Detail: path + " (read/write ok)"}
}

// CheckFreeSpace passes when the filesystem holding path has at least minMiB
// mebibytes available to unprivileged users.
func CheckFreeSpace(name, path string, minMiB uint64) Result {
	free, err := FreeBytes(path)
	if err != nil {
		return failed(name, path, "statfs: %v", err)
	}
	if need := minMiB << 20; free < need {
		return failed(name, path, "%s free, need %s", humanize.IBytes(free), humanize.IBytes(need))
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s free)", path, humanize.IBytes(free))}
}

// FreeBytes reports the bytes available to unprivileged users on the
// filesystem holding path.
func FreeBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}

package preflight

import (
	"fmt"
	"path/filepath"
	"strings"

	"wiffecg/internal/config"
	"wiffecg/internal/faults"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks for writing archivePath. An empty archivePath
// checks only the configured directories.
func RunAll(cfg *config.Config, archivePath string) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Archive directory", cfg.Paths.ArchiveDir),
	}
	if archivePath == "" {
		return results
	}
	target := filepath.Dir(archivePath)
	if target != filepath.Clean(cfg.Paths.ArchiveDir) {
		results = append(results, CheckDirectoryAccess("Target directory", target))
	}
	if cfg.Preflight.MinFreeMiB > 0 {
		results = append(results, CheckFreeSpace("Free space", target, uint64(cfg.Preflight.MinFreeMiB)))
	}
	return results
}

// Failed joins the details of every failed result into one configuration
// error. It returns nil when all checks passed.
func Failed(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return faults.Wrap(faults.ErrConfiguration, "", "preflight", strings.Join(failed, "; "), nil)
}

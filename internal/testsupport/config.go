package testsupport

import (
	"path/filepath"
	"testing"

	"wiffecg/internal/config"
)

// ConfigOption adjusts the configuration built by NewConfig.
type ConfigOption func(*config.Config)

// NewConfig returns defaults rooted in a fresh temp directory: logs and
// archives live under it and the free-space check is disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.ArchiveDir = filepath.Join(root, "archives")
	cfg.Preflight.MinFreeMiB = 0
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithOutputs selects the optional render stages.
func WithOutputs(savePNG, savePDF bool) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Outputs.SavePNG, cfg.Outputs.SavePDF = savePNG, savePDF
	}
}

// WithExport shrinks the rendered page so tests stay fast.
func WithExport(pageWidthMM, speedMMSec float64, pngWidth, pngHeight int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Export.PageWidthMM = pageWidthMM
		cfg.Export.SpeedMMSec = speedMMSec
		cfg.Export.PNGWidth = pngWidth
		cfg.Export.PNGHeight = pngHeight
	}
}

// BaseDir returns the temp root behind a config built by NewConfig.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ArchiveDir)
}

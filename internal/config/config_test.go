package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"wiffecg/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogs := filepath.Join(tempHome, ".local", "share", "wiffecg", "logs")
	if cfg.Paths.LogDir != wantLogs {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogs)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Outputs.SavePNG || cfg.Outputs.SavePDF {
		t.Fatalf("expected optional outputs disabled by default, got %+v", cfg.Outputs)
	}
	if cfg.Export.SpeedMMSec != 100 {
		t.Fatalf("expected default speed 100 mm/sec, got %v", cfg.Export.SpeedMMSec)
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(tempHome, "config.toml")
	content := `
[paths]
log_dir = "~/logs"
archive_dir = "~/archives"

[logging]
format = "JSON"
level = "Warning"

[detection]
threshold = 0.4

[outputs]
save_pdf = true
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config to be read from %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.ArchiveDir != filepath.Join(tempHome, "archives") {
		t.Fatalf("unexpected archive dir %q", cfg.Paths.ArchiveDir)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "warn" {
		t.Fatalf("expected normalized logging, got %+v", cfg.Logging)
	}
	if cfg.Detection.Threshold != 0.4 {
		t.Fatalf("expected threshold override, got %v", cfg.Detection.Threshold)
	}
	if cfg.Detection.RefractoryMS != config.Default().Detection.RefractoryMS {
		t.Fatalf("expected refractory default to survive partial config, got %d", cfg.Detection.RefractoryMS)
	}
	if !cfg.Outputs.SavePDF || cfg.Outputs.SavePNG {
		t.Fatalf("unexpected outputs %+v", cfg.Outputs)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[detection]\nthreshhold = 0.3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestLoadHonoursLogLevelEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WIFFECG_LOG_LEVEL", "DEBUG")
	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected env override, got %q", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"threshold", func(c *config.Config) { c.Detection.Threshold = 1.5 }, "detection.threshold"},
		{"agreement", func(c *config.Config) { c.Detection.MinAgreement = 0 }, "detection.min_agreement"},
		{"rr bounds", func(c *config.Config) { c.RR.MaxMS = c.RR.MinMS }, "rr.max_ms"},
		{"speed", func(c *config.Config) { c.Export.SpeedMMSec = 0 }, "export.speed_mm_sec"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"png", func(c *config.Config) { c.Export.PNGWidth = 10 }, "export.png_width"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var parsed config.Config
	if err := toml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("parse sample: %v", err)
	}
	def := config.Default()
	if parsed.Detection != def.Detection {
		t.Fatalf("sample detection %+v differs from defaults %+v", parsed.Detection, def.Detection)
	}
	if parsed.RR != def.RR || parsed.Export != def.Export || parsed.Outputs != def.Outputs {
		t.Fatalf("sample differs from defaults: %+v", parsed)
	}
}

func TestResolveArchive(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.ArchiveDir = "/data/archives"

	got, err := cfg.ResolveArchive("patient7")
	if err != nil {
		t.Fatalf("ResolveArchive: %v", err)
	}
	if got != filepath.Join("/data/archives", "patient7.zip") {
		t.Fatalf("unexpected bare name resolution %q", got)
	}

	got, err = cfg.ResolveArchive("/tmp/run/a.zip")
	if err != nil {
		t.Fatalf("ResolveArchive: %v", err)
	}
	if got != "/tmp/run/a.zip" {
		t.Fatalf("unexpected path resolution %q", got)
	}

	if _, err := cfg.ResolveArchive("  "); err == nil {
		t.Fatal("expected error for empty name")
	}
}

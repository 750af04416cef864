package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"wiffecg/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir     string `toml:"log_dir"`
	ArchiveDir string `toml:"archive_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Detection contains parameters handed to the peak/correlation engine.
type Detection struct {
	// Threshold is the fraction of a lead's peak amplitude a sample must
	// reach to become a candidate.
	Threshold        float64 `toml:"threshold"`
	RefractoryMS     int     `toml:"refractory_ms"`
	MatchToleranceMS int     `toml:"match_tolerance_ms"`
	// MinAgreement is the fraction of leads that must report a beat for it
	// to be kept.
	MinAgreement float64 `toml:"min_agreement"`
}

// RR bounds the physiologically plausible R-R interval range.
type RR struct {
	MinMS int `toml:"min_ms"`
	MaxMS int `toml:"max_ms"`
}

// Export contains waveform rendering settings.
type Export struct {
	PageWidthMM float64 `toml:"page_width_mm"`
	SpeedMMSec  float64 `toml:"speed_mm_sec"`
	PNGWidth    int     `toml:"png_width"`
	PNGHeight   int     `toml:"png_height"`
}

// Outputs selects the optional rendering stages.
type Outputs struct {
	SavePNG bool `toml:"save_png"`
	SavePDF bool `toml:"save_pdf"`
}

// Preflight contains checks run before an archive is written.
type Preflight struct {
	MinFreeMiB int `toml:"min_free_mib"`
}

// Config encapsulates all configuration values for wiffecg.
//
// Configuration sections by subsystem:
//   - Paths: log and default archive directories
//   - Logging: log format and level
//   - Detection: peak detection and cross-lead agreement
//   - RR: accepted R-R interval bounds
//   - Export: page geometry for PDF and PNG output
//   - Outputs: default selection of the optional rendering stages
//   - Preflight: free-space requirement for archive writes
type Config struct {
	Paths     Paths     `toml:"paths"`
	Logging   Logging   `toml:"logging"`
	Detection Detection `toml:"detection"`
	RR        RR        `toml:"rr"`
	Export    Export    `toml:"export"`
	Outputs   Outputs   `toml:"outputs"`
	Preflight Preflight `toml:"preflight"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPathLiteral)
}

// Load reads the configuration at path, or the first existing default
// location when path is empty. It returns the config with defaults applied,
// environment overrides honoured and paths expanded, plus the resolved file
// path and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if level := strings.TrimSpace(os.Getenv(envLogLevel)); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// envLogLevel overrides logging.level when set.
const envLogLevel = "WIFFECG_LOG_LEVEL"

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// resolveConfigPath honours an explicit path even when the file is missing.
// Otherwise it tries the user config path, then wiffecg.toml in the working
// directory, and falls back to the user config path.
func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		exists, err := isFile(expanded)
		return expanded, exists, err
	}

	userPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	localPath, err := filepath.Abs("wiffecg.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, localPath} {
		if ok, _ := isFile(candidate); ok {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	default:
		return !info.IsDir(), nil
	}
}

// EnsureDirectories creates the log and archive directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.ArchiveDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ResolveArchive maps a bare archive name onto the archive directory. Paths
// containing a separator are expanded as given.
func (c *Config) ResolveArchive(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("archive path is required")
	}
	if strings.ContainsRune(name, filepath.Separator) || strings.HasPrefix(name, "~") || c.Paths.ArchiveDir == "" {
		return expandPath(name)
	}
	if filepath.Ext(name) == "" {
		name += ".zip"
	}
	return filepath.Join(c.Paths.ArchiveDir, name), nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the annotated sample configuration to path,
// replacing any existing file.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

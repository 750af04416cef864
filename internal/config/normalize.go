package config

import (
	"fmt"
	"strings"
)

// normalize fills empty fields with defaults, expands "~" in directories and
// lower-cases the logging settings.
func (c *Config) normalize() error {
	dirs := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.archive_dir", &c.Paths.ArchiveDir, defaultArchiveDir},
	}
	for _, dir := range dirs {
		raw := strings.TrimSpace(*dir.value)
		if raw == "" {
			raw = dir.fallback
		}
		expanded, err := expandPath(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", dir.key, err)
		}
		*dir.value = expanded
	}

	c.Logging.Format = lowerOr(c.Logging.Format, defaultLogFormat)
	c.Logging.Level = lowerOr(c.Logging.Level, defaultLogLevel)
	if c.Logging.Level == "warning" {
		c.Logging.Level = "warn"
	}
	return nil
}

func lowerOr(value, fallback string) string {
	if v := strings.ToLower(strings.TrimSpace(value)); v != "" {
		return v
	}
	return fallback
}

package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateRR(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if c.Preflight.MinFreeMiB < 0 {
		return errors.New("preflight.min_free_mib must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateDetection() error {
	if c.Detection.Threshold <= 0 || c.Detection.Threshold > 1 {
		return errors.New("detection.threshold must be in (0, 1]")
	}
	if c.Detection.RefractoryMS <= 0 {
		return errors.New("detection.refractory_ms must be positive")
	}
	if c.Detection.MatchToleranceMS <= 0 {
		return errors.New("detection.match_tolerance_ms must be positive")
	}
	if c.Detection.MinAgreement <= 0 || c.Detection.MinAgreement > 1 {
		return errors.New("detection.min_agreement must be in (0, 1]")
	}
	return nil
}

func (c *Config) validateRR() error {
	if c.RR.MinMS <= 0 {
		return errors.New("rr.min_ms must be positive")
	}
	if c.RR.MaxMS <= c.RR.MinMS {
		return errors.New("rr.max_ms must be greater than rr.min_ms")
	}
	return nil
}

func (c *Config) validateExport() error {
	if c.Export.PageWidthMM <= 0 {
		return errors.New("export.page_width_mm must be positive")
	}
	if c.Export.SpeedMMSec <= 0 {
		return errors.New("export.speed_mm_sec must be positive")
	}
	if c.Export.PNGWidth < 64 || c.Export.PNGHeight < 64 {
		return errors.New("export.png_width and export.png_height must be at least 64")
	}
	return nil
}

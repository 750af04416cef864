// Package config loads, normalizes, and validates wiffecg configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// WIFFECG_LOG_LEVEL. The Config type centralizes the detection, R-R, export
// and output-selection knobs the pipeline driver needs.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

// Package signal defines the recording source contract consumed by the
// pipeline and ships a SQLite-backed recording store that satisfies it.
//
// A store file holds channel metadata, free-form meta values and frames
// encoded as little-endian float64 blobs, one row per sample index. The CSV
// importer converts exported device data into that layout, and Validate
// checks that a store describes a standard limb-lead ECG.
package signal

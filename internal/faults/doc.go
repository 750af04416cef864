// Package faults defines the error markers shared by the archive store, the
// stage driver and the command line.
//
// Errors are tagged with one of the exported sentinels through Wrap so callers
// can classify them with errors.Is while still seeing the stage, operation and
// message that produced them. Details flattens a wrapped error into the
// serializable fields persisted in a failed archive.
package faults

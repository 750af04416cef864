// Package archive persists pipeline progress in a single zip container.
//
// The container holds one JSON state record at state.json plus auxiliary
// output files named <stage>/<role>.<ext>. Every save rewrites the whole
// container through a temporary file in the same directory and renames it
// into place, so a crash leaves either the previous or the new container.
//
// An Archive is an exclusive handle: a path can be open at most once at a
// time, enforced in-process by a registry and across processes by an
// advisory lock on <path>.lock.
package archive

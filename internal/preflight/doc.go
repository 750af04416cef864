// Package preflight provides readiness checks for the filesystem paths
// wiffecg writes to.
//
// The run and step commands call RunAll before opening an archive so a
// pipeline never starts against a directory it cannot write or a volume
// without room for the rewritten container. The status command shows the
// same results.
package preflight

// Package pipeline drives an archive through the ECG processing stages.
//
// A Driver performs exactly one transition per Step: it reads the persisted
// stage, runs that stage's work against the signal source, engine and
// renderers, writes the results into the state record, advances the stage
// and saves the archive. Work is computed before anything is assigned, so a
// failed or panicking stage leaves every earlier result intact and moves the
// record to ERROR with serializable diagnostics.
//
// Run wraps Step with scoped archive acquisition and loops until the record
// reaches COMPLETED or ERROR.
package pipeline

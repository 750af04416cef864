// Package analysis holds the heartbeat detection math behind the pipeline.
//
// The pipeline reaches it only through Engine. Detector is the reference
// implementation: amplitude-threshold peak picking per lead, pairwise lead
// agreement, cross-lead clustering into canonical beat points, and R-R
// interval statistics per user-labeled segment.
package analysis

// Package stage defines the fixed, ordered set of pipeline stages and the
// transition table between them.
//
// The chain is linear with one branch point: after CALCULATERR the optional
// SAVEPNG and SAVEPDF stages are entered only when selected in the OutputSet
// chosen at pipeline start. COMPLETED and ERROR are terminal.
package stage

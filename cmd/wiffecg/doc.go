// Package main hosts the wiffecg CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration, validates recordings,
// drives archives through the processing stages and reports archive status.
// The processing itself lives in the internal packages; commands here only
// parse flags, wire collaborators and format output.
package main

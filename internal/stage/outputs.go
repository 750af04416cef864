package stage

import (
	"fmt"
	"strings"
)

// Output is one optional rendered artifact.
type Output uint8

const (
	OutputPNG Output = 1 << iota
	OutputPDF
)

func (o Output) String() string {
	switch o {
	case OutputPNG:
		return "png"
	case OutputPDF:
		return "pdf"
	default:
		return fmt.Sprintf("Output(%d)", uint8(o))
	}
}

// OutputSet selects which optional stages run. It is fixed when the pipeline
// starts and consulted by Next.
type OutputSet uint8

// NewOutputSet builds a selection from individual outputs.
func NewOutputSet(outputs ...Output) OutputSet {
	var set OutputSet
	for _, o := range outputs {
		set |= OutputSet(o)
	}
	return set
}

// OutputsFromFlags mirrors the savepng/savepdf caller flags.
func OutputsFromFlags(savePNG, savePDF bool) OutputSet {
	var set OutputSet
	if savePNG {
		set |= OutputSet(OutputPNG)
	}
	if savePDF {
		set |= OutputSet(OutputPDF)
	}
	return set
}

func (s OutputSet) Has(o Output) bool { return s&OutputSet(o) != 0 }

func (s OutputSet) String() string {
	var parts []string
	for _, o := range []Output{OutputPNG, OutputPDF} {
		if s.Has(o) {
			parts = append(parts, o.String())
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

package stage

import (
	"fmt"
	"strings"
)

// Stage is a position in the pipeline state machine.
type Stage int

const (
	Empty Stage = iota
	Initialized
	Correlate
	KeepKeys
	RemoveKeys
	UserFilter
	CalculateRR
	SavePNG
	SavePDF
	Completed
	Error
)

var names = [...]string{
	Empty:       "EMPTY",
	Initialized: "INITIALIZED",
	Correlate:   "CORRELATE",
	KeepKeys:    "KEEPKEYS",
	RemoveKeys:  "REMOVEKEYS",
	UserFilter:  "USERFILTER",
	CalculateRR: "CALCULATERR",
	SavePNG:     "SAVEPNG",
	SavePDF:     "SAVEPDF",
	Completed:   "COMPLETED",
	Error:       "ERROR",
}

var labels = [...]string{
	Empty:       "Empty",
	Initialized: "Initialized",
	Correlate:   "Correlate leads",
	KeepKeys:    "Keep keys",
	RemoveKeys:  "Remove keys",
	UserFilter:  "User filter",
	CalculateRR: "Calculate R-R",
	SavePNG:     "Save PNG",
	SavePDF:     "Save PDF",
	Completed:   "Completed",
	Error:       "Error",
}

// All lists every stage in declaration order, ERROR last.
func All() []Stage {
	out := make([]Stage, 0, len(names))
	for s := Empty; s <= Error; s++ {
		out = append(out, s)
	}
	return out
}

func (s Stage) valid() bool { return s >= Empty && s <= Error }

func (s Stage) String() string {
	if !s.valid() {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return names[s]
}

// Label returns a human readable name.
func (s Stage) Label() string {
	if !s.valid() {
		return s.String()
	}
	return labels[s]
}

// Terminal reports whether no further transitions occur from s.
func (s Stage) Terminal() bool {
	return s == Completed || s == Error
}

// Optional reports whether s can be bypassed by output selection.
func (s Stage) Optional() bool {
	return s == SavePNG || s == SavePDF
}

// Before reports whether s precedes other in the chain. ERROR is outside the
// chain and is never before or after anything.
func (s Stage) Before(other Stage) bool {
	if s == Error || other == Error || !s.valid() || !other.valid() {
		return false
	}
	return s < other
}

// Next returns the stage entered once s's work has completed. Terminal stages
// return themselves.
func (s Stage) Next(outputs OutputSet) Stage {
	switch s {
	case Empty:
		return Initialized
	case Initialized:
		return Correlate
	case Correlate:
		return KeepKeys
	case KeepKeys:
		return RemoveKeys
	case RemoveKeys:
		return UserFilter
	case UserFilter:
		return CalculateRR
	case CalculateRR:
		switch {
		case outputs.Has(OutputPNG):
			return SavePNG
		case outputs.Has(OutputPDF):
			return SavePDF
		default:
			return Completed
		}
	case SavePNG:
		if outputs.Has(OutputPDF) {
			return SavePDF
		}
		return Completed
	case SavePDF, Completed:
		return Completed
	default:
		return Error
	}
}

// Sequence returns the stages visited from EMPTY through COMPLETED for the
// given output selection.
func Sequence(outputs OutputSet) []Stage {
	seq := []Stage{Empty}
	for s := Empty; s != Completed; {
		s = s.Next(outputs)
		seq = append(seq, s)
	}
	return seq
}

// Parse resolves a stage name, case-insensitively.
func Parse(value string) (Stage, error) {
	needle := strings.ToUpper(strings.TrimSpace(value))
	for s, name := range names {
		if name == needle {
			return Stage(s), nil
		}
	}
	return Empty, fmt.Errorf("unknown stage %q", value)
}

func (s Stage) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("invalid stage %d", int(s))
	}
	return []byte(names[s]), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

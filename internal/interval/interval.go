// Package interval converts caller-supplied time ranges in seconds into
// sample-frame ranges and answers membership queries over them.
package interval

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Seconds is a closed time range in seconds.
type Seconds struct {
	Start float64 `json:"start"`
	Stop  float64 `json:"stop"`
}

// Named is a user-labeled time range.
type Named struct {
	Label string `json:"label"`
	Seconds
}

// Frames is a closed range of sample indices.
type Frames struct {
	Start int64 `json:"start"`
	Stop  int64 `json:"stop"`
}

// NamedFrames is a user-labeled frame range.
type NamedFrames struct {
	Label string `json:"label"`
	Frames
}

// Spec holds the three interval categories in seconds.
type Spec struct {
	User   []Named
	Noise  []Seconds
	Ignore []Seconds
}

// FrameSpec holds the three interval categories in frames.
type FrameSpec struct {
	User   []NamedFrames
	Noise  []Frames
	Ignore []Frames
}

// ToFrame converts seconds into the nearest sample index. Halves round away
// from zero.
func ToFrame(seconds, samplingRate float64) int64 {
	return int64(math.Round(seconds * samplingRate))
}

// Frames converts the range with the given sampling rate.
func (s Seconds) Frames(samplingRate float64) Frames {
	return Frames{Start: ToFrame(s.Start, samplingRate), Stop: ToFrame(s.Stop, samplingRate)}
}

// ToFrames converts every category once, at pipeline start.
func (s Spec) ToFrames(samplingRate float64) FrameSpec {
	out := FrameSpec{
		User:   make([]NamedFrames, 0, len(s.User)),
		Noise:  make([]Frames, 0, len(s.Noise)),
		Ignore: make([]Frames, 0, len(s.Ignore)),
	}
	for _, u := range s.User {
		out.User = append(out.User, NamedFrames{Label: u.Label, Frames: u.Seconds.Frames(samplingRate)})
	}
	for _, n := range s.Noise {
		out.Noise = append(out.Noise, n.Frames(samplingRate))
	}
	for _, i := range s.Ignore {
		out.Ignore = append(out.Ignore, i.Frames(samplingRate))
	}
	return out
}

// Validate reports ranges that are negative or reversed.
func (s Spec) Validate() error {
	check := func(kind string, r Seconds) error {
		if r.Start < 0 || r.Stop < r.Start || math.IsNaN(r.Start) || math.IsNaN(r.Stop) {
			return fmt.Errorf("%s interval (%g, %g) is invalid", kind, r.Start, r.Stop)
		}
		return nil
	}
	for _, u := range s.User {
		if strings.TrimSpace(u.Label) == "" {
			return fmt.Errorf("user interval (%g, %g) has no label", u.Start, u.Stop)
		}
		if err := check("user", u.Seconds); err != nil {
			return err
		}
	}
	for _, n := range s.Noise {
		if err := check("noise", n); err != nil {
			return err
		}
	}
	for _, i := range s.Ignore {
		if err := check("ignore", i); err != nil {
			return err
		}
	}
	return nil
}

// Contains reports whether frame lies inside the closed range.
func (f Frames) Contains(frame int64) bool {
	return frame >= f.Start && frame <= f.Stop
}

// Overlaps reports whether [start, stop] intersects the range.
func (f Frames) Overlaps(start, stop int64) bool {
	return start <= f.Stop && stop >= f.Start
}

// Set is a sorted, merged list of frame ranges for fast membership tests.
type Set []Frames

// NewSet merges the given ranges.
func NewSet(ranges ...[]Frames) Set {
	var all []Frames
	for _, r := range ranges {
		all = append(all, r...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Start < all[j].Start })
	var merged Set
	for _, r := range all {
		if n := len(merged); n > 0 && r.Start <= merged[n-1].Stop+1 {
			if r.Stop > merged[n-1].Stop {
				merged[n-1].Stop = r.Stop
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// Contains reports whether frame lies in any range.
func (s Set) Contains(frame int64) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i].Stop >= frame })
	return i < len(s) && s[i].Start <= frame
}

// Overlaps reports whether [start, stop] intersects any range.
func (s Set) Overlaps(start, stop int64) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i].Stop >= start })
	return i < len(s) && s[i].Start <= stop
}

// Parse reads "start-stop" or "start:stop" in seconds.
func Parse(value string) (Seconds, error) {
	value = strings.TrimSpace(value)
	sep := strings.IndexAny(value, "-:")
	if sep <= 0 {
		return Seconds{}, fmt.Errorf("interval %q: expected start-stop", value)
	}
	start, err := strconv.ParseFloat(strings.TrimSpace(value[:sep]), 64)
	if err != nil {
		return Seconds{}, fmt.Errorf("interval %q: start: %w", value, err)
	}
	stop, err := strconv.ParseFloat(strings.TrimSpace(value[sep+1:]), 64)
	if err != nil {
		return Seconds{}, fmt.Errorf("interval %q: stop: %w", value, err)
	}
	return Seconds{Start: start, Stop: stop}, nil
}

// ParseNamed reads "label=start-stop".
func ParseNamed(value string) (Named, error) {
	label, rng, ok := strings.Cut(value, "=")
	if !ok || strings.TrimSpace(label) == "" {
		return Named{}, fmt.Errorf("user interval %q: expected label=start-stop", value)
	}
	secs, err := Parse(rng)
	if err != nil {
		return Named{}, err
	}
	return Named{Label: strings.TrimSpace(label), Seconds: secs}, nil
}

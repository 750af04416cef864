package analysis

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"wiffecg/internal/faults"
	"wiffecg/internal/interval"
	"wiffecg/internal/signal"
)

// Params tunes the reference detector.
type Params struct {
	// Threshold is the fraction of a lead's largest absolute amplitude a
	// local maximum must reach.
	Threshold    float64
	RefractoryMS float64
	// MatchToleranceMS is how far apart two leads' peaks may be and still
	// describe the same beat.
	MatchToleranceMS float64
	// MinAgreement is the fraction of leads that must report a beat.
	MinAgreement float64
}

// Detector is the reference Engine.
type Detector struct {
	params Params
}

// NewDetector returns a Detector with the given parameters.
func NewDetector(params Params) *Detector {
	return &Detector{params: params}
}

var _ Engine = (*Detector)(nil)

func msToFrames(ms, samplingRate float64) int64 {
	return int64(math.Round(ms / 1000 * samplingRate))
}

// Detect streams the source twice: once for the per-lead amplitude ceiling,
// once to pick local maxima of the absolute signal above the threshold.
// Candidate values are absolute amplitudes.
func (d *Detector) Detect(ctx context.Context, src signal.Source, ignore, noise []interval.Frames) (Potentials, Peaks, error) {
	leads := src.Leads()
	rate := src.SamplingRate()
	if len(leads) == 0 {
		return nil, nil, errors.New("source has no leads")
	}
	if rate <= 0 {
		return nil, nil, fmt.Errorf("invalid sampling rate %g", rate)
	}
	skip := interval.NewSet(ignore, noise)

	ceiling, err := amplitudeCeiling(ctx, src, len(leads), skip)
	if err != nil {
		return nil, nil, err
	}
	thresholds := make([]float64, len(leads))
	for i, c := range ceiling {
		thresholds[i] = c * d.params.Threshold
	}

	candidates, err := localMaxima(ctx, src, thresholds, skip)
	if err != nil {
		return nil, nil, err
	}

	refractory := msToFrames(d.params.RefractoryMS, rate)
	potentials := make(Potentials, len(leads))
	peaks := make(Peaks, len(leads))
	for i, lead := range leads {
		potentials[lead] = candidates[i]
		peaks[lead] = applyRefractory(candidates[i], refractory)
	}
	return potentials, peaks, nil
}

func amplitudeCeiling(ctx context.Context, src signal.Source, leads int, skip interval.Set) ([]float64, error) {
	reader, err := src.Frames(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	ceiling := make([]float64, leads)
	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return ceiling, nil
		}
		if err != nil {
			return nil, err
		}
		if len(frame.Values) != leads {
			return nil, fmt.Errorf("frame %d has %d values for %d leads", frame.Index, len(frame.Values), leads)
		}
		if skip.Contains(frame.Index) {
			continue
		}
		for i, v := range frame.Values {
			if a := math.Abs(v); a > ceiling[i] {
				ceiling[i] = a
			}
		}
	}
}

func localMaxima(ctx context.Context, src signal.Source, thresholds []float64, skip interval.Set) ([][]Candidate, error) {
	reader, err := src.Frames(ctx)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	leads := len(thresholds)
	out := make([][]Candidate, leads)
	for i := range out {
		out[i] = []Candidate{}
	}
	prev1 := make([]float64, leads)
	prev2 := make([]float64, leads)
	history := 0
	lastIndex := int64(-1)

	for {
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if skip.Contains(frame.Index) {
			history = 0
			continue
		}
		if frame.Index != lastIndex+1 {
			history = 0
		}
		for i, v := range frame.Values {
			cur := math.Abs(v)
			if history >= 2 && thresholds[i] > 0 &&
				prev1[i] >= prev2[i] && prev1[i] > cur && prev1[i] >= thresholds[i] {
				out[i] = append(out[i], Candidate{Frame: lastIndex, Value: prev1[i]})
			}
			prev2[i], prev1[i] = prev1[i], cur
		}
		lastIndex = frame.Index
		history++
	}
}

// applyRefractory keeps the strongest candidate of every run closer than
// refractory frames.
func applyRefractory(candidates []Candidate, refractory int64) []int64 {
	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if n := len(kept); n > 0 && c.Frame-kept[n-1].Frame < refractory {
			if c.Value > kept[n-1].Value {
				kept[n-1] = c
			}
			continue
		}
		kept = append(kept, c)
	}
	frames := make([]int64, len(kept))
	for i, c := range kept {
		frames[i] = c.Frame
	}
	return frames
}

// Correlate scores each lead pair with the Dice coefficient of peaks matched
// within the match tolerance.
func (d *Detector) Correlate(_ context.Context, channels []string, _ Potentials, peaks Peaks, samplingRate float64) (Correlation, error) {
	if err := requireChannels(channels, peaks); err != nil {
		return Correlation{}, err
	}
	tol := msToFrames(d.params.MatchToleranceMS, samplingRate)
	corr := Correlation{Pairs: []Pair{}}
	for i := 0; i < len(channels); i++ {
		for j := i + 1; j < len(channels); j++ {
			a, b := peaks[channels[i]], peaks[channels[j]]
			matched := countMatches(a, b, tol)
			score := 0.0
			if total := len(a) + len(b); total > 0 {
				score = 2 * float64(matched) / float64(total)
			}
			corr.Pairs = append(corr.Pairs, Pair{A: channels[i], B: channels[j], Score: score, Matched: matched})
		}
	}
	return corr, nil
}

func countMatches(a, b []int64, tol int64) int {
	var i, j, matched int
	for i < len(a) && j < len(b) {
		diff := a[i] - b[j]
		switch {
		case diff >= -tol && diff <= tol:
			matched++
			i++
			j++
		case diff < 0:
			i++
		default:
			j++
		}
	}
	return matched
}

func requireChannels(channels []string, peaks Peaks) error {
	if len(channels) == 0 {
		return errors.New("no channels recorded")
	}
	for _, ch := range channels {
		if _, ok := peaks[ch]; !ok {
			return fmt.Errorf("no peaks recorded for channel %q", ch)
		}
	}
	return nil
}

type leadPeak struct {
	frame int64
	lead  int
}

// KeepKeys clusters peaks from every lead that fall within the match
// tolerance of a cluster's first peak. Each cluster yields one canonical
// point at its median frame; points reported by enough distinct leads are
// kept.
func (d *Detector) KeepKeys(_ context.Context, channels []string, peaks Peaks, samplingRate float64) ([]int64, []int64, error) {
	if err := requireChannels(channels, peaks); err != nil {
		return nil, nil, err
	}
	var events []leadPeak
	for lead, ch := range channels {
		for _, f := range peaks[ch] {
			events = append(events, leadPeak{frame: f, lead: lead})
		}
	}
	slices.SortFunc(events, func(a, b leadPeak) int {
		if c := cmp.Compare(a.frame, b.frame); c != 0 {
			return c
		}
		return cmp.Compare(a.lead, b.lead)
	})

	need := int(math.Ceil(d.params.MinAgreement * float64(len(channels))))
	need = max(need, 1)
	tol := msToFrames(d.params.MatchToleranceMS, samplingRate)

	points := []int64{}
	keep := []int64{}
	flush := func(cluster []leadPeak) {
		if len(cluster) == 0 {
			return
		}
		point := cluster[(len(cluster)-1)/2].frame
		seen := make(map[int]struct{}, len(cluster))
		for _, e := range cluster {
			seen[e.lead] = struct{}{}
		}
		points = append(points, point)
		if len(seen) >= need {
			keep = append(keep, point)
		}
	}

	var cluster []leadPeak
	for _, e := range events {
		if len(cluster) > 0 && e.frame-cluster[0].frame > tol {
			flush(cluster)
			cluster = cluster[:0]
		}
		cluster = append(cluster, e)
	}
	flush(cluster)
	return points, keep, nil
}

// RemoveKeys discards kept points that follow the previous retained point
// by less than the refractory period.
func (d *Detector) RemoveKeys(_ context.Context, channels []string, corr Correlation, points, keep []int64, samplingRate float64) ([]int64, error) {
	known := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		known[ch] = struct{}{}
	}
	for _, p := range corr.Pairs {
		_, okA := known[p.A]
		_, okB := known[p.B]
		if !okA || !okB {
			return nil, fmt.Errorf("correlation pair %s/%s references an unknown channel", p.A, p.B)
		}
	}
	pointSet := make(map[int64]struct{}, len(points))
	for _, p := range points {
		pointSet[p] = struct{}{}
	}

	refractory := msToFrames(d.params.RefractoryMS, samplingRate)
	remove := []int64{}
	last := int64(math.MinInt64)
	for _, k := range keep {
		if _, ok := pointSet[k]; !ok {
			return nil, fmt.Errorf("kept frame %d is not a canonical point", k)
		}
		if last != math.MinInt64 && k-last < refractory {
			remove = append(remove, k)
			continue
		}
		last = k
	}
	return remove, nil
}

// ValidateUserFilter requires every filter frame to be a canonical point and
// no frame to be both forced in and forced out. The result is sorted and
// deduplicated.
func (d *Detector) ValidateUserFilter(_ context.Context, filter UserFilter, points, _, _ []int64) (UserFilter, error) {
	pointSet := make(map[int64]struct{}, len(points))
	for _, p := range points {
		pointSet[p] = struct{}{}
	}
	out := UserFilter{Keep: normalize(filter.Keep), Remove: normalize(filter.Remove)}

	var unknown []int64
	for _, f := range append(slices.Clone(out.Keep), out.Remove...) {
		if _, ok := pointSet[f]; !ok {
			unknown = append(unknown, f)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return UserFilter{}, faults.WithData(
			faults.Wrap(faults.ErrValidation, "", "validate user filter",
				fmt.Sprintf("%d frame(s) are not canonical points", len(unknown)), nil),
			map[string]any{"unknown_frames": unknown},
		)
	}

	var conflicting []int64
	for _, f := range out.Keep {
		if _, found := slices.BinarySearch(out.Remove, f); found {
			conflicting = append(conflicting, f)
		}
	}
	if len(conflicting) > 0 {
		return UserFilter{}, faults.WithData(
			faults.Wrap(faults.ErrValidation, "", "validate user filter",
				fmt.Sprintf("%d frame(s) are both kept and removed", len(conflicting)), nil),
			map[string]any{"conflicting_frames": conflicting},
		)
	}
	return out, nil
}

func normalize(frames []int64) []int64 {
	out := slices.Clone(frames)
	if out == nil {
		out = []int64{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"wiffecg/internal/interval"
)

// SegmentAll labels the statistics over every accepted interval.
const SegmentAll = "all"

// CalculateRR retains keep minus remove, applies the user filter on top,
// and measures the distance between consecutive retained beats. Intervals
// touching an ignore or noise range are skipped; intervals outside the
// accepted bounds are counted as rejected. An interval takes the label of
// the first user range containing both of its beats.
func (d *Detector) CalculateRR(_ context.Context, keep, remove []int64, filter UserFilter, spans interval.FrameSpec, params RRParams) (RRResult, error) {
	if params.SamplingRate <= 0 {
		return RRResult{}, fmt.Errorf("invalid sampling rate %g", params.SamplingRate)
	}
	if params.MinMS < 0 || params.MaxMS <= params.MinMS {
		return RRResult{}, errors.New("R-R bounds must satisfy 0 <= min < max")
	}

	beats := retainedBeats(keep, remove, filter)
	skip := interval.NewSet(spans.Ignore, spans.Noise)

	result := RRResult{Beats: beats, Intervals: []RRInterval{}}
	for i := 1; i < len(beats); i++ {
		a, b := beats[i-1], beats[i]
		if skip.Overlaps(a, b) {
			continue
		}
		ms := float64(b-a) * 1000 / params.SamplingRate
		if ms < params.MinMS || ms > params.MaxMS {
			result.Rejected++
			continue
		}
		result.Intervals = append(result.Intervals, RRInterval{
			Start:        a,
			Stop:         b,
			Milliseconds: ms,
			Label:        labelFor(spans.User, a, b),
		})
	}

	result.Segments = append(result.Segments, summarize(SegmentAll, result.Intervals))
	seen := map[string]struct{}{}
	for _, u := range spans.User {
		if _, dup := seen[u.Label]; dup {
			continue
		}
		seen[u.Label] = struct{}{}
		var labeled []RRInterval
		for _, iv := range result.Intervals {
			if iv.Label == u.Label {
				labeled = append(labeled, iv)
			}
		}
		result.Segments = append(result.Segments, summarize(u.Label, labeled))
	}
	return result, nil
}

func retainedBeats(keep, remove []int64, filter UserFilter) []int64 {
	set := make(map[int64]struct{}, len(keep)+len(filter.Keep))
	for _, k := range keep {
		set[k] = struct{}{}
	}
	for _, r := range remove {
		delete(set, r)
	}
	for _, k := range filter.Keep {
		set[k] = struct{}{}
	}
	for _, r := range filter.Remove {
		delete(set, r)
	}
	beats := make([]int64, 0, len(set))
	for f := range set {
		beats = append(beats, f)
	}
	slices.Sort(beats)
	return beats
}

func labelFor(user []interval.NamedFrames, a, b int64) string {
	for _, u := range user {
		if u.Contains(a) && u.Contains(b) {
			return u.Label
		}
	}
	return ""
}

func summarize(label string, intervals []RRInterval) Segment {
	seg := Segment{Label: label, Count: len(intervals)}
	if len(intervals) == 0 {
		return seg
	}
	seg.MinMS = math.Inf(1)
	seg.MaxMS = math.Inf(-1)
	var sum float64
	for _, iv := range intervals {
		sum += iv.Milliseconds
		seg.MinMS = math.Min(seg.MinMS, iv.Milliseconds)
		seg.MaxMS = math.Max(seg.MaxMS, iv.Milliseconds)
	}
	seg.MeanMS = sum / float64(len(intervals))

	var sq float64
	for _, iv := range intervals {
		dev := iv.Milliseconds - seg.MeanMS
		sq += dev * dev
	}
	seg.SDNNMS = math.Sqrt(sq / float64(len(intervals)))

	if len(intervals) > 1 {
		var diffs float64
		for i := 1; i < len(intervals); i++ {
			diff := intervals[i].Milliseconds - intervals[i-1].Milliseconds
			diffs += diff * diff
		}
		seg.RMSSDMS = math.Sqrt(diffs / float64(len(intervals)-1))
	}
	if seg.MeanMS > 0 {
		seg.HeartRate = 60000 / seg.MeanMS
	}
	return seg
}

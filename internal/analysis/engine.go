package analysis

import (
	"context"

	"wiffecg/internal/interval"
	"wiffecg/internal/signal"
)

// Engine is the signal-processing contract driven one call per stage.
// Implementations must not retain the slices they are handed.
type Engine interface {
	// Detect finds peak candidates and accepted peaks on every lead,
	// skipping frames inside the ignore and noise ranges.
	Detect(ctx context.Context, src signal.Source, ignore, noise []interval.Frames) (Potentials, Peaks, error)
	// Correlate scores how well the peaks of each lead pair line up.
	Correlate(ctx context.Context, channels []string, potentials Potentials, peaks Peaks, samplingRate float64) (Correlation, error)
	// KeepKeys merges per-lead peaks into canonical points and selects the
	// points enough leads agree on.
	KeepKeys(ctx context.Context, channels []string, peaks Peaks, samplingRate float64) (points, keep []int64, err error)
	// RemoveKeys selects kept points to discard.
	RemoveKeys(ctx context.Context, channels []string, corr Correlation, points, keep []int64, samplingRate float64) ([]int64, error)
	// ValidateUserFilter checks a caller filter against the canonical points
	// and returns it normalized.
	ValidateUserFilter(ctx context.Context, filter UserFilter, points, keep, remove []int64) (UserFilter, error)
	// CalculateRR derives R-R intervals and per-segment statistics.
	CalculateRR(ctx context.Context, keep, remove []int64, filter UserFilter, spans interval.FrameSpec, params RRParams) (RRResult, error)
}

package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"wiffecg/internal/signal"
)

// ErrStop ends pagination early without an error when returned by a page
// callback.
var ErrStop = errors.New("stop pagination")

// Layout is the paper geometry of a page.
type Layout struct {
	PageWidthMM float64
	SpeedMMSec  float64
}

// DefaultLayout is an 8 inch page at 100 mm/s.
var DefaultLayout = Layout{PageWidthMM: 8.0 * 25.4, SpeedMMSec: 100}

// Window returns the number of samples per page.
func (l Layout) Window(samplingRate float64) int {
	return int(math.Round(l.PageWidthMM / l.SpeedMMSec * samplingRate))
}

// Seconds returns the time span of a full page.
func (l Layout) Seconds() float64 {
	return l.PageWidthMM / l.SpeedMMSec
}

// Page is one window of samples. Times and Values are reused by the next
// page; callbacks must copy anything they keep.
type Page struct {
	Number int
	// Labels are lead names with any "Lead " prefix removed.
	Labels []string
	Times  []float64
	Values [][]float64
	// First and Last are the frame indices covered by the page.
	First int64
	Last  int64
	// Start is the time of the page's first sample in seconds.
	Start float64
}

// Paginate reads frames until io.EOF and hands fn one page per window.
//
// A page boundary is reached when the one-based sample count is a multiple
// of the window, and the page is emitted before that sample is appended, so
// the first page holds one sample less than a full window. Samples left at
// the end of the stream form a final shorter page. It returns the number of
// pages emitted.
func Paginate(ctx context.Context, reader signal.FrameReader, leads []string, samplingRate float64, layout Layout, fn func(Page) error) (int, error) {
	if samplingRate <= 0 {
		return 0, fmt.Errorf("invalid sampling rate %g", samplingRate)
	}
	window := layout.Window(samplingRate)
	if window < 2 {
		return 0, fmt.Errorf("page window of %d samples is too small", window)
	}

	page := Page{
		Labels: make([]string, len(leads)),
		Times:  make([]float64, 0, window),
		Values: make([][]float64, len(leads)),
	}
	for i, lead := range leads {
		page.Labels[i] = signal.LeadLabel(lead)
		page.Values[i] = make([]float64, 0, window)
	}

	pages := 0
	emit := func() error {
		if len(page.Times) == 0 {
			return nil
		}
		pages++
		page.Number = pages
		page.Start = page.Times[0]
		return fn(page)
	}

	var count int64
	for {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		frame, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return pages, err
		}
		if len(frame.Values) != len(leads) {
			return pages, fmt.Errorf("frame %d has %d values for %d leads", frame.Index, len(frame.Values), len(leads))
		}

		if (count+1)%int64(window) == 0 {
			if err := emit(); err != nil {
				if errors.Is(err, ErrStop) {
					return pages, nil
				}
				return pages, err
			}
			page.Times = page.Times[:0]
			for i := range page.Values {
				page.Values[i] = page.Values[i][:0]
			}
		}
		if len(page.Times) == 0 {
			page.First = frame.Index
		}
		page.Last = frame.Index
		page.Times = append(page.Times, float64(frame.Index)/samplingRate)
		for i, v := range frame.Values {
			page.Values[i] = append(page.Values[i], v)
		}
		count++
	}

	if err := emit(); err != nil && !errors.Is(err, ErrStop) {
		return pages, err
	}
	return pages, nil
}

// tickPositions lists multiples of step within [from, to].
func tickPositions(from, to, step float64) []float64 {
	const eps = 1e-9
	var out []float64
	for k := math.Ceil(from/step - eps); k*step <= to+eps; k++ {
		out = append(out, k*step)
	}
	return out
}

// valueRange returns a padded [lo, hi] for plotting values.
func valueRange(values []float64) (float64, float64) {
	if len(values) == 0 {
		return -1, 1
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo < 1e-9 {
		return lo - 1, hi + 1
	}
	pad := (hi - lo) * 0.05
	return lo - pad, hi + pad
}

// marksIn returns the marks within [first, last] in order.
func marksIn(marks []int64, first, last int64) []int64 {
	var out []int64
	for _, m := range marks {
		if m >= first && m <= last {
			out = append(out, m)
		}
	}
	return out
}

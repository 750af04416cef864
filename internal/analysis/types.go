package analysis

// Candidate is a local maximum on one lead.
type Candidate struct {
	Frame int64   `json:"frame"`
	Value float64 `json:"value"`
}

// Potentials maps a channel name to its peak candidates in frame order.
type Potentials map[string][]Candidate

// Peaks maps a channel name to accepted peak frames in ascending order.
type Peaks map[string][]int64

// Pair is the agreement between the peaks of two channels.
type Pair struct {
	A       string  `json:"a"`
	B       string  `json:"b"`
	Score   float64 `json:"score"`
	Matched int     `json:"matched"`
}

// Correlation holds one Pair per unordered channel combination.
type Correlation struct {
	Pairs []Pair `json:"pairs"`
}

// MeanScore averages every pair score. Zero pairs yields zero.
func (c Correlation) MeanScore() float64 {
	if len(c.Pairs) == 0 {
		return 0
	}
	var sum float64
	for _, p := range c.Pairs {
		sum += p.Score
	}
	return sum / float64(len(c.Pairs))
}

// UserFilter lists canonical points the user forces in or out.
type UserFilter struct {
	Keep   []int64 `json:"keep"`
	Remove []int64 `json:"remove"`
}

// Empty reports whether the filter changes nothing.
func (f UserFilter) Empty() bool {
	return len(f.Keep) == 0 && len(f.Remove) == 0
}

// RRInterval is the distance between two consecutive retained beats.
type RRInterval struct {
	Start        int64   `json:"start"`
	Stop         int64   `json:"stop"`
	Milliseconds float64 `json:"ms"`
	Label        string  `json:"label,omitempty"`
}

// Segment summarizes the R-R intervals of one user label. The label "all"
// covers every accepted interval.
type Segment struct {
	Label     string  `json:"label"`
	Count     int     `json:"count"`
	MeanMS    float64 `json:"mean_ms"`
	SDNNMS    float64 `json:"sdnn_ms"`
	RMSSDMS   float64 `json:"rmssd_ms"`
	MinMS     float64 `json:"min_ms"`
	MaxMS     float64 `json:"max_ms"`
	HeartRate float64 `json:"heart_rate_bpm"`
}

// RRResult is the outcome of the R-R calculation.
type RRResult struct {
	Beats     []int64      `json:"beats"`
	Intervals []RRInterval `json:"intervals"`
	Segments  []Segment    `json:"segments"`
	Rejected  int          `json:"rejected"`
}

// RRParams bounds accepted intervals.
type RRParams struct {
	SamplingRate float64
	MinMS        float64
	MaxMS        float64
}

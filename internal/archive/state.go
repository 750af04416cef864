package archive

import (
	"time"

	"wiffecg/internal/analysis"
	"wiffecg/internal/stage"
)

// SchemaVersion is the state record layout this build reads and writes.
const SchemaVersion = 1

// State is the persisted pipeline record. Fields are filled in stage order
// and never cleared.
type State struct {
	SchemaVersion int       `json:"schema_version"`
	ArchiveID     string    `json:"archive_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Stage stage.Stage `json:"stage"`

	Channels   []string              `json:"channels"`
	Potentials analysis.Potentials   `json:"potentials"`
	Peaks      analysis.Peaks        `json:"peaks"`
	Correlate  *analysis.Correlation `json:"correlate"`
	Points     []int64               `json:"points"`
	Keep       []int64               `json:"keep"`
	Remove     []int64               `json:"remove"`
	UserFilter *analysis.UserFilter  `json:"user_filter"`
	RR         *analysis.RRResult    `json:"rr"`
	Outputs    []string              `json:"outputs"`

	History []HistoryEntry `json:"history"`
	Error   *Failure       `json:"error"`
}

// HistoryEntry records one completed or failed transition.
type HistoryEntry struct {
	Stage      stage.Stage `json:"stage"`
	StartedAt  time.Time   `json:"started_at"`
	DurationMS int64       `json:"duration_ms"`
	RunID      string      `json:"run_id"`
	Failed     bool        `json:"failed,omitempty"`
}

// Failure is the serializable description of the error that moved the
// record to ERROR.
type Failure struct {
	Stage   stage.Stage    `json:"stage"`
	Kind    string         `json:"kind"`
	Fault   string         `json:"fault"`
	Message string         `json:"message"`
	Trace   []string       `json:"trace"`
	Data    map[string]any `json:"data,omitempty"`
}

// LastRun returns the most recent history entry, if any.
func (s *State) LastRun() (HistoryEntry, bool) {
	if len(s.History) == 0 {
		return HistoryEntry{}, false
	}
	return s.History[len(s.History)-1], true
}

// HasOutput reports whether an auxiliary file was recorded as written.
func (s *State) HasOutput(name string) bool {
	for _, o := range s.Outputs {
		if o == name {
			return true
		}
	}
	return false
}

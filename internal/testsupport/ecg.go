package testsupport

import (
	"context"
	"io"
	"math"
	"testing"

	"wiffecg/internal/signal"
)

// StandardLeads are the six limb leads in device export naming.
var StandardLeads = []string{"Lead I", "Lead II", "Lead III", "Lead aVR", "Lead aVL", "Lead aVF"}

// ECG is an in-memory synthetic recording with a sharp R wave on a regular
// beat. It implements signal.Source.
type ECG struct {
	LeadNames []string
	Rate      float64
	Seconds   float64
	// BeatEveryMS is the R-R spacing. Zero means 800 ms.
	BeatEveryMS float64
	// FirstBeatMS offsets the first R peak. Zero means 300 ms.
	FirstBeatMS float64
}

// NewECG returns a synthetic recording of the standard leads.
func NewECG(rate, seconds float64) *ECG {
	return &ECG{LeadNames: append([]string(nil), StandardLeads...), Rate: rate, Seconds: seconds}
}

func (e *ECG) Leads() []string { return append([]string(nil), e.LeadNames...) }

func (e *ECG) SamplingRate() float64 { return e.Rate }

// FrameCount returns the number of frames the stream yields.
func (e *ECG) FrameCount() int64 { return int64(math.Round(e.Seconds * e.Rate)) }

// BeatFrames lists the frames carrying an R peak.
func (e *ECG) BeatFrames() []int64 {
	every, first := e.spacing()
	var out []int64
	for t := first; ; t += every {
		frame := int64(math.Round(t / 1000 * e.Rate))
		if frame >= e.FrameCount() {
			return out
		}
		out = append(out, frame)
	}
}

func (e *ECG) spacing() (every, first float64) {
	every, first = e.BeatEveryMS, e.FirstBeatMS
	if every <= 0 {
		every = 800
	}
	if first <= 0 {
		first = 300
	}
	return every, first
}

// Value computes the sample of a lead at a frame.
func (e *ECG) Value(lead int, frame int64) float64 {
	every, first := e.spacing()
	ms := float64(frame) / e.Rate * 1000
	baseline := 0.05 * math.Sin(2*math.Pi*ms/1000)
	sinceFirst := ms - first
	if sinceFirst < -every/2 {
		return baseline
	}
	offset := math.Mod(sinceFirst+every/2, every) - every/2
	spike := 0.0
	const halfWidthMS = 12.0
	if d := math.Abs(offset); d < halfWidthMS {
		spike = 1 - d/halfWidthMS
	}
	amplitude := 1.0 - 0.1*float64(lead)
	if lead < len(e.LeadNames) && signal.LeadLabel(e.LeadNames[lead]) == "aVR" {
		amplitude = -amplitude
	}
	return baseline + amplitude*spike
}

// Frames implements signal.Source.
func (e *ECG) Frames(context.Context) (signal.FrameReader, error) {
	return &ecgReader{ecg: e, total: e.FrameCount()}, nil
}

type ecgReader struct {
	ecg   *ECG
	next  int64
	total int64
}

func (r *ecgReader) Next() (signal.Frame, error) {
	if r.next >= r.total {
		return signal.Frame{}, io.EOF
	}
	values := make([]float64, len(r.ecg.LeadNames))
	for i := range values {
		values[i] = r.ecg.Value(i, r.next)
	}
	frame := signal.Frame{Index: r.next, Values: values}
	r.next++
	return frame, nil
}

func (r *ecgReader) Close() error { return nil }

// MustCreateRecording writes the synthetic ECG into a new recording store at
// path, tags it as an EKG recording, and returns the reopened store.
func MustCreateRecording(t testing.TB, path string, ecg *ECG) *signal.Store {
	t.Helper()
	ctx := context.Background()

	store, err := signal.Create(ctx, path)
	if err != nil {
		t.Fatalf("create recording: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	channels := make([]signal.Channel, len(ecg.LeadNames))
	for i, name := range ecg.LeadNames {
		channels[i] = signal.Channel{Name: name, Unit: "mV"}
	}
	id, err := store.AddRecording(ctx, signal.RecordingInfo{
		SamplingRate: ecg.Rate,
		Description:  "synthetic",
		Channels:     channels,
	})
	if err != nil {
		t.Fatalf("add recording: %v", err)
	}
	if err := store.SetMeta(ctx, signal.MetaRecordingType, "EKG 6-lead"); err != nil {
		t.Fatalf("set meta: %v", err)
	}

	reader, err := ecg.Frames(ctx)
	if err != nil {
		t.Fatalf("frames: %v", err)
	}
	var frames []signal.Frame
	for {
		frame, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next frame: %v", err)
		}
		frames = append(frames, frame)
	}
	if err := store.AppendFrames(ctx, id, frames); err != nil {
		t.Fatalf("append frames: %v", err)
	}
	return store
}

package signal

import "context"

// Frame is one sample index across every lead, values in lead order.
type Frame struct {
	Index  int64
	Values []float64
}

// FrameReader yields frames in index order and returns io.EOF at the end.
type FrameReader interface {
	Next() (Frame, error)
	Close() error
}

// Source is a read-only view of one recording.
type Source interface {
	Leads() []string
	SamplingRate() float64
	// Frames opens a fresh stream positioned at the first frame.
	Frames(ctx context.Context) (FrameReader, error)
}

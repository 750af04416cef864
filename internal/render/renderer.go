package render

import (
	"context"
	"io"

	"wiffecg/internal/signal"
)

// Document is everything a renderer needs to draw one output.
type Document struct {
	Title        string
	Leads        []string
	SamplingRate float64
	Layout       Layout
	Frames       signal.FrameReader
	// Marks are beat frames drawn on every lead. Optional.
	Marks []int64
}

// Renderer writes one rendered output per call.
type Renderer interface {
	Render(ctx context.Context, w io.Writer, doc Document) error
}

// ExportPDF renders every page of src to w.
func ExportPDF(ctx context.Context, src signal.Source, w io.Writer, layout Layout, marks []int64) error {
	reader, err := src.Frames(ctx)
	if err != nil {
		return err
	}
	defer reader.Close()
	return NewPDF().Render(ctx, w, Document{
		Leads:        src.Leads(),
		SamplingRate: src.SamplingRate(),
		Layout:       layout,
		Frames:       reader,
		Marks:        marks,
	})
}

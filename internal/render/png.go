package render

import (
	"context"
	"fmt"
	"io"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// PNG draws the first page of a document as a strip image.
type PNG struct {
	Width  int
	Height int
}

// NewPNG returns a PNG renderer for the given image size.
func NewPNG(width, height int) *PNG {
	return &PNG{Width: width, Height: height}
}

// Render implements Renderer.
func (r *PNG) Render(ctx context.Context, w io.Writer, doc Document) error {
	if r.Width < 64 || r.Height < 64 {
		return fmt.Errorf("png size %dx%d is too small", r.Width, r.Height)
	}
	dc := gg.NewContext(r.Width, r.Height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	var drawn bool
	_, err := Paginate(ctx, doc.Frames, doc.Leads, doc.SamplingRate, doc.Layout, func(p Page) error {
		r.drawPage(dc, p, doc)
		drawn = true
		return ErrStop
	})
	if err != nil {
		return err
	}
	if !drawn {
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored("No samples recorded.", float64(r.Width)/2, float64(r.Height)/2, 0.5, 0.5)
	}
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

func (r *PNG) drawPage(dc *gg.Context, p Page, doc Document) {
	leads := len(p.Values)
	if leads == 0 {
		return
	}
	const (
		marginLeft   = 48.0
		marginRight  = 12.0
		marginTop    = 24.0
		marginBottom = 40.0
		panelGap     = 10.0
	)
	width, height := float64(r.Width), float64(r.Height)
	plotWidth := width - marginLeft - marginRight
	panelHeight := (height - marginTop - marginBottom - panelGap*float64(leads-1)) / float64(leads)
	span := doc.Layout.Seconds()
	toX := func(t float64) float64 { return marginLeft + (t-p.Start)/span*plotWidth }

	if doc.Title != "" {
		dc.SetRGB(0, 0, 0)
		dc.DrawString(doc.Title, marginLeft, marginTop-8)
	}

	marks := marksIn(doc.Marks, p.First, p.Last)
	for i, values := range p.Values {
		top := marginTop + float64(i)*(panelHeight+panelGap)
		bottom := top + panelHeight
		lo, hi := valueRange(values)
		toY := func(v float64) float64 { return bottom - (v-lo)/(hi-lo)*panelHeight }

		dc.SetRGB(0, 0, 0)
		dc.SetLineWidth(1)
		dc.DrawRectangle(marginLeft, top, plotWidth, panelHeight)
		dc.Stroke()
		dc.DrawStringAnchored(p.Labels[i], marginLeft-6, top+panelHeight/2, 1, 0.5)

		dc.SetRGB(0.6, 0.6, 0.6)
		for _, t := range tickPositions(p.Start, p.Start+span, minorTickSeconds) {
			x := toX(t)
			dc.DrawLine(x, bottom, x, bottom-3)
		}
		dc.Stroke()
		dc.SetRGB(0, 0, 0)
		for _, t := range tickPositions(p.Start, p.Start+span, majorTickSeconds) {
			x := toX(t)
			dc.DrawLine(x, bottom, x, bottom-7)
			dc.Stroke()
			dc.DrawStringAnchored(fmt.Sprintf("%.1f", t), x, bottom+3, 0.5, 1)
		}
		if i == leads-1 {
			dc.DrawStringAnchored("Time (sec)", marginLeft+plotWidth/2, bottom+24, 0.5, 1)
		}

		dc.SetRGB(0.08, 0.16, 0.63)
		dc.SetLineWidth(1.2)
		for j := range values {
			if j == 0 {
				dc.MoveTo(toX(p.Times[j]), toY(values[j]))
				continue
			}
			dc.LineTo(toX(p.Times[j]), toY(values[j]))
		}
		dc.Stroke()

		dc.SetRGB(0.8, 0.12, 0.12)
		for _, m := range marks {
			j := int(m - p.First)
			if j < 0 || j >= len(values) {
				continue
			}
			dc.DrawCircle(toX(p.Times[j]), toY(values[j]), 3)
			dc.Fill()
		}
	}
}

package render

import (
	"context"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// Letter portrait geometry in millimetres.
const (
	pdfPageWidth    = 215.9
	pdfPageHeight   = 279.4
	pdfMarginLeft   = 18.0
	pdfMarginRight  = 8.0
	pdfMarginTop    = 14.0
	pdfMarginBottom = 18.0
	pdfPanelGap     = 4.0

	majorTickSeconds = 0.5
	minorTickSeconds = 0.05
)

// PDF renders every page of a document into one PDF file.
type PDF struct{}

// NewPDF returns a PDF renderer.
func NewPDF() *PDF { return &PDF{} }

// Render implements Renderer.
func (r *PDF) Render(ctx context.Context, w io.Writer, doc Document) error {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreator("wiffecg", false)
	if doc.Title != "" {
		pdf.SetTitle(doc.Title, true)
	}

	pages, err := Paginate(ctx, doc.Frames, doc.Leads, doc.SamplingRate, doc.Layout, func(p Page) error {
		pdf.AddPage()
		drawPDFPage(pdf, p, doc)
		return pdf.Error()
	})
	if err != nil {
		return err
	}
	if pages == 0 {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "", 10)
		pdf.Text(pdfMarginLeft, pdfMarginTop+10, "No samples recorded.")
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func drawPDFPage(pdf *fpdf.Fpdf, p Page, doc Document) {
	leads := len(p.Values)
	if leads == 0 {
		return
	}
	plotWidth := pdfPageWidth - pdfMarginLeft - pdfMarginRight
	panelHeight := (pdfPageHeight - pdfMarginTop - pdfMarginBottom - pdfPanelGap*float64(leads-1)) / float64(leads)
	span := doc.Layout.Seconds()
	toX := func(t float64) float64 { return pdfMarginLeft + (t-p.Start)/span*plotWidth }

	if doc.Title != "" {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetTextColor(0, 0, 0)
		pdf.Text(pdfMarginLeft, pdfMarginTop-5, fmt.Sprintf("%s (page %d)", doc.Title, p.Number))
	}

	marks := marksIn(doc.Marks, p.First, p.Last)
	for i, values := range p.Values {
		top := pdfMarginTop + float64(i)*(panelHeight+pdfPanelGap)
		bottom := top + panelHeight
		lo, hi := valueRange(values)
		toY := func(v float64) float64 { return bottom - (v-lo)/(hi-lo)*panelHeight }

		pdf.SetDrawColor(0, 0, 0)
		pdf.SetLineWidth(0.2)
		pdf.Rect(pdfMarginLeft, top, plotWidth, panelHeight, "D")

		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(0, 0, 0)
		pdf.Text(2, top+panelHeight/2, p.Labels[i])

		pdf.SetLineWidth(0.1)
		for _, t := range tickPositions(p.Start, p.Start+span, minorTickSeconds) {
			x := toX(t)
			pdf.Line(x, bottom, x, bottom-0.8)
		}
		pdf.SetLineWidth(0.2)
		pdf.SetFont("Helvetica", "", 6)
		for _, t := range tickPositions(p.Start, p.Start+span, majorTickSeconds) {
			x := toX(t)
			pdf.Line(x, bottom, x, bottom-1.8)
			label := fmt.Sprintf("%.1f", t)
			pdf.Text(x-pdf.GetStringWidth(label)/2, bottom+2.6, label)
		}
		if i == leads-1 {
			pdf.SetFont("Helvetica", "", 8)
			label := "Time (sec)"
			pdf.Text(pdfMarginLeft+plotWidth/2-pdf.GetStringWidth(label)/2, bottom+7, label)
		}

		pdf.SetDrawColor(20, 40, 160)
		pdf.SetLineWidth(0.15)
		for j := 1; j < len(values); j++ {
			pdf.Line(toX(p.Times[j-1]), toY(values[j-1]), toX(p.Times[j]), toY(values[j]))
		}

		if len(marks) > 0 {
			pdf.SetFillColor(200, 30, 30)
			for _, m := range marks {
				j := int(m - p.First)
				if j < 0 || j >= len(values) {
					continue
				}
				pdf.Circle(toX(p.Times[j]), toY(values[j]), 0.6, "F")
			}
		}
	}
}

// Package render draws multi-lead waveforms.
//
// Paginate splits a frame stream into fixed time windows sized by the paper
// speed; the PDF renderer draws one page per window with go-pdf/fpdf and the
// PNG renderer draws the first window as a strip image with fogleman/gg.
package render

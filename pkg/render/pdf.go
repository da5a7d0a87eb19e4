package render

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/go-pdf/fpdf"

	"github.com/probe-labeler/probe-labeler/pkg/geometry"
	"github.com/probe-labeler/probe-labeler/pkg/types"
)

// Helvetica vertical metrics per unit of font size
const (
	helveticaAscent  = 0.718
	helveticaDescent = 0.207
)

// WritePDF writes the figure as a single-page PDF. The base image is embedded
// losslessly and the annotations are drawn as vector graphics on top of it.
func (f *Figure) WritePDF(w io.Writer) error {
	dpi := f.cfg.DPI
	toPt := geometry.Scale(72/dpi, 72/dpi)

	b := f.Base.Bounds()
	pageW, pageH := float64(b.Dx())*72/dpi, float64(b.Dy())*72/dpi

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: pageW, Ht: pageH},
	})
	pdf.SetCreator("probe-labeler", true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	var buf bytes.Buffer
	if err := png.Encode(&buf, f.Base); err != nil {
		return fmt.Errorf("failed to encode base image: %w", err)
	}
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("base", opts, &buf)
	pdf.ImageOptions("base", 0, 0, pageW, pageH, false, opts, 0, "")

	for _, m := range f.Markers {
		c := toPt.Apply(m.Center)
		setFill(pdf, m.Color)
		pdf.Circle(c.X, c.Y, m.Radius*72/dpi, "F")
	}
	pdf.SetAlpha(1, "Normal")

	style := "B"
	if f.cfg.FontWeight == types.FontNormal {
		style = ""
	}
	pdf.SetFont("Helvetica", style, f.cfg.FontSize)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, l := range f.Labels {
		pdfLabel(pdf, tr, toPt, l, f.cfg.FontSize)
	}

	sb := f.ScaleBar
	if sb.Length > 0 {
		start := toPt.Apply(sb.Start)
		end := toPt.Apply(geometry.Point2D{X: sb.Start.X + sb.Length, Y: sb.Start.Y})
		pdf.SetDrawColor(int(sb.Color.R), int(sb.Color.G), int(sb.Color.B))
		pdf.SetLineWidth(sb.Thickness)
		pdf.SetLineCapStyle("butt")
		pdf.Line(start.X, start.Y, end.X, end.Y)
	}
	pdfLabel(pdf, tr, toPt, sb.Caption, f.cfg.FontSize)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

func pdfLabel(pdf *fpdf.Fpdf, tr func(string) string, toPt geometry.AffineTransform, l Label, size float64) {
	if l.Text == "" {
		return
	}
	text := tr(l.Text)
	a := toPt.Apply(l.Anchor)
	w := pdf.GetStringWidth(text)

	if l.BBox {
		pad := bboxPad * size
		pdf.SetAlpha(bboxOpacity, "Normal")
		pdf.SetFillColor(255, 255, 255)
		pdf.Rect(a.X-w/2-pad, a.Y-helveticaAscent*size-pad,
			w+2*pad, (helveticaAscent+helveticaDescent)*size+2*pad, "F")
		pdf.SetAlpha(1, "Normal")
	}

	pdf.SetTextColor(int(l.Color.R), int(l.Color.G), int(l.Color.B))
	pdf.Text(a.X-w/2, a.Y, text)
}

func setFill(pdf *fpdf.Fpdf, c color.NRGBA) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
	if c.A < 255 {
		pdf.SetAlpha(math.Round(float64(c.A)/255*100)/100, "Normal")
	}
}

// Package render lays out sample markers, labels and a scale bar over a
// micrograph and writes the result as raster images or a vector PDF.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/probe-labeler/probe-labeler/pkg/geometry"
	"github.com/probe-labeler/probe-labeler/pkg/types"
)

const (
	// Caption sits this many pixels above the scale bar
	scaleBarCaptionGap = 20.0
	// Label box padding as a fraction of the font size
	bboxPad     = 0.3
	bboxOpacity = 0.7
)

// Marker is a filled circle centred on a sample position
type Marker struct {
	Center geometry.Point2D
	Radius float64 // px
	Color  color.NRGBA
}

// Label is a line of text centred horizontally on Anchor with its baseline at Anchor.Y
type Label struct {
	Text   string
	Anchor geometry.Point2D
	Color  color.NRGBA
	BBox   bool
}

// ScaleBar is a horizontal calibration bar with a caption above it
type ScaleBar struct {
	Start     geometry.Point2D
	Length    float64 // px
	Thickness float64 // pt
	Color     color.NRGBA
	Caption   Label
}

// Figure is the layout of one annotated image. Positions are in image
// pixels; sizes given in points are converted using the configured DPI.
type Figure struct {
	Base     *image.NRGBA
	Markers  []Marker
	Labels   []Label
	ScaleBar ScaleBar

	cfg   *types.AnnotationConfig
	face  font.Face
	dc    *gg.Context
	image image.Image
}

// NewFigure lays out markers and labels for points and a scale bar derived from meta
func NewFigure(base *image.NRGBA, points []types.PixelPoint, meta *types.ImageMetadata, cfg *types.AnnotationConfig) (*Figure, error) {
	if base == nil {
		return nil, errors.New("nil base image")
	}
	if meta == nil || cfg == nil {
		return nil, errors.New("missing metadata or annotation config")
	}

	f := &Figure{Base: base, cfg: cfg}
	radius := markerRadius(cfg.PointSize, cfg.DPI)

	for _, p := range points {
		f.Markers = append(f.Markers, Marker{
			Center: geometry.Point2D{X: p.X, Y: p.Y},
			Radius: radius,
			Color:  cfg.PointColor,
		})
		f.Labels = append(f.Labels, Label{
			Text:   p.Sample.SampleID,
			Anchor: geometry.Point2D{X: p.X + cfg.TextOffsetX, Y: p.Y + cfg.TextOffsetY},
			Color:  cfg.TextColor,
			BBox:   cfg.ShowBBox,
		})
	}

	length := math.Trunc(geometry.ScaleBarLength(meta))
	f.ScaleBar = ScaleBar{
		Start:     geometry.Point2D{X: cfg.ScaleBarX, Y: cfg.ScaleBarY},
		Length:    length,
		Thickness: cfg.ScaleBarThickness,
		Color:     cfg.ScaleBarColor,
		Caption: Label{
			Text:   ScaleBarCaption(meta.ScaleBarMicrons),
			Anchor: geometry.Point2D{X: cfg.ScaleBarX + length/2, Y: cfg.ScaleBarY - scaleBarCaptionGap},
			Color:  cfg.ScaleBarTextColor,
			BBox:   cfg.ShowBBox,
		},
	}

	return f, nil
}

// ScaleBarCaption formats the calibrated length, e.g. "10 µm"
func ScaleBarCaption(microns float64) string {
	if microns >= 1 {
		return strconv.Itoa(int(microns)) + " µm"
	}
	return strconv.FormatFloat(microns, 'f', -1, 64) + " µm"
}

// markerRadius converts a marker area in pt² into a radius in pixels
func markerRadius(area, dpi float64) float64 {
	if area <= 0 {
		return 0
	}
	return math.Sqrt(area) / 2 * dpi / 72
}

func ptToPx(v, dpi float64) float64 {
	return v * dpi / 72
}

// Image renders the figure onto a copy of the base image. The result is cached
// until Close.
func (f *Figure) Image() (image.Image, error) {
	if f.image != nil {
		return f.image, nil
	}

	face, err := newFace(f.cfg.FontWeight, f.cfg.FontSize, f.cfg.DPI)
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	f.face = face

	f.dc = gg.NewContextForImage(f.Base)
	f.dc.SetFontFace(face)

	for _, m := range f.Markers {
		f.dc.SetColor(m.Color)
		f.dc.DrawCircle(m.Center.X, m.Center.Y, m.Radius)
		f.dc.Fill()
	}

	for _, l := range f.Labels {
		f.drawLabel(l)
	}

	sb := f.ScaleBar
	if sb.Length > 0 {
		f.dc.SetColor(sb.Color)
		f.dc.SetLineWidth(ptToPx(sb.Thickness, f.cfg.DPI))
		f.dc.SetLineCapButt()
		f.dc.DrawLine(sb.Start.X, sb.Start.Y, sb.Start.X+sb.Length, sb.Start.Y)
		f.dc.Stroke()
	}
	f.drawLabel(sb.Caption)

	f.image = f.dc.Image()
	return f.image, nil
}

func (f *Figure) drawLabel(l Label) {
	if l.Text == "" {
		return
	}
	dc := f.dc
	x, y := l.Anchor.X, l.Anchor.Y

	if l.BBox {
		w, _ := dc.MeasureString(l.Text)
		m := f.face.Metrics()
		ascent := float64(m.Ascent) / 64
		descent := float64(m.Descent) / 64
		pad := bboxPad * ptToPx(f.cfg.FontSize, f.cfg.DPI)

		dc.SetRGBA(1, 1, 1, bboxOpacity)
		dc.DrawRectangle(x-w/2-pad, y-ascent-pad, w+2*pad, ascent+descent+2*pad)
		dc.Fill()
	}

	dc.SetColor(l.Color)
	// Thicker strokes are emulated by redrawing the glyphs at small offsets
	for t := 1; t < f.cfg.FontThickness; t++ {
		d := float64(t) / 2
		dc.DrawStringAnchored(l.Text, x-d, y, 0.5, 0)
		dc.DrawStringAnchored(l.Text, x+d, y, 0.5, 0)
	}
	dc.DrawStringAnchored(l.Text, x, y, 0.5, 0)
}

// Close releases the canvas and font face
func (f *Figure) Close() error {
	var err error
	if f.face != nil {
		err = f.face.Close()
		f.face = nil
	}
	f.dc = nil
	f.image = nil
	return err
}

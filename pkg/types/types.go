package types

import "image/color"

// ImageMetadata holds the acquisition geometry read from an image's sidecar file
type ImageMetadata struct {
	FullWidth       int     `json:"full_width"`
	FullHeight      int     `json:"full_height"`
	StageX          float64 `json:"stage_x"`
	StageY          float64 `json:"stage_y"`
	ScaleBarPixels  float64 `json:"scale_bar_pixels"`
	ScaleBarMicrons float64 `json:"scale_bar_microns"`
}

// PixelsPerMicron returns the calibration factor of the image
func (m ImageMetadata) PixelsPerMicron() float64 {
	return m.ScaleBarPixels / m.ScaleBarMicrons
}

// SampleRow is one measurement point from the tabular dataset.
// X and Y are in stage units (mm).
type SampleRow struct {
	SampleID string  `json:"sample_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Row      int     `json:"row"`
}

// PixelPoint is a sample projected into the cropped image
type PixelPoint struct {
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
	Sample SampleRow `json:"sample"`
}

// ExportFormat is one output file type
type ExportFormat string

const (
	FormatPNG  ExportFormat = "png"
	FormatTIFF ExportFormat = "tif"
	FormatPDF  ExportFormat = "pdf"
	FormatWebP ExportFormat = "webp"
)

// FontWeight selects the label typeface
type FontWeight string

const (
	FontBold   FontWeight = "bold"
	FontNormal FontWeight = "normal"
)

// AnnotationConfig is the resolved, validated annotation setup shared by every
// image of a run. It must not be modified once built.
type AnnotationConfig struct {
	PointColor        color.NRGBA
	TextColor         color.NRGBA
	ScaleBarColor     color.NRGBA
	ScaleBarTextColor color.NRGBA

	// PointSize is the marker area in points squared
	PointSize     float64
	TextOffsetX   float64
	TextOffsetY   float64
	FontSize      float64
	FontWeight    FontWeight
	FontThickness int

	ScaleBarX         float64
	ScaleBarY         float64
	ScaleBarThickness float64

	// Separators are the characters allowed between the image name and the
	// rest of a sample ID
	Separators    string
	MetaExtension string

	SampleIDColumn string
	XColumn        string
	YColumn        string

	ShowBBox bool
	DPI      float64
}

// ProcessingOptions contains options for a single run over one or more images
type ProcessingOptions struct {
	ImageDir       string
	ImageExtension string
	Formats        []ExportFormat
	Display        bool
	Workers        int
}

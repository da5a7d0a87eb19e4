package geometry

import "github.com/probe-labeler/probe-labeler/pkg/types"

// MicronsPerStageUnit converts stage coordinates (mm) to microns
const MicronsPerStageUnit = 1000.0

// StageTransform places stage positions on a cropped image. The image centre
// sits at the stage position recorded in the metadata. Stage X runs opposite to
// pixel columns, and the Y offset is subtracted since pixel rows grow downward.
type StageTransform struct {
	Center Point2D
	Stage  Point2D
	// PixelsPerUnit is pixels per stage unit (mm)
	PixelsPerUnit float64
}

// StageToPixel builds the transform for an image cropped to cropW x cropH
func StageToPixel(meta *types.ImageMetadata, cropW, cropH int) StageTransform {
	return StageTransform{
		Center:        Point2D{X: float64(cropW / 2), Y: float64(cropH / 2)},
		Stage:         Point2D{X: meta.StageX, Y: meta.StageY},
		PixelsPerUnit: MicronsPerStageUnit * meta.PixelsPerMicron(),
	}
}

// Affine returns the mapping as a matrix: shift the stage position to the
// origin, mirror X and scale to pixels, then move the origin to the centre.
func (s StageTransform) Affine() AffineTransform {
	k := s.PixelsPerUnit
	return Translation(-s.Stage.X, -s.Stage.Y).
		Compose(Scale(-k, k)).
		Compose(Translation(s.Center.X, s.Center.Y))
}

// Apply maps a stage position to pixel coordinates
func (s StageTransform) Apply(p Point2D) Point2D {
	return s.Affine().Apply(p)
}

// Invert maps pixel coordinates back to a stage position. It fails when the
// calibration gives zero pixels per micron.
func (s StageTransform) Invert(p Point2D) (Point2D, error) {
	inv, err := s.Affine().Inverse()
	if err != nil {
		return Point2D{}, err
	}
	return inv.Apply(p), nil
}

// Project places a sample row on an image cropped to cropW x cropH
func Project(meta *types.ImageMetadata, row types.SampleRow, cropW, cropH int) types.PixelPoint {
	p := StageToPixel(meta, cropW, cropH).Apply(Point2D{X: row.X, Y: row.Y})
	return types.PixelPoint{X: p.X, Y: p.Y, Sample: row}
}

// PixelToStage returns the stage position under a pixel of the cropped image
func PixelToStage(meta *types.ImageMetadata, px, py float64, cropW, cropH int) (Point2D, error) {
	return StageToPixel(meta, cropW, cropH).Invert(Point2D{X: px, Y: py})
}

// ScaleBarLength is the drawn scale bar length in pixels: the metadata bar
// length rescaled by the image's pixels-per-micron ratio.
func ScaleBarLength(meta *types.ImageMetadata) float64 {
	return meta.ScaleBarPixels * meta.PixelsPerMicron()
}

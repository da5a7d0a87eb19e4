// Package cropper removes the data bar some instruments append below the
// usable image area.
//
// The rule is a heuristic, not a region detector: when the raster height differs
// from the height declared in the image metadata, the image is cut to the
// declared size anchored at the top-left corner. An image whose height already
// matches is used as-is, even if its width doesn't.
package cropper

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ErrCropOutOfBounds is returned when the declared image area doesn't fit inside the raster
var ErrCropOutOfBounds = errors.New("declared image size exceeds raster")

// CropResult contains the result of a cropping operation
type CropResult struct {
	Image   *image.NRGBA
	Region  image.Rectangle
	Cropped bool
}

// CropToDeclared applies the footer crop policy to img given the metadata's full size
func CropToDeclared(img image.Image, fullWidth, fullHeight int) (CropResult, error) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return CropResult{}, fmt.Errorf("invalid image dimensions")
	}

	if bounds.Dy() == fullHeight {
		return CropResult{
			Image:  toNRGBA(img),
			Region: image.Rect(0, 0, bounds.Dx(), bounds.Dy()),
		}, nil
	}

	region := image.Rect(0, 0, fullWidth, fullHeight)
	if fullWidth <= 0 || fullHeight <= 0 || fullWidth > bounds.Dx() || fullHeight > bounds.Dy() {
		return CropResult{}, fmt.Errorf("%w: declared %dx%d, raster %dx%d",
			ErrCropOutOfBounds, fullWidth, fullHeight, bounds.Dx(), bounds.Dy())
	}

	return CropResult{
		Image:   imaging.Crop(img, region.Add(bounds.Min)),
		Region:  region,
		Cropped: true,
	}, nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}

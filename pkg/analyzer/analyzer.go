package analyzer

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageAnalyzer loads instrument images and reports their basic properties
type ImageAnalyzer struct {
	config Config
}

// Config holds configuration for the image analyzer
type Config struct {
	SupportedFormats []string
	MinImageSize     int
}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return &ImageAnalyzer{
		config: Config{
			SupportedFormats: []string{"tif", "tiff", "png", "jpg", "jpeg", "bmp", "gif", "webp"},
			MinImageSize:     1,
		},
	}
}

// LoadImage loads an image file and converts it to 8-bit RGBA. Greyscale
// acquisitions are expanded to three equal colour channels, so the returned
// image always has at least 3 channels. The info describes the file as decoded,
// before conversion.
func (a *ImageAnalyzer) LoadImage(path string) (*image.NRGBA, ImageInfo, error) {
	src, err := a.decode(path)
	if err != nil {
		return nil, ImageInfo{}, err
	}
	return imaging.Clone(src), a.GetImageInfo(src), nil
}

func (a *ImageAnalyzer) decode(path string) (image.Image, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if !a.isFormatSupported(ext) {
		return nil, fmt.Errorf("unsupported image format: %s", ext)
	}

	img, err := imaging.Open(path)
	if err == nil {
		return img, nil
	}
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}

	// imaging doesn't know every WebP variant
	if ext == "webp" {
		f, ferr := os.Open(path)
		if ferr != nil {
			return nil, fmt.Errorf("failed to open image file: %w", ferr)
		}
		defer f.Close()
		if wimg, werr := webp.Decode(f); werr == nil {
			return wimg, nil
		}
	}
	return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
}

// GetImageInfo returns basic information about an image
func (a *ImageAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	return ImageInfo{
		Width:       width,
		Height:      height,
		AspectRatio: float64(width) / float64(height),
		Channels:    channels(img.ColorModel()),
	}
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int
	Height      int
	AspectRatio float64
	Channels    int
}

func channels(m color.Model) int {
	switch m {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.AlphaModel, color.Alpha16Model:
		return 1
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model:
		return 4
	}
	return 3
}

func (a *ImageAnalyzer) isFormatSupported(format string) bool {
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

// ValidateImage checks if an image meets the minimum size. Any colour model is
// accepted since LoadImage expands greyscale to RGB.
func (a *ImageAnalyzer) ValidateImage(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() < a.config.MinImageSize || bounds.Dy() < a.config.MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			bounds.Dx(), bounds.Dy(), a.config.MinImageSize)
	}
	return nil
}

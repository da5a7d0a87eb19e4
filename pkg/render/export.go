package render

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/probe-labeler/probe-labeler/internal/utils"
	"github.com/probe-labeler/probe-labeler/pkg/types"
)

const (
	// OutputDirName is created inside the image directory to hold results
	OutputDirName = "labeled_images"
	// OutputSuffix is appended to the image stem of every output file
	OutputSuffix = "_labeled"
)

// ErrUnsupportedExportFormat is returned for an export selector token that names no known format
var ErrUnsupportedExportFormat = errors.New("unsupported export format")

var formatAliases = map[string]types.ExportFormat{
	"png":  types.FormatPNG,
	"tif":  types.FormatTIFF,
	"tiff": types.FormatTIFF,
	"pdf":  types.FormatPDF,
	"webp": types.FormatWebP,
}

// ParseExportSelector splits an "&"-joined selector such as "pdf&tif" into
// formats, in order and without duplicates.
func ParseExportSelector(selector string) ([]types.ExportFormat, error) {
	var formats []types.ExportFormat
	seen := make(map[types.ExportFormat]bool)

	for _, token := range strings.Split(selector, "&") {
		token = strings.ToLower(strings.TrimSpace(token))
		f, ok := formatAliases[token]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedExportFormat, token)
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}

	return formats, nil
}

// OutputDir returns the results directory for images in imageDir
func OutputDir(imageDir string) string {
	return filepath.Join(imageDir, OutputDirName)
}

// OutputPath returns the file an image's annotation is written to for format
func OutputPath(outputDir, imagePath string, format types.ExportFormat) string {
	return utils.GenerateOutputFilename(imagePath, outputDir, OutputSuffix, string(format))
}

// Export writes fig once per format into outputDir, creating it if needed,
// and returns the written paths.
func (f *Figure) Export(outputDir, imagePath string, formats []types.ExportFormat) ([]string, error) {
	if err := utils.EnsureDir(outputDir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	for _, format := range formats {
		path := OutputPath(outputDir, imagePath, format)

		var err error
		if format == types.FormatPDF {
			err = f.savePDF(path)
		} else {
			var img image.Image
			if img, err = f.Image(); err == nil {
				err = SaveImage(img, path, format)
			}
		}
		if err != nil {
			return written, fmt.Errorf("failed to export %s: %w", format, err)
		}
		written = append(written, path)
	}

	return written, nil
}

func (f *Figure) savePDF(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.WritePDF(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// SaveImage saves a raster image to path in the given format
func SaveImage(img image.Image, path string, format types.ExportFormat) error {
	switch format {
	case types.FormatWebP:
		out, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := webp.Encode(out, img, &webp.Options{Lossless: true}); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	case types.FormatPNG, types.FormatTIFF:
		// imaging picks the encoder from the file extension
		return imaging.Save(img, path)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedExportFormat, format)
	}
}

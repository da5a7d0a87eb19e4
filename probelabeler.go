// Package probelabeler annotates electron microprobe images with the positions
// and IDs of the analysis points recorded in a sample table.
//
// Each acquisition is a raster image plus a sidecar text file written by the
// instrument. The sidecar gives the image size, the stage position of the image
// centre and the scale bar calibration; the sample table lists every analysis
// point with its stage coordinates. Points are selected for an image when their
// sample ID contains the image name followed by a separator anywhere in it, e.g.
// "img1-001" and also "old-img1-007" for img1.tif.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"github.com/cyclopcam/logs"
//		probelabeler "github.com/probe-labeler/probe-labeler"
//		"github.com/probe-labeler/probe-labeler/pkg/types"
//	)
//
//	func main() {
//		logger, _ := logs.NewLog()
//		labeler := probelabeler.New(logger)
//
//		table, err := labeler.LoadTable("data/samples.xlsx", "Sheet1")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		result, err := labeler.AnnotateImage(context.Background(), table, "data/img1.tif",
//			[]types.ExportFormat{types.FormatPDF, types.FormatTIFF}, false)
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("wrote %v", result.Outputs)
//	}
//
// The package consists of these components:
//
//  1. Metadata (pkg/metadata): parses the sidecar file
//  2. Samples (pkg/samples): loads the table and matches rows to images
//  3. Geometry (pkg/geometry): maps stage coordinates to pixels
//  4. Render (pkg/render): draws markers, labels and the scale bar and exports them
//  5. Batch (pkg/batch): annotates a whole directory
package probelabeler

import (
	"context"
	"fmt"

	"github.com/cyclopcam/logs"

	"github.com/probe-labeler/probe-labeler/internal/config"
	"github.com/probe-labeler/probe-labeler/pkg/analyzer"
	"github.com/probe-labeler/probe-labeler/pkg/annotate"
	"github.com/probe-labeler/probe-labeler/pkg/batch"
	"github.com/probe-labeler/probe-labeler/pkg/cropper"
	"github.com/probe-labeler/probe-labeler/pkg/geometry"
	"github.com/probe-labeler/probe-labeler/pkg/metadata"
	"github.com/probe-labeler/probe-labeler/pkg/samples"
	"github.com/probe-labeler/probe-labeler/pkg/types"
)

// Version of the probe labeler library
const Version = "1.0.0"

// ProbeLabeler provides a high-level interface for annotating acquisitions
type ProbeLabeler struct {
	cfg    *types.AnnotationConfig
	log    logs.Log
	viewer annotate.Viewer
}

// New creates a ProbeLabeler with the default annotation settings
func New(log logs.Log) *ProbeLabeler {
	cfg, err := config.Default().Resolve()
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return NewWithConfig(cfg, log)
}

// NewWithConfig creates a ProbeLabeler with custom annotation settings. cfg
// must not be modified afterwards.
func NewWithConfig(cfg *types.AnnotationConfig, log logs.Log) *ProbeLabeler {
	return &ProbeLabeler{cfg: cfg, log: log}
}

// SetViewer sets the viewer used for runs that request display
func (p *ProbeLabeler) SetViewer(v annotate.Viewer) {
	p.viewer = v
}

// Columns returns the sample table columns in use
func (p *ProbeLabeler) Columns() samples.Columns {
	return samples.Columns{SampleID: p.cfg.SampleIDColumn, X: p.cfg.XColumn, Y: p.cfg.YColumn}
}

// LoadTable loads the sample table. sheet is ignored for csv files.
func (p *ProbeLabeler) LoadTable(path, sheet string) (*samples.Table, error) {
	return samples.LoadTable(path, sheet, p.Columns())
}

// AnnotateImage annotates a single image with the matching rows of table
func (p *ProbeLabeler) AnnotateImage(ctx context.Context, table *samples.Table, imagePath string, formats []types.ExportFormat, display bool) (*annotate.Result, error) {
	a := annotate.New(p.cfg, table, p.log)
	if p.viewer != nil {
		a.SetViewer(p.viewer)
	}
	return a.AnnotateImage(ctx, imagePath, formats, display)
}

// ProcessImages annotates every image in opts.ImageDir
func (p *ProbeLabeler) ProcessImages(ctx context.Context, tablePath, sheet string, opts types.ProcessingOptions) (*batch.Summary, error) {
	runner := batch.NewRunner(p.cfg, p.log)
	if p.viewer != nil {
		runner.SetViewer(p.viewer)
	}
	return runner.Run(ctx, batch.Options{
		ProcessingOptions: opts,
		TablePath:         tablePath,
		Sheet:             sheet,
		Columns:           p.Columns(),
	})
}

// Locate converts a pixel position in the annotated (cropped) image back to
// stage coordinates.
func (p *ProbeLabeler) Locate(imagePath string, px, py float64) (geometry.Point2D, error) {
	meta, err := metadata.ParseFile(metadata.SidecarPath(imagePath, p.cfg.MetaExtension))
	if err != nil {
		return geometry.Point2D{}, err
	}

	img, _, err := analyzer.New().LoadImage(imagePath)
	if err != nil {
		return geometry.Point2D{}, err
	}
	crop, err := cropper.CropToDeclared(img, meta.FullWidth, meta.FullHeight)
	if err != nil {
		return geometry.Point2D{}, err
	}

	stage, err := geometry.PixelToStage(meta, px, py, crop.Region.Dx(), crop.Region.Dy())
	if err != nil {
		return geometry.Point2D{}, fmt.Errorf("failed to locate pixel in %v: %w", imagePath, err)
	}
	return stage, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

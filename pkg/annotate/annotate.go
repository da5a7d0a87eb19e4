// Package annotate runs the single-image pipeline: read the sidecar, load and
// crop the image, select the samples named after it, project them into pixel
// space and export the annotated figure.
package annotate

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/cyclopcam/logs"

	"github.com/probe-labeler/probe-labeler/internal/utils"
	"github.com/probe-labeler/probe-labeler/pkg/analyzer"
	"github.com/probe-labeler/probe-labeler/pkg/cropper"
	"github.com/probe-labeler/probe-labeler/pkg/geometry"
	"github.com/probe-labeler/probe-labeler/pkg/metadata"
	"github.com/probe-labeler/probe-labeler/pkg/render"
	"github.com/probe-labeler/probe-labeler/pkg/samples"
	"github.com/probe-labeler/probe-labeler/pkg/types"
)

// ErrNoMatchingSamples is reported, not returned, when no table row belongs to an image
var ErrNoMatchingSamples = errors.New("no matching samples")

// Viewer presents a rendered figure to the user
type Viewer interface {
	Show(name string, img image.Image) error
}

// Result describes one annotated image
type Result struct {
	Image    string
	Outputs  []string
	Matched  int
	Cropped  bool
	Warnings []error
}

// Annotator holds what stays fixed across the images of a run
type Annotator struct {
	cfg      *types.AnnotationConfig
	table    *samples.Table
	analyzer *analyzer.ImageAnalyzer
	log      logs.Log
	viewer   Viewer
}

// New creates an annotator. cfg and table are shared read-only and may be used
// from several goroutines.
func New(cfg *types.AnnotationConfig, table *samples.Table, log logs.Log) *Annotator {
	return &Annotator{
		cfg:      cfg,
		table:    table,
		analyzer: analyzer.New(),
		log:      log,
	}
}

// SetViewer sets the viewer used when display is requested
func (a *Annotator) SetViewer(v Viewer) {
	a.viewer = v
}

// AnnotateImage annotates one image and writes it in every requested format
// to the labeled_images directory beside it.
func (a *Annotator) AnnotateImage(ctx context.Context, imagePath string, formats []types.ExportFormat, display bool) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := &Result{Image: imagePath}
	name := filepath.Base(imagePath)

	meta, err := metadata.ParseFile(metadata.SidecarPath(imagePath, a.cfg.MetaExtension))
	if err != nil {
		return nil, err
	}

	img, info, err := a.analyzer.LoadImage(imagePath)
	if err != nil {
		return nil, err
	}
	if err := a.analyzer.ValidateImage(img); err != nil {
		return nil, fmt.Errorf("invalid image %v: %w", name, err)
	}
	if info.Channels < 3 {
		a.log.Debugf("Expanded %v from %v channel(s) to RGB", name, info.Channels)
	}

	crop, err := cropper.CropToDeclared(img, meta.FullWidth, meta.FullHeight)
	if err != nil {
		return nil, err
	}
	result.Cropped = crop.Cropped
	if crop.Cropped {
		a.log.Debugf("Cropped %v from %vx%v to %vx%v", name,
			img.Bounds().Dx(), img.Bounds().Dy(), crop.Region.Dx(), crop.Region.Dy())
	}

	rows := a.table.Match(utils.ImageStem(imagePath), a.cfg.Separators)
	result.Matched = len(rows)
	if len(rows) == 0 {
		result.Warnings = append(result.Warnings, fmt.Errorf("%w for %v", ErrNoMatchingSamples, name))
		a.log.Warnf("No samples in %v match %v", a.table.Source, name)
	}

	w, h := crop.Image.Bounds().Dx(), crop.Image.Bounds().Dy()
	points := make([]types.PixelPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, geometry.Project(meta, row, w, h))
	}

	fig, err := render.NewFigure(crop.Image, points, meta, a.cfg)
	if err != nil {
		return nil, err
	}
	defer fig.Close()

	outDir := render.OutputDir(filepath.Dir(imagePath))
	result.Outputs, err = fig.Export(outDir, imagePath, formats)
	if err != nil {
		return result, err
	}
	for _, out := range result.Outputs {
		if info, err := os.Stat(out); err == nil {
			a.log.Infof("Wrote %v (%v)", out, utils.FormatFileSize(info.Size()))
		}
	}

	if display && a.viewer != nil {
		if err := a.show(fig, name); err != nil {
			a.log.Warnf("Failed to display %v: %v", name, err)
		}
	}

	return result, nil
}

func (a *Annotator) show(fig *render.Figure, name string) error {
	img, err := fig.Image()
	if err != nil {
		return err
	}
	return a.viewer.Show(name, img)
}

// Package batch annotates every matching image in a directory.
package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cyclopcam/logs"
	"golang.org/x/sync/errgroup"

	"github.com/probe-labeler/probe-labeler/internal/utils"
	"github.com/probe-labeler/probe-labeler/pkg/annotate"
	"github.com/probe-labeler/probe-labeler/pkg/samples"
	"github.com/probe-labeler/probe-labeler/pkg/types"
)

// DefaultImageExtension selects the files a batch processes
const DefaultImageExtension = ".tif"

// Options describes one batch run
type Options struct {
	types.ProcessingOptions

	TablePath string
	Sheet     string
	Columns   samples.Columns
}

// Skip records an image that could not be annotated
type Skip struct {
	Image string
	Err   error
}

// Summary reports the outcome of a batch
type Summary struct {
	Processed []*annotate.Result
	Skipped   []Skip
}

// Outputs lists every file written, in image order
func (s *Summary) Outputs() []string {
	var out []string
	for _, r := range s.Processed {
		out = append(out, r.Outputs...)
	}
	return out
}

// Runner holds the shared state of batch runs
type Runner struct {
	cfg    *types.AnnotationConfig
	log    logs.Log
	viewer annotate.Viewer
}

// NewRunner creates a batch runner
func NewRunner(cfg *types.AnnotationConfig, log logs.Log) *Runner {
	return &Runner{cfg: cfg, log: log}
}

// SetViewer sets the viewer used when opts.Display is true
func (r *Runner) SetViewer(v annotate.Viewer) {
	r.viewer = v
}

// Run annotates the images of opts.ImageDir. Failures of single images are
// logged and collected in the summary; only problems that affect every image
// (unreadable table, unlistable directory, cancellation) are returned.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	if len(opts.Formats) == 0 {
		return nil, errors.New("no export formats selected")
	}
	ext := opts.ImageExtension
	if ext == "" {
		ext = DefaultImageExtension
	}

	table, err := samples.LoadTable(opts.TablePath, opts.Sheet, opts.Columns)
	if err != nil {
		return nil, fmt.Errorf("failed to load sample table: %w", err)
	}
	r.log.Infof("Loaded %v samples from %v", len(table.Rows), table.Source)

	files, err := utils.ListFilesWithExtension(opts.ImageDir, ext)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		r.log.Warnf("No %v files in %v", ext, opts.ImageDir)
		return &Summary{}, nil
	}

	annotator := annotate.New(r.cfg, table, r.log)
	if r.viewer != nil {
		annotator.SetViewer(r.viewer)
	}

	return r.process(ctx, annotator, files, opts), ctx.Err()
}

func (r *Runner) process(ctx context.Context, annotator *annotate.Annotator, files []string, opts Options) *Summary {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]*annotate.Result, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, file := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i], errs[i] = annotator.AnnotateImage(gctx, file, opts.Formats, opts.Display)
			return nil
		})
	}
	g.Wait()

	summary := &Summary{}
	for i, file := range files {
		switch {
		case errs[i] != nil:
			r.log.Warnf("Skipping %v: %v", filepath.Base(file), errs[i])
			summary.Skipped = append(summary.Skipped, Skip{Image: file, Err: errs[i]})
		case results[i] != nil:
			summary.Processed = append(summary.Processed, results[i])
		}
	}
	r.log.Infof("Annotated %v of %v images", len(summary.Processed), len(files))

	return summary
}

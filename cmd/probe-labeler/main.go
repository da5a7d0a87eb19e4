package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"

	probelabeler "github.com/probe-labeler/probe-labeler"
	"github.com/probe-labeler/probe-labeler/internal/config"
	"github.com/probe-labeler/probe-labeler/internal/utils"
	"github.com/probe-labeler/probe-labeler/pkg/annotate"
	"github.com/probe-labeler/probe-labeler/pkg/render"
	"github.com/probe-labeler/probe-labeler/pkg/types"
)

func main() {
	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	parser := argparse.NewParser("probe-labeler", "Annotate microprobe images with sample positions and a scale bar")
	configFile := parser.String("c", "config", &argparse.Options{Help: "JSON configuration file (default: " + config.GetConfigPath() + " if present)", Default: ""})
	export := parser.String("e", "export", &argparse.Options{Help: "Output formats joined by '&': png, tif, pdf, webp (eg pdf&tif)", Default: ""})
	ext := parser.String("", "ext", &argparse.Options{Help: "Extension of the images to process", Default: ""})
	bbox := parser.Flag("", "bbox", &argparse.Options{Help: "Draw a white box behind labels", Default: false})
	noBBox := parser.Flag("", "no-bbox", &argparse.Options{Help: "Don't draw a box behind labels", Default: false})
	show := parser.Flag("", "show", &argparse.Options{Help: "Open each annotated image in the system viewer", Default: false})
	workers := parser.Int("w", "workers", &argparse.Options{Help: "Number of images processed concurrently", Default: 0})
	writeConfig := parser.String("", "write-config", &argparse.Options{Help: "Write the effective configuration to this file and exit", Default: ""})

	singleCmd := parser.NewCommand("single", "Annotate one image")
	singleDir := singleCmd.String("i", "images", &argparse.Options{Help: "Directory holding the image and its metadata file", Required: true})
	singleFile := singleCmd.String("f", "file", &argparse.Options{Help: "Image file name, eg img1.tif", Required: true})
	singleTable := singleCmd.String("t", "table", &argparse.Options{Help: "Sample table (.xlsx or .csv)", Required: true})
	singleSheet := singleCmd.String("s", "sheet", &argparse.Options{Help: "Worksheet name (xlsx only)", Default: ""})

	batchCmd := parser.NewCommand("batch", "Annotate every image in a directory")
	batchDir := batchCmd.String("i", "images", &argparse.Options{Help: "Directory holding the images and their metadata files", Required: true})
	batchTable := batchCmd.String("t", "table", &argparse.Options{Help: "Sample table (.xlsx or .csv)", Required: true})
	batchSheet := batchCmd.String("s", "sheet", &argparse.Options{Help: "Worksheet name (xlsx only)", Default: ""})

	locateCmd := parser.NewCommand("locate", "Print the stage position under a pixel of an annotated image")
	locateFile := locateCmd.String("f", "file", &argparse.Options{Help: "Image file", Required: true})
	locateX := locateCmd.Float("x", "px", &argparse.Options{Help: "Pixel column", Required: true})
	locateY := locateCmd.Float("y", "py", &argparse.Options{Help: "Pixel row", Required: true})

	err = parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	if *bbox {
		cfg.Annotation.ShowBBox = true
	}
	if *noBBox {
		cfg.Annotation.ShowBBox = false
	}

	run := cfg.RunConfig()
	if *export != "" {
		run.Export = *export
	}
	if *ext != "" {
		run.Extension = *ext
	}
	if *workers > 0 {
		run.Workers = *workers
	}
	run.Display = *show
	cfg.Output.Export = run.Export
	cfg.Output.ImageExtension = run.Extension
	cfg.Output.Workers = run.Workers

	if *writeConfig != "" {
		if err := cfg.SaveToFile(*writeConfig); err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
		logger.Infof("Configuration written to %v", *writeConfig)
		return
	}

	annotation, err := cfg.Resolve()
	if err != nil {
		logger.Errorf("Invalid configuration: %v", err)
		os.Exit(1)
	}
	formats, err := render.ParseExportSelector(run.Export)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	labeler := probelabeler.NewWithConfig(annotation, logger)
	if run.Display {
		labeler.SetViewer(annotate.SystemViewer{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case singleCmd.Happened():
		run.ImageDir, run.ImageFile, run.TablePath, run.Sheet = *singleDir, *singleFile, *singleTable, sheetOr(*singleSheet, run.Sheet)
		err = runSingle(ctx, labeler, run, formats)
	case batchCmd.Happened():
		run.ImageDir, run.TablePath, run.Sheet = *batchDir, *batchTable, sheetOr(*batchSheet, run.Sheet)
		err = runBatch(ctx, labeler, run, formats, logger)
	case locateCmd.Happened():
		err = runLocate(labeler, *locateFile, *locateX, *locateY)
	}
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

// loadConfig reads the named file, or the default config file when it exists
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.GetConfigPath()
		if !utils.FileExists(path) {
			return config.Default(), nil
		}
	}
	return config.LoadFromFile(path)
}

func sheetOr(sheet, fallback string) string {
	if sheet != "" {
		return sheet
	}
	return fallback
}

func runSingle(ctx context.Context, labeler *probelabeler.ProbeLabeler, run config.RunConfig, formats []types.ExportFormat) error {
	if err := run.Validate(); err != nil {
		return err
	}
	table, err := labeler.LoadTable(run.TablePath, run.Sheet)
	if err != nil {
		return fmt.Errorf("failed to load sample table: %w", err)
	}

	imagePath := filepath.Join(run.ImageDir, run.ImageFile)
	result, err := labeler.AnnotateImage(ctx, table, imagePath, formats, run.Display)
	if err != nil {
		return fmt.Errorf("failed to annotate %v: %w", run.ImageFile, err)
	}
	for _, out := range result.Outputs {
		fmt.Println(out)
	}
	return nil
}

func runBatch(ctx context.Context, labeler *probelabeler.ProbeLabeler, run config.RunConfig, formats []types.ExportFormat, logger logs.Log) error {
	if err := run.Validate(); err != nil {
		return err
	}
	summary, err := labeler.ProcessImages(ctx, run.TablePath, run.Sheet, types.ProcessingOptions{
		ImageDir:       run.ImageDir,
		ImageExtension: run.Extension,
		Formats:        formats,
		Display:        run.Display,
		Workers:        run.Workers,
	})
	if err != nil {
		return err
	}
	for _, out := range summary.Outputs() {
		fmt.Println(out)
	}
	if len(summary.Skipped) > 0 {
		logger.Warnf("%v images skipped", len(summary.Skipped))
	}
	return nil
}

func runLocate(labeler *probelabeler.ProbeLabeler, imagePath string, px, py float64) error {
	p, err := labeler.Locate(imagePath, px, py)
	if err != nil {
		return err
	}
	fmt.Printf("X=%.6f Y=%.6f\n", p.X, p.Y)
	return nil
}

package probelabeler

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/probe-labeler/probe-labeler/pkg/samples"
	"github.com/probe-labeler/probe-labeler/pkg/types"
)

// createAcquisition writes an image with a 40 px data bar and its sidecar
func createAcquisition(t *testing.T, dir, stem string) string {
	img := imaging.New(640, 520, color.NRGBA{64, 64, 64, 255})
	path := filepath.Join(dir, stem+".tif")
	require.NoError(t, imaging.Save(img, path))

	sidecar := "$CM_FULL_SIZE 640 480\n$CM_STAGE_POS 10.0 20.0 11.0\n$$SM_MICRON_BAR 100\n$$SM_MICRON_MARKER 20um\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, stem+".txt"), []byte(sidecar), 0644))
	return path
}

func createTable(t *testing.T, dir string) string {
	path := filepath.Join(dir, "samples.csv")
	data := "SAMPLE,X_POS,Y_POS\ngrain1-001,10.0,20.0\ngrain1-002,10.01,20.01\ngrain2_a,10.0,20.0\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func TestNew(t *testing.T) {
	labeler := New(logs.NewTestingLog(t))
	require.NotNil(t, labeler)
	require.Equal(t, samples.DefaultColumns(), labeler.Columns())
	require.Equal(t, 300.0, labeler.cfg.DPI)
}

func TestAnnotateImage(t *testing.T) {
	dir := t.TempDir()
	path := createAcquisition(t, dir, "grain1")

	labeler := New(logs.NewTestingLog(t))
	table, err := labeler.LoadTable(createTable(t, dir), "")
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)

	result, err := labeler.AnnotateImage(context.Background(), table, path,
		[]types.ExportFormat{types.FormatPDF, types.FormatTIFF}, false)
	require.NoError(t, err)
	require.Equal(t, 2, result.Matched)
	require.True(t, result.Cropped)
	require.Equal(t, []string{
		filepath.Join(dir, "labeled_images", "grain1_labeled.pdf"),
		filepath.Join(dir, "labeled_images", "grain1_labeled.tif"),
	}, result.Outputs)

	out, err := imaging.Open(result.Outputs[1])
	require.NoError(t, err)
	require.Equal(t, 640, out.Bounds().Dx())
	require.Equal(t, 480, out.Bounds().Dy())
}

func TestProcessImages(t *testing.T) {
	dir := t.TempDir()
	createAcquisition(t, dir, "grain1")
	createAcquisition(t, dir, "grain2")
	tablePath := createTable(t, t.TempDir())

	labeler := New(logs.NewTestingLog(t))
	summary, err := labeler.ProcessImages(context.Background(), tablePath, "", types.ProcessingOptions{
		ImageDir:       dir,
		ImageExtension: ".tif",
		Formats:        []types.ExportFormat{types.FormatPNG},
		Workers:        2,
	})
	require.NoError(t, err)
	require.Len(t, summary.Processed, 2)
	require.Empty(t, summary.Skipped)
	require.Len(t, summary.Outputs(), 2)
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()
	path := createAcquisition(t, dir, "grain1")

	labeler := New(logs.NewTestingLog(t))
	p, err := labeler.Locate(path, 320, 240)
	require.NoError(t, err)
	require.InDelta(t, 10.0, p.X, 1e-9)
	require.InDelta(t, 20.0, p.Y, 1e-9)

	// 5 px/µm: 50 px left of centre is 0.01 mm further along X
	p, err = labeler.Locate(path, 270, 240)
	require.NoError(t, err)
	require.InDelta(t, 10.01, p.X, 1e-9)

	_, err = labeler.Locate(filepath.Join(dir, "missing.tif"), 0, 0)
	require.Error(t, err)
}

func TestLoadTableErrors(t *testing.T) {
	labeler := New(logs.NewTestingLog(t))

	_, err := labeler.LoadTable(filepath.Join(t.TempDir(), "samples.ods"), "")
	require.True(t, errors.Is(err, samples.ErrUnsupportedTable))
}

func TestGetVersion(t *testing.T) {
	require.Equal(t, Version, GetVersion())
}

package annotate

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/probe-labeler/probe-labeler/pkg/metadata"
	"github.com/probe-labeler/probe-labeler/pkg/samples"
	"github.com/probe-labeler/probe-labeler/pkg/types"
)

var (
	grey  = color.NRGBA{40, 40, 40, 255}
	red   = color.NRGBA{255, 0, 0, 255}
	white = color.NRGBA{255, 255, 255, 255}
)

func testConfig() *types.AnnotationConfig {
	return &types.AnnotationConfig{
		PointColor:        red,
		TextColor:         color.NRGBA{65, 105, 225, 255},
		ScaleBarColor:     white,
		ScaleBarTextColor: white,
		PointSize:         100,
		TextOffsetY:       -30,
		FontSize:          7,
		FontWeight:        types.FontBold,
		FontThickness:     2,
		ScaleBarX:         50,
		ScaleBarY:         700,
		ScaleBarThickness: 2,
		Separators:        samples.DefaultSeparators,
		MetaExtension:     ".txt",
		DPI:               72,
	}
}

// writeAcquisition writes a grey image with a white data bar of footer rows
// and its sidecar file
func writeAcquisition(t *testing.T, dir, stem string, footer int) string {
	img := imaging.New(1024, 768+footer, grey)
	for y := 768; y < 768+footer; y++ {
		for x := 0; x < 1024; x++ {
			img.SetNRGBA(x, y, white)
		}
	}
	path := filepath.Join(dir, stem+".tif")
	require.NoError(t, imaging.Save(img, path))

	sidecar := "$CM_FULL_SIZE 1024 768\n$CM_STAGE_POS 10.0 20.0\n$$SM_MICRON_BAR 50.0\n$$SM_MICRON_MARKER 10u\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, stem+".txt"), []byte(sidecar), 0644))
	return path
}

func testTable() *samples.Table {
	return &samples.Table{
		Source: "samples.csv",
		Rows: []types.SampleRow{
			{SampleID: "img1-001", X: 10.0, Y: 20.0, Row: 2},
			{SampleID: "img2-001", X: 10.01, Y: 20.0, Row: 3},
		},
	}
}

func at(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func TestAnnotateEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := writeAcquisition(t, dir, "img1", 32)

	a := New(testConfig(), testTable(), logs.NewTestingLog(t))
	result, err := a.AnnotateImage(context.Background(), path, []types.ExportFormat{types.FormatPNG, types.FormatPDF}, false)
	require.NoError(t, err)

	require.Equal(t, 1, result.Matched)
	require.True(t, result.Cropped)
	require.Empty(t, result.Warnings)
	require.Equal(t, []string{
		filepath.Join(dir, "labeled_images", "img1_labeled.png"),
		filepath.Join(dir, "labeled_images", "img1_labeled.pdf"),
	}, result.Outputs)

	out, err := imaging.Open(result.Outputs[0])
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 1024, 768), out.Bounds())

	// Sample at the stage position lands on the image centre
	require.Equal(t, red, at(out, 512, 384))

	// 50 px bar at 5 px/µm is 250 px long
	require.Equal(t, white, at(out, 51, 700))
	require.Equal(t, white, at(out, 298, 700))
	require.Equal(t, grey, at(out, 305, 700))

	// Footer is gone
	require.Equal(t, grey, at(out, 1000, 767))
}

func TestAnnotateOffsetSample(t *testing.T) {
	dir := t.TempDir()
	path := writeAcquisition(t, dir, "img2", 0)

	a := New(testConfig(), testTable(), logs.NewTestingLog(t))
	result, err := a.AnnotateImage(context.Background(), path, []types.ExportFormat{types.FormatPNG}, false)
	require.NoError(t, err)
	require.False(t, result.Cropped)

	out, err := imaging.Open(result.Outputs[0])
	require.NoError(t, err)

	// 0.01 mm left of the stage position at 5 px/µm is 50 px right of centre
	require.Equal(t, red, at(out, 462, 384))
	require.Equal(t, grey, at(out, 512, 384))
}

func TestAnnotateNoMatchingSamples(t *testing.T) {
	dir := t.TempDir()
	path := writeAcquisition(t, dir, "img9", 32)

	a := New(testConfig(), testTable(), logs.NewTestingLog(t))
	result, err := a.AnnotateImage(context.Background(), path, []types.ExportFormat{types.FormatTIFF}, false)
	require.NoError(t, err)

	require.Equal(t, 0, result.Matched)
	require.Len(t, result.Warnings, 1)
	require.True(t, errors.Is(result.Warnings[0], ErrNoMatchingSamples))

	// The image is still written, with only the scale bar
	require.Len(t, result.Outputs, 1)
	require.FileExists(t, result.Outputs[0])
}

func TestAnnotateDottedImageName(t *testing.T) {
	dir := t.TempDir()
	path := writeAcquisition(t, dir, "grain.v2", 0)
	require.NoFileExists(t, filepath.Join(dir, "grain.txt"))

	table := &samples.Table{Rows: []types.SampleRow{
		{SampleID: "grain.v2-001", X: 10.0, Y: 20.0, Row: 2},
		{SampleID: "grain-001", X: 10.01, Y: 20.0, Row: 3},
	}}
	a := New(testConfig(), table, logs.NewTestingLog(t))
	result, err := a.AnnotateImage(context.Background(), path, []types.ExportFormat{types.FormatPNG}, false)
	require.NoError(t, err)

	// The stem keeps everything before the final extension
	require.Equal(t, 1, result.Matched)
	require.Equal(t, []string{filepath.Join(dir, "labeled_images", "grain.v2_labeled.png")}, result.Outputs)

	out, err := imaging.Open(result.Outputs[0])
	require.NoError(t, err)
	require.Equal(t, red, at(out, 512, 384))
	require.Equal(t, grey, at(out, 462, 384))
}

func TestAnnotateMissingSidecar(t *testing.T) {
	dir := t.TempDir()
	path := writeAcquisition(t, dir, "img1", 32)
	require.NoError(t, os.Remove(filepath.Join(dir, "img1.txt")))

	a := New(testConfig(), testTable(), logs.NewTestingLog(t))
	_, err := a.AnnotateImage(context.Background(), path, []types.ExportFormat{types.FormatPNG}, false)
	require.True(t, errors.Is(err, metadata.ErrMetadataNotFound))
	require.NoDirExists(t, filepath.Join(dir, "labeled_images"))
}

func TestAnnotateCancelled(t *testing.T) {
	dir := t.TempDir()
	path := writeAcquisition(t, dir, "img1", 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := New(testConfig(), testTable(), logs.NewTestingLog(t))
	_, err := a.AnnotateImage(ctx, path, []types.ExportFormat{types.FormatPNG}, false)
	require.ErrorIs(t, err, context.Canceled)
}

type recordingViewer struct {
	shown []string
	fail  bool
}

func (v *recordingViewer) Show(name string, img image.Image) error {
	v.shown = append(v.shown, fmt.Sprintf("%v %vx%v", name, img.Bounds().Dx(), img.Bounds().Dy()))
	if v.fail {
		return errors.New("no display")
	}
	return nil
}

func TestAnnotateDisplay(t *testing.T) {
	dir := t.TempDir()
	path := writeAcquisition(t, dir, "img1", 32)

	viewer := &recordingViewer{}
	a := New(testConfig(), testTable(), logs.NewTestingLog(t))
	a.SetViewer(viewer)

	_, err := a.AnnotateImage(context.Background(), path, []types.ExportFormat{types.FormatPNG}, false)
	require.NoError(t, err)
	require.Empty(t, viewer.shown)

	_, err = a.AnnotateImage(context.Background(), path, []types.ExportFormat{types.FormatPNG}, true)
	require.NoError(t, err)
	require.Equal(t, []string{"img1.tif 1024x768"}, viewer.shown)

	// A viewer failure doesn't fail the image
	viewer.fail = true
	_, err = a.AnnotateImage(context.Background(), path, nil, true)
	require.NoError(t, err)
	require.Len(t, viewer.shown, 2)
}

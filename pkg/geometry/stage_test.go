package geometry

import (
	"testing"

	"github.com/probe-labeler/probe-labeler/pkg/types"
	"github.com/stretchr/testify/require"
)

func testMetadata() *types.ImageMetadata {
	return &types.ImageMetadata{
		FullWidth:       1024,
		FullHeight:      768,
		StageX:          10.0,
		StageY:          20.0,
		ScaleBarPixels:  50.0,
		ScaleBarMicrons: 10.0,
	}
}

func TestProjectAtStagePositionIsCenter(t *testing.T) {
	meta := testMetadata()
	pt := Project(meta, types.SampleRow{SampleID: "img1-001", X: 10.0, Y: 20.0}, 1024, 768)
	require.InDelta(t, 512.0, pt.X, 1e-9)
	require.InDelta(t, 384.0, pt.Y, 1e-9)
	require.Equal(t, "img1-001", pt.Sample.SampleID)

	// Odd crop sizes use the floor of the half
	pt = Project(meta, types.SampleRow{X: 10.0, Y: 20.0}, 1023, 767)
	require.InDelta(t, 511.0, pt.X, 1e-9)
	require.InDelta(t, 383.0, pt.Y, 1e-9)

	for _, stage := range []Point2D{{-3.217, 44.1}, {0, 0}, {12.5, -7.75}} {
		meta.StageX, meta.StageY = stage.X, stage.Y
		pt = Project(meta, types.SampleRow{X: stage.X, Y: stage.Y}, 640, 480)
		require.InDelta(t, 320.0, pt.X, 1e-6)
		require.InDelta(t, 240.0, pt.Y, 1e-6)
	}
}

func TestProjectOffsets(t *testing.T) {
	meta := testMetadata() // 5 px/um -> 5000 px/mm

	// 0.01 mm = 10 um = 50 px
	pt := Project(meta, types.SampleRow{X: 9.99, Y: 20.0}, 1024, 768)
	require.InDelta(t, 562.0, pt.X, 1e-6)
	require.InDelta(t, 384.0, pt.Y, 1e-6)

	pt = Project(meta, types.SampleRow{X: 10.01, Y: 20.0}, 1024, 768)
	require.InDelta(t, 462.0, pt.X, 1e-6)
}

func TestProjectYAxisDirection(t *testing.T) {
	meta := testMetadata()
	prev := Project(meta, types.SampleRow{X: 10, Y: 19.98}, 1024, 768).Y
	for _, y := range []float64{19.99, 20.0, 20.01, 20.02} {
		cur := Project(meta, types.SampleRow{X: 10, Y: y}, 1024, 768).Y
		// Sample Y and pixel row move together, with a fixed 50 px per 10 um step
		require.Greater(t, cur, prev)
		require.InDelta(t, 50.0, cur-prev, 1e-6)
		prev = cur
	}

	// Moving the stage instead moves the point the other way
	a := Project(meta, types.SampleRow{X: 10, Y: 20}, 1024, 768).Y
	meta.StageY = 20.01
	b := Project(meta, types.SampleRow{X: 10, Y: 20}, 1024, 768).Y
	require.Less(t, b, a)
}

func TestInvertRoundTrip(t *testing.T) {
	meta := testMetadata()
	for _, row := range []types.SampleRow{{X: 9.95, Y: 20.03}, {X: 10.07, Y: 19.9}, {X: 10, Y: 20}} {
		pt := Project(meta, row, 1024, 768)
		stage, err := PixelToStage(meta, pt.X, pt.Y, 1024, 768)
		require.NoError(t, err)
		require.InDelta(t, row.X, stage.X, 1e-9)
		require.InDelta(t, row.Y, stage.Y, 1e-9)
	}

	// 50 px right of centre is 0.01 mm back along stage X
	stage, err := PixelToStage(meta, 562, 384, 1024, 768)
	require.NoError(t, err)
	require.InDelta(t, 9.99, stage.X, 1e-9)
	require.InDelta(t, 20.0, stage.Y, 1e-9)
}

func TestInvertZeroCalibration(t *testing.T) {
	meta := testMetadata()
	meta.ScaleBarPixels = 0

	_, err := PixelToStage(meta, 10, 10, 1024, 768)
	require.ErrorIs(t, err, ErrSingularTransform)
}

func TestStageTransformAffine(t *testing.T) {
	st := StageToPixel(testMetadata(), 1024, 768)
	m := st.Affine()

	// Mirrored X, unmirrored Y, 5000 px/mm
	require.Equal(t, -5000.0, m.A)
	require.Equal(t, 5000.0, m.D)
	require.Zero(t, m.B)
	require.Zero(t, m.C)
	require.InDelta(t, 512.0+5000*10, m.TX, 1e-6)
	require.InDelta(t, 384.0-5000*20, m.TY, 1e-6)
}

func TestAffineCompose(t *testing.T) {
	// Scale first, then shift
	m := Scale(2, 3).Compose(Translation(10, -5))
	require.Equal(t, Point2D{X: 12, Y: -2}, m.Apply(Point2D{X: 1, Y: 1}))

	// Shift first, then scale
	m = Translation(10, -5).Compose(Scale(2, 3))
	require.Equal(t, Point2D{X: 22, Y: -12}, m.Apply(Point2D{X: 1, Y: 1}))

	rot := AffineTransform{A: 0, B: -1, C: 1, D: 0}
	m = rot.Compose(Translation(4, 0))
	require.Equal(t, Point2D{X: 4, Y: 1}, m.Apply(Point2D{X: 1, Y: 0}))
}

func TestAffineInverse(t *testing.T) {
	for _, m := range []AffineTransform{
		Translation(3, -7),
		Scale(-5000, 5000).Compose(Translation(512, 384)),
		{A: 0, B: -2, TX: 1, C: 3, D: 1, TY: -4},
	} {
		inv, err := m.Inverse()
		require.NoError(t, err)
		for _, p := range []Point2D{{0, 0}, {10.02, 19.97}, {-3, 8}} {
			require.InDelta(t, 0, inv.Apply(m.Apply(p)).Distance(p), 1e-9)
		}
	}

	_, err := Scale(0, 1).Inverse()
	require.ErrorIs(t, err, ErrSingularTransform)
	_, err = AffineTransform{A: 1, B: 2, C: 2, D: 4}.Inverse()
	require.ErrorIs(t, err, ErrSingularTransform)
}

func TestScaleBarLength(t *testing.T) {
	require.Equal(t, 250.0, ScaleBarLength(testMetadata()))
}

func BenchmarkProject(b *testing.B) {
	meta := testMetadata()
	row := types.SampleRow{X: 10.01, Y: 19.99}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Project(meta, row, 1024, 768)
	}
}

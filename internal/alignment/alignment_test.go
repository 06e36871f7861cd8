package alignment

import (
	"context"
	"errors"
	"image"
	"math/rand"
	"testing"

	"plate-aligner/internal/config"
	"plate-aligner/internal/plate"
	"plate-aligner/internal/testutil"
	"plate-aligner/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

const (
	bandW = testutil.BandWidth
	bandH = testutil.BandHeight
)

func assertTranslation(t *testing.T, h geometry.Homography, want image.Point) {
	t.Helper()
	center := geometry.NewPoint2D(bandW/2, bandH/2)
	got := h.Apply(center).Sub(center)
	assert.InDelta(t, float64(want.X), got.X, 1.0, "x shift")
	assert.InDelta(t, float64(want.Y), got.Y, 1.0, "y shift")
}

func TestAlignRecoversTranslatedBands(t *testing.T) {
	blueShift := image.Pt(6, -4)
	redShift := image.Pt(-5, 3)
	p := testutil.ShiftedPlate(t, blueShift, redShift)
	defer p.Close()

	opts := DefaultOptions()
	opts.MaxFeatures = 2000

	for _, model := range []Model{ModelHomography, ModelAffine} {
		t.Run(model.String(), func(t *testing.T) {
			opts.Model = model
			res, err := Align(context.Background(), p, opts)
			require.NoError(t, err)
			defer res.Close()

			require.Len(t, res.Pairs, 2)
			assert.Equal(t, plate.Green, res.Reference)

			blue, ok := res.Pair(plate.Blue)
			require.True(t, ok)
			assert.Equal(t, int(float64(blue.RawMatches)*opts.KeepFraction), len(blue.Matches))
			assert.GreaterOrEqual(t, blue.Inliers, 4)
			assert.Less(t, blue.RMSError, 2.0)
			assertTranslation(t, blue.Transform, blueShift)
			assert.Greater(t, blue.Overlap, 0.9)

			red, ok := res.Pair(plate.Red)
			require.True(t, ok)
			assertTranslation(t, red.Transform, redShift)

			for _, ch := range []plate.Channel{plate.Blue, plate.Red} {
				w := res.Warped[ch]
				assert.Equal(t, bandW, w.Cols(), ch.String())
				assert.Equal(t, bandH, w.Rows(), ch.String())
			}
		})
	}
}

func TestAlignHonoursCancellation(t *testing.T) {
	p := testutil.ShiftedPlate(t, image.Pt(2, 2), image.Pt(-2, -2))
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Align(ctx, p, DefaultOptions())
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestEstimateHomographyWithOutliers(t *testing.T) {
	truth := geometry.Homography{
		1.05, 0.02, 12,
		-0.03, 0.97, -8,
		2e-5, 1e-5, 1,
	}
	rng := rand.New(rand.NewSource(3))
	var src, dst []geometry.Point2D
	for i := 0; i < 60; i++ {
		p := geometry.NewPoint2D(rng.Float64()*500, rng.Float64()*400)
		src = append(src, p)
		dst = append(dst, truth.Apply(p))
	}
	for i := 0; i < 15; i++ {
		src = append(src, geometry.NewPoint2D(rng.Float64()*500, rng.Float64()*400))
		dst = append(dst, geometry.NewPoint2D(rng.Float64()*500, rng.Float64()*400))
	}

	h, inliers, err := EstimateHomography(src, dst, 3.0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(inliers), 60)

	for _, p := range src[:60] {
		want := truth.Apply(p)
		got := h.Apply(p)
		assert.InDelta(t, want.X, got.X, 0.1)
		assert.InDelta(t, want.Y, got.Y, 0.1)
	}
}

func TestEstimateHomographyRejectsTooFewPoints(t *testing.T) {
	pts := []geometry.Point2D{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}
	_, _, err := EstimateHomography(pts, pts, 3)
	assert.True(t, errors.Is(err, ErrTooFewMatches))

	_, _, err = EstimateHomography(pts, pts[:2], 3)
	assert.Error(t, err)
}

func TestEstimateAffineWithOutliers(t *testing.T) {
	truth := geometry.AffineTransform{A: 0.99, B: -0.01, TX: 4.5, C: 0.012, D: 1.01, TY: -2.25}
	rng := rand.New(rand.NewSource(9))
	var src, dst []geometry.Point2D
	for i := 0; i < 40; i++ {
		p := geometry.NewPoint2D(rng.Float64()*300, rng.Float64()*200)
		src = append(src, p)
		dst = append(dst, truth.Apply(p))
	}
	for i := 0; i < 10; i++ {
		src = append(src, geometry.NewPoint2D(rng.Float64()*300, rng.Float64()*200))
		dst = append(dst, geometry.NewPoint2D(rng.Float64()*300, rng.Float64()*200))
	}

	got, inliers, err := EstimateAffine(src, dst, 500, 1.0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(inliers), 40)
	assert.InDelta(t, truth.A, got.A, 1e-6)
	assert.InDelta(t, truth.TX, got.TX, 1e-4)
	assert.InDelta(t, truth.TY, got.TY, 1e-4)

	_, _, err = EstimateAffine(src[:2], dst[:2], 10, 1.0)
	assert.True(t, errors.Is(err, ErrTooFewMatches))
}

func TestWarpPerspectiveTranslates(t *testing.T) {
	src := gocv.NewMatWithSize(20, 20, gocv.MatTypeCV8U)
	defer src.Close()
	src.SetUCharAt(5, 5, 255)

	out := WarpPerspective(src, geometry.HomographyFromAffine(geometry.Translation(3, 2)), 20, 20)
	defer out.Close()
	assert.Equal(t, uint8(255), out.GetUCharAt(7, 8))
	assert.Equal(t, uint8(0), out.GetUCharAt(5, 5))

	aff := WarpAffine(src, geometry.Translation(3, 2), 20, 20)
	defer aff.Close()
	assert.Equal(t, uint8(255), aff.GetUCharAt(7, 8))
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel("Affine")
	require.NoError(t, err)
	assert.Equal(t, ModelAffine, m)

	m, err = ParseModel("")
	require.NoError(t, err)
	assert.Equal(t, ModelHomography, m)

	_, err = ParseModel("thin-plate")
	assert.Error(t, err)

	c := config.Default()
	c.Model = config.ModelAffine
	opts, err := OptionsFromConfig(c)
	require.NoError(t, err)
	assert.Equal(t, ModelAffine, opts.Model)
	assert.Equal(t, c.MaxFeatures, opts.MaxFeatures)
}

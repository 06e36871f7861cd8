// Package testutil provides synthetic plates for tests.
package testutil

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"plate-aligner/internal/plate"

	"gocv.io/x/gocv"
)

// Synthetic band geometry used by ShiftedPlate.
const (
	BandWidth  = 400
	BandHeight = 300
	Margin     = 40
)

// TexturedScene draws a deterministic scatter of filled boxes and discs on
// a mid-gray single-channel canvas. The caller must close the result.
func TexturedScene(t testing.TB, w, h int, seed int64) gocv.Mat {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 0, 0, 0), h, w, gocv.MatTypeCV8U)
	for i := 0; i < 220; i++ {
		v := uint8(rng.Intn(256))
		c := color.RGBA{R: v, G: v, B: v, A: 255}
		x, y := rng.Intn(w), rng.Intn(h)
		if i%2 == 0 {
			gocv.Rectangle(&m, image.Rect(x, y, x+8+rng.Intn(30), y+8+rng.Intn(30)), c, -1)
		} else {
			gocv.Circle(&m, image.Pt(x, y), 4+rng.Intn(14), c, -1)
		}
	}
	return m
}

// ShiftedPlate stacks three crops of one scene into a plate. A band cropped
// at offset (dx, dy) from the green crop maps onto green by translation (dx, dy).
// Offsets must stay within Margin.
func ShiftedPlate(t testing.TB, blue, red image.Point) *plate.Plate {
	t.Helper()
	scene := TexturedScene(t, BandWidth+2*Margin, BandHeight+2*Margin, 42)
	defer scene.Close()

	crop := func(off image.Point) gocv.Mat {
		r := image.Rect(Margin+off.X, Margin+off.Y, Margin+off.X+BandWidth, Margin+off.Y+BandHeight)
		region := scene.Region(r)
		defer region.Close()
		return region.Clone()
	}
	b, g, r := crop(blue), crop(image.Point{}), crop(red)
	defer b.Close()
	defer g.Close()
	defer r.Close()

	bg := gocv.NewMat()
	defer bg.Close()
	gocv.Vconcat(b, g, &bg)
	stacked := gocv.NewMat()
	defer stacked.Close()
	gocv.Vconcat(bg, r, &stacked)

	p, err := plate.FromMat("synthetic", stacked)
	if err != nil {
		t.Fatalf("build synthetic plate: %v", err)
	}
	return p
}

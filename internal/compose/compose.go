// Package compose merges plate bands into color images for comparison.
package compose

import (
	"fmt"

	"plate-aligner/internal/alignment"
	"plate-aligner/internal/plate"

	"gocv.io/x/gocv"
)

// Merge stacks three single-channel images into a BGR image.
// The caller must close the result.
func Merge(b, g, r gocv.Mat) (gocv.Mat, error) {
	if b.Empty() || g.Empty() || r.Empty() {
		return gocv.Mat{}, fmt.Errorf("merge: empty channel")
	}
	if b.Rows() != g.Rows() || b.Cols() != g.Cols() || r.Rows() != g.Rows() || r.Cols() != g.Cols() {
		return gocv.Mat{}, fmt.Errorf("merge: channel sizes differ: b=%dx%d g=%dx%d r=%dx%d",
			b.Cols(), b.Rows(), g.Cols(), g.Rows(), r.Cols(), r.Rows())
	}

	dst := gocv.NewMat()
	gocv.Merge([]gocv.Mat{b, g, r}, &dst)
	return dst, nil
}

// Naive superimposes the unaligned bands.
func Naive(p *plate.Plate) (gocv.Mat, error) {
	return Merge(p.Band(plate.Blue), p.Band(plate.Green), p.Band(plate.Red))
}

// Aligned merges the warped blue and red bands with the reference green band.
func Aligned(p *plate.Plate, res *alignment.Result) (gocv.Mat, error) {
	if _, ok := res.Pair(plate.Blue); !ok {
		return gocv.Mat{}, fmt.Errorf("aligned: no blue registration")
	}
	if _, ok := res.Pair(plate.Red); !ok {
		return gocv.Mat{}, fmt.Errorf("aligned: no red registration")
	}
	return Merge(res.Warped[plate.Blue], p.Band(plate.Green), res.Warped[plate.Red])
}

// SideBySide concatenates images horizontally. All inputs need the same
// height and type. The caller must close the result.
func SideBySide(mats ...gocv.Mat) (gocv.Mat, error) {
	if len(mats) == 0 {
		return gocv.Mat{}, fmt.Errorf("side by side: no images")
	}
	for i, m := range mats {
		if m.Empty() {
			return gocv.Mat{}, fmt.Errorf("side by side: image %d is empty", i)
		}
		if m.Rows() != mats[0].Rows() || m.Type() != mats[0].Type() {
			return gocv.Mat{}, fmt.Errorf("side by side: image %d is %dx%d type %v, want height %d type %v",
				i, m.Cols(), m.Rows(), m.Type(), mats[0].Rows(), mats[0].Type())
		}
	}

	out := mats[0].Clone()
	for _, m := range mats[1:] {
		next := gocv.NewMat()
		gocv.Hconcat(out, m, &next)
		out.Close()
		out = next
	}
	return out, nil
}

// Comparison returns the naive merge on the left and the aligned merge on the right.
func Comparison(p *plate.Plate, res *alignment.Result) (gocv.Mat, error) {
	naive, err := Naive(p)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer naive.Close()

	aligned, err := Aligned(p, res)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer aligned.Close()

	return SideBySide(naive, aligned)
}

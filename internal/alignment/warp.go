package alignment

import (
	"image"
	"image/color"

	"plate-aligner/pkg/geometry"

	"gocv.io/x/gocv"
)

// Pixels mapped from outside the source band. WarpPerspective uses the same
// black border by default.
var borderFill = color.RGBA{}

// WarpPerspective resamples src through h into a width x height image.
func WarpPerspective(src gocv.Mat, h geometry.Homography, width, height int) gocv.Mat {
	m := homographyToMat(h)
	defer m.Close()

	dst := gocv.NewMat()
	gocv.WarpPerspective(src, &dst, m, image.Pt(width, height))
	return dst
}

// WarpAffine resamples src through t. It is cheaper than WarpPerspective
// for transforms with no projective part.
func WarpAffine(src gocv.Mat, t geometry.AffineTransform, width, height int) gocv.Mat {
	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	defer m.Close()
	for i, v := range [6]float64{t.A, t.B, t.TX, t.C, t.D, t.TY} {
		m.SetDoubleAt(i/3, i%3, v)
	}

	dst := gocv.NewMat()
	gocv.WarpAffineWithParams(src, &dst, m, image.Pt(width, height),
		gocv.InterpolationLinear, gocv.BorderConstant, borderFill)
	return dst
}

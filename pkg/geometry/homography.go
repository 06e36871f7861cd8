package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Homography is a 3x3 projective transform stored row-major.
// [h0 h1 h2]
// [h3 h4 h5]
// [h6 h7 h8]
type Homography [9]float64

// Determinants below this are treated as singular.
const degenerateDet = 1e-10

// IdentityHomography returns the identity homography.
func IdentityHomography() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// HomographyFromAffine embeds an affine transform as a homography with last row [0 0 1].
func HomographyFromAffine(t AffineTransform) Homography {
	return Homography{
		t.A, t.B, t.TX,
		t.C, t.D, t.TY,
		0, 0, 1,
	}
}

// Apply maps a point through the homography. Points mapped to infinity
// come back with infinite coordinates.
func (h Homography) Apply(p Point2D) Point2D {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if w == 0 {
		return Point2D{X: math.Inf(1), Y: math.Inf(1)}
	}
	return Point2D{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}

// Compose returns h * other, i.e. other is applied first.
func (h Homography) Compose(other Homography) Homography {
	var out mat.Dense
	out.Mul(h.dense(), other.dense())
	return fromDense(&out)
}

// Determinant returns the determinant of the 3x3 matrix.
func (h Homography) Determinant() float64 {
	return mat.Det(h.dense())
}

// Inverse returns the inverse homography normalized so that h8 == 1 when possible.
func (h Homography) Inverse() (Homography, error) {
	if h.IsDegenerate() {
		return Homography{}, fmt.Errorf("homography is singular (det=%g)", h.Determinant())
	}

	var inv mat.Dense
	if err := inv.Inverse(h.dense()); err != nil {
		return Homography{}, fmt.Errorf("invert homography: %w", err)
	}
	return fromDense(&inv).Normalize(), nil
}

// Normalize scales the matrix so the bottom-right element is 1.
// Matrices with a zero h8 are returned unchanged.
func (h Homography) Normalize() Homography {
	if h[8] == 0 {
		return h
	}
	var out Homography
	for i, v := range h {
		out[i] = v / h[8]
	}
	return out
}

// IsDegenerate reports whether the matrix is singular or contains non-finite values.
func (h Homography) IsDegenerate() bool {
	for _, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return math.Abs(h.Determinant()) < degenerateDet
}

// ToAffine returns the affine part when the last row is [0 0 1].
func (h Homography) ToAffine() (AffineTransform, bool) {
	n := h.Normalize()
	if math.Abs(n[6]) > 1e-12 || math.Abs(n[7]) > 1e-12 {
		return AffineTransform{}, false
	}
	return AffineTransform{
		A: n[0], B: n[1], TX: n[2],
		C: n[3], D: n[4], TY: n[5],
	}, true
}

// Translation returns where the origin is mapped to.
func (h Homography) Translation() Point2D {
	return h.Apply(Point2D{})
}

func (h Homography) dense() *mat.Dense {
	data := make([]float64, 9)
	copy(data, h[:])
	return mat.NewDense(3, 3, data)
}

func fromDense(m *mat.Dense) Homography {
	var h Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h[r*3+c] = m.At(r, c)
		}
	}
	return h
}

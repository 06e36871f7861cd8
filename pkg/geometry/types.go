// Package geometry provides the point and transform types shared by the alignment code.
package geometry

import "math"

// Point2D is a position in band pixel coordinates, x to the right and y down.
type Point2D struct {
	X, Y float64
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to q.
func (p Point2D) Distance(q Point2D) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Sub returns the vector from q to p.
func (p Point2D) Sub(q Point2D) Point2D {
	return Point2D{X: p.X - q.X, Y: p.Y - q.Y}
}

// AffineTransform is the top two rows of a 3x3 homogeneous matrix:
//
//	x' = A*x + B*y + TX
//	y' = C*x + D*y + TY
type AffineTransform struct {
	A, B, TX float64
	C, D, TY float64
}

// Translation returns a pure shift by (tx, ty).
func Translation(tx, ty float64) AffineTransform {
	return AffineTransform{A: 1, D: 1, TX: tx, TY: ty}
}

// Apply maps p through the transform.
func (t AffineTransform) Apply(p Point2D) Point2D {
	return Point2D{
		X: t.A*p.X + t.B*p.Y + t.TX,
		Y: t.C*p.X + t.D*p.Y + t.TY,
	}
}

// RMSError returns the root-mean-square distance between project(src[i]) and dst[i].
// Returns +Inf when the sets are empty or of different length.
func RMSError(src, dst []Point2D, project func(Point2D) Point2D) float64 {
	if len(src) != len(dst) || len(src) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range src {
		d := project(src[i]).Distance(dst[i])
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(src)))
}

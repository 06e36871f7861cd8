package geometry

import "math"

// Rect returns the corners of the axis-aligned w x h rectangle at the origin,
// ordered so that IntersectPolygons treats its interior as inside.
func Rect(w, h float64) []Point2D {
	return []Point2D{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}
}

// Area returns the unsigned area of a simple polygon (shoelace formula).
func Area(polygon []Point2D) float64 {
	if len(polygon) < 3 {
		return 0
	}
	var sum float64
	o := polygon[0]
	for i := 1; i < len(polygon)-1; i++ {
		sum += crossProduct(o, polygon[i], polygon[i+1])
	}
	return math.Abs(sum) / 2
}

// Overlap returns the fraction of a w x h frame that is covered by the same
// frame after mapping it through h. A degenerate mapping, or one that sends
// a corner to or beyond the line at infinity, covers nothing.
func Overlap(h Homography, w, ht float64) float64 {
	if h.IsDegenerate() || w <= 0 || ht <= 0 {
		return 0
	}
	frame := Rect(w, ht)
	quad := make([]Point2D, len(frame))
	for i, c := range frame {
		// Homogeneous scale of the mapped corner; the quad folds when it is not positive.
		if h[6]*c.X+h[7]*c.Y+h[8] <= 0 {
			return 0
		}
		quad[i] = h.Apply(c)
	}
	return Area(IntersectPolygons(quad, frame)) / (w * ht)
}

// IntersectPolygons clips subject against the convex polygon clip, one clip
// edge at a time. clip must wind so that its interior lies left of each edge
// in y-down coordinates, as Rect does. Returns nil when nothing remains.
func IntersectPolygons(subject, clip []Point2D) []Point2D {
	if len(subject) < 3 || len(clip) < 3 {
		return nil
	}
	poly := append([]Point2D(nil), subject...)
	for i, a := range clip {
		b := clip[(i+1)%len(clip)]
		poly = clipHalfPlane(poly, a, b)
		if len(poly) < 3 {
			return nil
		}
	}
	return poly
}

// clipHalfPlane keeps the part of poly on the inner side of the line a->b.
func clipHalfPlane(poly []Point2D, a, b Point2D) []Point2D {
	var out []Point2D
	prev := poly[len(poly)-1]
	prevSide := crossProduct(a, b, prev)
	for _, cur := range poly {
		side := crossProduct(a, b, cur)
		if (side >= 0) != (prevSide >= 0) {
			// Edge prev->cur crosses the line; side values are signed distances times |ab|.
			t := prevSide / (prevSide - side)
			out = append(out, Point2D{X: prev.X + t*(cur.X-prev.X), Y: prev.Y + t*(cur.Y-prev.Y)})
		}
		if side >= 0 {
			out = append(out, cur)
		}
		prev, prevSide = cur, side
	}
	return out
}

// crossProduct computes the cross product of vectors OA and OB.
func crossProduct(o, a, b Point2D) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

package alignment

import (
	"fmt"
	"math/rand"

	"plate-aligner/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

// affineSeed fixes the sampling order so repeated runs on the same plate agree.
const affineSeed = 1

// EstimateAffine fits an affine transform src -> dst with RANSAC on random
// 3-point samples, then refits on the consensus set. It returns the indices
// of the inlier correspondences alongside the transform.
func EstimateAffine(src, dst []geometry.Point2D, iterations int, threshold float64) (geometry.AffineTransform, []int, error) {
	if len(src) != len(dst) {
		return geometry.AffineTransform{}, nil, fmt.Errorf("point count mismatch: %d vs %d", len(src), len(dst))
	}
	if len(src) < minAffinePoints {
		return geometry.AffineTransform{}, nil, fmt.Errorf("need at least %d points, got %d: %w",
			minAffinePoints, len(src), ErrTooFewMatches)
	}

	rng := rand.New(rand.NewSource(affineSeed))
	var (
		best      geometry.AffineTransform
		consensus []int
	)
	var sampleSrc, sampleDst [minAffinePoints]geometry.Point2D
	for iter := 0; iter < iterations; iter++ {
		for i, idx := range rng.Perm(len(src))[:minAffinePoints] {
			sampleSrc[i], sampleDst[i] = src[idx], dst[idx]
		}
		candidate, err := fitAffine(sampleSrc[:], sampleDst[:])
		if err != nil {
			// Collinear sample.
			continue
		}
		if in := inliersWithin(src, dst, candidate.Apply, threshold); len(in) > len(consensus) {
			best, consensus = candidate, in
		}
	}

	if len(consensus) < minAffinePoints {
		return geometry.AffineTransform{}, nil, fmt.Errorf("RANSAC found %d inliers: %w", len(consensus), ErrDegenerateTransform)
	}

	inSrc, inDst := subset(src, consensus), subset(dst, consensus)
	if refined, err := fitAffine(inSrc, inDst); err == nil {
		best = refined
	}
	return best, consensus, nil
}

// inliersWithin returns the indices i for which project(src[i]) lies closer
// than threshold to dst[i].
func inliersWithin(src, dst []geometry.Point2D, project func(geometry.Point2D) geometry.Point2D, threshold float64) []int {
	var in []int
	for i := range src {
		if project(src[i]).Distance(dst[i]) < threshold {
			in = append(in, i)
		}
	}
	return in
}

func subset(pts []geometry.Point2D, idx []int) []geometry.Point2D {
	out := make([]geometry.Point2D, len(idx))
	for i, j := range idx {
		out[i] = pts[j]
	}
	return out
}

// fitAffine solves for the six affine parameters in the least-squares sense.
// With exactly three pairs the fit is exact.
//
//	| x y 1 0 0 0 | |a  b  tx c  d  ty|^T = | x' |
//	| 0 0 0 x y 1 |                         | y' |
func fitAffine(src, dst []geometry.Point2D) (geometry.AffineTransform, error) {
	if len(src) < minAffinePoints || len(src) != len(dst) {
		return geometry.AffineTransform{}, fmt.Errorf("affine fit needs %d or more paired points", minAffinePoints)
	}

	rows := 2 * len(src)
	design := mat.NewDense(rows, 6, nil)
	obs := mat.NewVecDense(rows, nil)
	for i, p := range src {
		design.SetRow(2*i, []float64{p.X, p.Y, 1, 0, 0, 0})
		design.SetRow(2*i+1, []float64{0, 0, 0, p.X, p.Y, 1})
		obs.SetVec(2*i, dst[i].X)
		obs.SetVec(2*i+1, dst[i].Y)
	}

	var qr mat.QR
	qr.Factorize(design)
	if c := mat.Cond(design, 2); c > 1e12 {
		return geometry.AffineTransform{}, fmt.Errorf("ill-conditioned affine system (cond %.3g)", c)
	}

	var p mat.VecDense
	if err := qr.SolveVecTo(&p, false, obs); err != nil {
		return geometry.AffineTransform{}, err
	}
	return geometry.AffineTransform{
		A: p.AtVec(0), B: p.AtVec(1), TX: p.AtVec(2),
		C: p.AtVec(3), D: p.AtVec(4), TY: p.AtVec(5),
	}, nil
}

package alignment

import (
	"errors"
	"fmt"

	"plate-aligner/pkg/geometry"

	"gocv.io/x/gocv"
)

// Minimum correspondences for each motion model.
const (
	minHomographyPoints = 4
	minAffinePoints     = 3
)

// OpenCV's findHomography defaults.
const (
	homographyMaxIters   = 2000
	homographyConfidence = 0.995
)

var (
	// ErrTooFewMatches is returned when a pair has fewer kept matches than the model needs.
	ErrTooFewMatches = errors.New("too few matches")
	// ErrDegenerateTransform is returned when the estimator produced no usable transform.
	ErrDegenerateTransform = errors.New("degenerate transform")
)

// EstimateHomography fits a homography src -> dst with OpenCV's RANSAC and
// returns it along with the indices of the inlier correspondences.
func EstimateHomography(srcPoints, dstPoints []geometry.Point2D, threshold float64) (geometry.Homography, []int, error) {
	if len(srcPoints) != len(dstPoints) {
		return geometry.Homography{}, nil, fmt.Errorf("point count mismatch: %d vs %d", len(srcPoints), len(dstPoints))
	}
	if len(srcPoints) < minHomographyPoints {
		return geometry.Homography{}, nil, fmt.Errorf("need at least %d points, got %d: %w",
			minHomographyPoints, len(srcPoints), ErrTooFewMatches)
	}

	src := pointsToMat(srcPoints)
	defer src.Close()
	dst := pointsToMat(dstPoints)
	defer dst.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	hMat := gocv.FindHomography(src, &dst, gocv.HomograpyMethodRANSAC, threshold, &mask,
		homographyMaxIters, homographyConfidence)
	defer hMat.Close()

	if hMat.Empty() || hMat.Rows() != 3 || hMat.Cols() != 3 {
		return geometry.Homography{}, nil, fmt.Errorf("findHomography returned no solution: %w", ErrDegenerateTransform)
	}

	var h geometry.Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h[r*3+c] = hMat.GetDoubleAt(r, c)
		}
	}
	if h.IsDegenerate() {
		return geometry.Homography{}, nil, fmt.Errorf("singular homography: %w", ErrDegenerateTransform)
	}

	var inliers []int
	if !mask.Empty() {
		for i := 0; i < mask.Rows(); i++ {
			if mask.GetUCharAt(i, 0) != 0 {
				inliers = append(inliers, i)
			}
		}
	}
	return h.Normalize(), inliers, nil
}

// pointsToMat packs points into an Nx2 CV_64F matrix.
func pointsToMat(points []geometry.Point2D) gocv.Mat {
	m := gocv.NewMatWithSize(len(points), 2, gocv.MatTypeCV64F)
	for i, p := range points {
		m.SetDoubleAt(i, 0, p.X)
		m.SetDoubleAt(i, 1, p.Y)
	}
	return m
}

// homographyToMat writes h into a 3x3 CV_64F matrix.
func homographyToMat(h geometry.Homography) gocv.Mat {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, h[r*3+c])
		}
	}
	return m
}

// Package features wraps ORB detection and brute-force Hamming matching for plate bands.
package features

import (
	"fmt"

	"plate-aligner/pkg/geometry"

	"gocv.io/x/gocv"
)

// OpenCV's ORB defaults, except for the feature budget.
const (
	orbScaleFactor   = 1.2
	orbLevels        = 8
	orbEdgeThreshold = 31
	orbFirstLevel    = 0
	orbWTAK          = 2
	orbPatchSize     = 31
	orbFastThreshold = 20
)

// Set holds the keypoints and descriptors from one detection call.
// Descriptors has one row per keypoint.
type Set struct {
	Keypoints   []gocv.KeyPoint
	Descriptors gocv.Mat
}

// Len returns the number of keypoints.
func (s *Set) Len() int {
	return len(s.Keypoints)
}

// Point returns the location of keypoint i.
func (s *Set) Point(i int) geometry.Point2D {
	kp := s.Keypoints[i]
	return geometry.Point2D{X: kp.X, Y: kp.Y}
}

// Close releases the descriptor matrix.
func (s *Set) Close() error {
	return s.Descriptors.Close()
}

// Detect runs ORB on img and returns up to maxFeatures keypoints with descriptors.
func Detect(img gocv.Mat, maxFeatures int) (*Set, error) {
	if img.Empty() {
		return nil, fmt.Errorf("detect: empty image")
	}
	if maxFeatures <= 0 {
		return nil, fmt.Errorf("detect: invalid feature budget %d", maxFeatures)
	}

	orb := gocv.NewORBWithParams(maxFeatures, orbScaleFactor, orbLevels, orbEdgeThreshold,
		orbFirstLevel, orbWTAK, gocv.ORBScoreTypeHarris, orbPatchSize, orbFastThreshold)
	defer orb.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	kps, desc := orb.DetectAndCompute(img, mask)
	if len(kps) != desc.Rows() {
		desc.Close()
		return nil, fmt.Errorf("detect: %d keypoints but %d descriptor rows", len(kps), desc.Rows())
	}
	return &Set{Keypoints: kps, Descriptors: desc}, nil
}

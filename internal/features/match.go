package features

import (
	"fmt"
	"image/color"
	"sort"

	"plate-aligner/pkg/geometry"

	"gocv.io/x/gocv"
)

// Match colors used when drawing correspondences.
var (
	matchColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	pointColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// Match finds the nearest train descriptor for every query descriptor by Hamming
// distance, sorts the matches and keeps the best keepFraction of them.
// Returns the kept matches and the number of raw matches.
func Match(query, train *Set, keepFraction float64) ([]gocv.DMatch, int, error) {
	if !(keepFraction > 0 && keepFraction <= 1) {
		return nil, 0, fmt.Errorf("match: keep fraction %v out of range (0, 1]", keepFraction)
	}
	if query.Len() == 0 || train.Len() == 0 {
		return nil, 0, nil
	}

	matcher := gocv.NewBFMatcherWithParams(gocv.NormHamming, false)
	defer matcher.Close()

	matches := matcher.Match(query.Descriptors, train.Descriptors)
	raw := len(matches)
	return KeepBest(matches, keepFraction), raw, nil
}

// SortByDistance orders matches by ascending distance; ties keep their input order.
func SortByDistance(matches []gocv.DMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
}

// KeepBest sorts matches in place and returns the first floor(len*fraction) of them.
func KeepBest(matches []gocv.DMatch, fraction float64) []gocv.DMatch {
	SortByDistance(matches)
	n := int(float64(len(matches)) * fraction)
	if n < 0 {
		n = 0
	}
	if n > len(matches) {
		n = len(matches)
	}
	return matches[:n]
}

// Points returns the query and train keypoint locations of each match, index-aligned.
func Points(matches []gocv.DMatch, query, train *Set) (src, dst []geometry.Point2D, err error) {
	src = make([]geometry.Point2D, 0, len(matches))
	dst = make([]geometry.Point2D, 0, len(matches))
	for _, m := range matches {
		if m.QueryIdx < 0 || m.QueryIdx >= query.Len() || m.TrainIdx < 0 || m.TrainIdx >= train.Len() {
			return nil, nil, fmt.Errorf("match (%d,%d) outside keypoint sets (%d,%d)",
				m.QueryIdx, m.TrainIdx, query.Len(), train.Len())
		}
		src = append(src, query.Point(m.QueryIdx))
		dst = append(dst, train.Point(m.TrainIdx))
	}
	return src, dst, nil
}

// Distances returns the Hamming distance of every match.
func Distances(matches []gocv.DMatch) []float64 {
	out := make([]float64, len(matches))
	for i, m := range matches {
		out[i] = m.Distance
	}
	return out
}

// DrawMatches renders the two images side by side with lines joining matched keypoints.
// The caller must close the result.
func DrawMatches(queryImg gocv.Mat, query *Set, trainImg gocv.Mat, train *Set, matches []gocv.DMatch) gocv.Mat {
	out := gocv.NewMat()
	gocv.DrawMatches(queryImg, query.Keypoints, trainImg, train.Keypoints, matches, &out,
		matchColor, pointColor, nil, gocv.DrawDefault)
	return out
}

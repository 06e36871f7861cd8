package features

import (
	"math"
	"testing"

	"plate-aligner/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestKeepBestKeepsFloorOfFraction(t *testing.T) {
	tests := []struct {
		n        int
		fraction float64
		want     int
	}{
		{0, 0.1, 0},
		{9, 0.1, 0},
		{10, 0.1, 1},
		{57, 0.1, 5},
		{100, 0.25, 25},
		{7, 1, 7},
	}
	for _, tt := range tests {
		matches := make([]gocv.DMatch, tt.n)
		for i := range matches {
			matches[i] = gocv.DMatch{QueryIdx: i, TrainIdx: i, Distance: float64((i * 37) % 101)}
		}
		kept := KeepBest(matches, tt.fraction)
		require.Len(t, kept, tt.want, "n=%d fraction=%v", tt.n, tt.fraction)
		for i := 1; i < len(kept); i++ {
			assert.LessOrEqual(t, kept[i-1].Distance, kept[i].Distance)
		}
	}
}

func TestKeepBestPrefersSmallestDistances(t *testing.T) {
	matches := []gocv.DMatch{
		{QueryIdx: 0, Distance: 40},
		{QueryIdx: 1, Distance: 3},
		{QueryIdx: 2, Distance: 17},
		{QueryIdx: 3, Distance: 3},
	}
	kept := KeepBest(matches, 0.5)
	require.Len(t, kept, 2)
	assert.Equal(t, 1, kept[0].QueryIdx, "ties keep input order")
	assert.Equal(t, 3, kept[1].QueryIdx)
	assert.Equal(t, []float64{3, 3}, Distances(kept))
}

func TestPoints(t *testing.T) {
	query := &Set{Keypoints: []gocv.KeyPoint{{X: 1, Y: 2}, {X: 3, Y: 4}}}
	train := &Set{Keypoints: []gocv.KeyPoint{{X: 10, Y: 20}}}

	src, dst, err := Points([]gocv.DMatch{{QueryIdx: 1, TrainIdx: 0}}, query, train)
	require.NoError(t, err)
	require.Len(t, src, 1)
	require.Len(t, dst, 1)
	assert.Equal(t, 3.0, src[0].X)
	assert.Equal(t, 20.0, dst[0].Y)

	_, _, err = Points([]gocv.DMatch{{QueryIdx: 2, TrainIdx: 0}}, query, train)
	assert.Error(t, err)
}

func TestDetectAndMatchSelf(t *testing.T) {
	scene := testutil.TexturedScene(t, 320, 240, 7)
	defer scene.Close()

	set, err := Detect(scene, 500)
	require.NoError(t, err)
	defer set.Close()

	require.NotZero(t, set.Len())
	assert.Equal(t, set.Len(), set.Descriptors.Rows())

	kept, raw, err := Match(set, set, 0.1)
	require.NoError(t, err)
	assert.Equal(t, set.Len(), raw, "one match per query descriptor")
	assert.Len(t, kept, int(float64(raw)*0.1))
	for _, m := range kept {
		assert.Zero(t, m.Distance, "a descriptor is its own nearest neighbour")
	}

	vis := DrawMatches(scene, set, scene, set, kept)
	defer vis.Close()
	assert.Equal(t, 640, vis.Cols())
}

func TestDetectRejectsBadInput(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	_, err := Detect(empty, 100)
	assert.Error(t, err)

	scene := testutil.TexturedScene(t, 64, 64, 1)
	defer scene.Close()
	_, err = Detect(scene, 0)
	assert.Error(t, err)
}

func TestMatchValidatesFraction(t *testing.T) {
	s := &Set{}
	_, _, err := Match(s, s, 0)
	assert.Error(t, err)

	_, _, err = Match(s, s, math.NaN())
	assert.Error(t, err)

	kept, raw, err := Match(s, s, 0.5)
	require.NoError(t, err)
	assert.Empty(t, kept)
	assert.Zero(t, raw)
}

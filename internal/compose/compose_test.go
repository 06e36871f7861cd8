package compose

import (
	"testing"

	"plate-aligner/internal/alignment"
	"plate-aligner/internal/plate"
	"plate-aligner/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// flatPlate builds a plate whose blue, green and red bands are filled with 10, 20 and 30.
func flatPlate(t *testing.T) *plate.Plate {
	t.Helper()
	m := gocv.NewMatWithSize(12, 5, gocv.MatTypeCV8U)
	defer m.Close()
	for y := 0; y < 12; y++ {
		for x := 0; x < 5; x++ {
			m.SetUCharAt(y, x, uint8(10*(y/4+1)))
		}
	}
	p, err := plate.FromMat("flat", m)
	require.NoError(t, err)
	return p
}

func TestNaiveMergeOrdersChannelsBGR(t *testing.T) {
	p := flatPlate(t)
	defer p.Close()

	naive, err := Naive(p)
	require.NoError(t, err)
	defer naive.Close()

	assert.Equal(t, 3, naive.Channels())
	assert.Equal(t, 4, naive.Rows())
	v := naive.GetVecbAt(1, 2)
	assert.Equal(t, []uint8{10, 20, 30}, []uint8{v[0], v[1], v[2]})
}

func TestMergeRejectsMismatchedSizes(t *testing.T) {
	a := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8U)
	defer a.Close()
	b := gocv.NewMatWithSize(4, 5, gocv.MatTypeCV8U)
	defer b.Close()

	_, err := Merge(a, a, b)
	assert.Error(t, err)
}

func TestComparisonWithIdentityRegistration(t *testing.T) {
	p := flatPlate(t)
	defer p.Close()

	size := p.Size()
	res := &alignment.Result{Reference: plate.Green}
	for _, ch := range []plate.Channel{plate.Blue, plate.Red} {
		h := geometry.IdentityHomography()
		res.Pairs = append(res.Pairs, alignment.PairResult{Channel: ch, Transform: h})
		res.Warped[ch] = alignment.WarpPerspective(p.Band(ch), h, size.X, size.Y)
	}
	defer res.Close()

	cmp, err := Comparison(p, res)
	require.NoError(t, err)
	defer cmp.Close()

	assert.Equal(t, 10, cmp.Cols())
	assert.Equal(t, 4, cmp.Rows())
	left := cmp.GetVecbAt(2, 1)
	right := cmp.GetVecbAt(2, 6)
	assert.Equal(t, left, right, "identity registration reproduces the naive merge")
}

func TestAlignedNeedsBothPairs(t *testing.T) {
	p := flatPlate(t)
	defer p.Close()

	_, err := Aligned(p, &alignment.Result{})
	assert.Error(t, err)
}

func TestSideBySide(t *testing.T) {
	a := gocv.NewMatWithSize(3, 2, gocv.MatTypeCV8U)
	defer a.Close()
	b := gocv.NewMatWithSize(3, 4, gocv.MatTypeCV8U)
	defer b.Close()
	c := gocv.NewMatWithSize(5, 4, gocv.MatTypeCV8U)
	defer c.Close()

	out, err := SideBySide(a, b, a)
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, 8, out.Cols())

	_, err = SideBySide(a, c)
	assert.Error(t, err)

	_, err = SideBySide()
	assert.Error(t, err)
}

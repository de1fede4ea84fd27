package packaging

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHierarchy() Hierarchy {
	return Hierarchy{BoxesPerCarton: 10, SmallBoxesPerBox: 5, StripsPerSmallBox: 10, TabletsPerStrip: 10}
}

func TestTotalUnits(t *testing.T) {
	total, err := sampleHierarchy().TotalUnits(2)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), total)

	boxes, err := sampleHierarchy().TotalBigBoxes(2)
	require.NoError(t, err)
	assert.Equal(t, int64(20), boxes)

	perBox, err := sampleHierarchy().UnitsPerBigBox()
	require.NoError(t, err)
	assert.Equal(t, int64(500), perBox)
}

func TestBreakdown(t *testing.T) {
	b, err := sampleHierarchy().Breakdown(7423)
	require.NoError(t, err)
	assert.Equal(t, Breakdown{Cartons: 1, BigBoxes: 4, SmallBoxes: 4, Strips: 2, Tablets: 3}, b)

	zero, err := sampleHierarchy().Breakdown(0)
	require.NoError(t, err)
	assert.Equal(t, Breakdown{}, zero)
}

func TestDecomposeReconstructs(t *testing.T) {
	hierarchies := [][]int{
		{10, 5, 10, 10},
		{1, 1, 1, 1},
		{3, 7, 2, 9},
		{12},
		{},
	}
	rng := rand.New(rand.NewSource(42))

	for _, h := range hierarchies {
		for i := 0; i < 500; i++ {
			n := rng.Int63n(1_000_000)
			counts, err := Decompose(n, h)
			require.NoError(t, err)
			require.Len(t, counts, len(h)+1)
			for _, c := range counts {
				assert.GreaterOrEqual(t, c, int64(0))
			}

			back, err := Compose(counts, h)
			require.NoError(t, err)
			assert.Equal(t, n, back, "hierarchy %v", h)
		}
	}
}

func TestDecomposeLowerLevelsStayBelowRadix(t *testing.T) {
	h := []int{10, 5, 10, 10}
	counts, err := Decompose(123456, h)
	require.NoError(t, err)
	for i := 1; i < len(counts); i++ {
		assert.Less(t, counts[i], int64(h[i-1]))
	}
}

func TestInvalidHierarchy(t *testing.T) {
	_, err := Decompose(10, []int{10, 0, 10})
	assert.ErrorIs(t, err, ErrInvalidHierarchy)

	_, err = Decompose(10, []int{-2})
	assert.ErrorIs(t, err, ErrInvalidHierarchy)

	bad := sampleHierarchy()
	bad.TabletsPerStrip = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidHierarchy)

	_, err = sampleHierarchy().TotalUnits(0)
	assert.ErrorIs(t, err, ErrInvalidHierarchy)
}

func TestNegativeUnits(t *testing.T) {
	_, err := sampleHierarchy().Breakdown(-1)
	assert.ErrorIs(t, err, ErrNegativeUnits)
}

func TestOverflowIsRejected(t *testing.T) {
	huge := Hierarchy{BoxesPerCarton: 1 << 30, SmallBoxesPerBox: 1 << 30, StripsPerSmallBox: 1 << 30, TabletsPerStrip: 1 << 30}
	assert.ErrorIs(t, huge.Validate(), ErrInvalidHierarchy)
}

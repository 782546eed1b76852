package selection

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// twoGroupMatrix builds a matrix whose first column strongly separates
// the two label groups and whose remaining columns are noise.
func twoGroupMatrix(nPerGroup, nFeatures int, seed uint64) (*mat.Dense, []float64, []string) {
	rng := rand.New(rand.NewPCG(seed, seed))
	n := 2 * nPerGroup
	X := mat.NewDense(n, nFeatures, nil)
	y := make([]float64, n)
	features := make([]string, nFeatures)
	for j := range features {
		features[j] = fmt.Sprintf("cg%04d", j)
	}

	for i := 0; i < n; i++ {
		if i < nPerGroup {
			y[i] = 1.0
		}
		for j := 0; j < nFeatures; j++ {
			v := rng.NormFloat64()
			if j == 0 && y[i] == 1.0 {
				v += 5.0
			}
			X.Set(i, j, v)
		}
	}
	return X, y, features
}

func TestSelectFeaturesWilcoxonFindsSignal(t *testing.T) {
	X, y, features := twoGroupMatrix(10, 20, 1)

	selected, err := SelectFeatures(X, y, features, MethodWilcoxon, 0.01)
	require.NoError(t, err)

	assert.Contains(t, selected, "cg0000", "the separating feature must pass")
	assert.Less(t, len(selected), 10, "most noise features must fail at p < 0.01")
}

func TestSelectFeaturesTTestFindsSignal(t *testing.T) {
	X, y, features := twoGroupMatrix(10, 20, 2)

	selected, err := SelectFeatures(X, y, features, MethodTTest, 0.01)
	require.NoError(t, err)
	assert.Contains(t, selected, "cg0000")
}

func TestSelectFeaturesDeterminism(t *testing.T) {
	X, y, features := twoGroupMatrix(8, 30, 3)

	first, err := SelectFeatures(X, y, features, MethodWilcoxon, 0.05)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := SelectFeatures(X, y, features, MethodWilcoxon, 0.05)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSelectFeaturesNone(t *testing.T) {
	X, y, features := twoGroupMatrix(5, 7, 4)

	selected, err := SelectFeatures(X, y, features, MethodNone, 0.0)
	require.NoError(t, err)
	assert.Equal(t, features, selected, "method none retains every feature in order")
}

func TestSelectFeaturesUnknownMethod(t *testing.T) {
	X, y, features := twoGroupMatrix(5, 3, 5)
	_, err := SelectFeatures(X, y, features, Method("anova"), 0.05)
	require.Error(t, err)
}

func TestSelectFeaturesDegenerateGroups(t *testing.T) {
	X, _, features := twoGroupMatrix(5, 3, 6)
	allOnes := make([]float64, 10)
	for i := range allOnes {
		allOnes[i] = 1.0
	}

	_, err := SelectFeatures(X, allOnes, features, MethodWilcoxon, 0.05)
	require.Error(t, err)
}

func TestSelectFeaturesIgnoresUnlabeledRows(t *testing.T) {
	X, y, features := twoGroupMatrix(10, 5, 7)

	// Plant extreme values on rows that then lose their label; they must
	// not influence the test statistics.
	polluted := mat.DenseCopyOf(X)
	yMissing := append([]float64(nil), y...)
	for _, i := range []int{0, 11} {
		for j := 0; j < 5; j++ {
			polluted.Set(i, j, 1e9)
		}
		yMissing[i] = math.NaN()
	}

	clean := mat.NewDense(18, 5, nil)
	yClean := make([]float64, 0, 18)
	row := 0
	for i := 0; i < 20; i++ {
		if math.IsNaN(yMissing[i]) {
			continue
		}
		for j := 0; j < 5; j++ {
			clean.Set(row, j, X.At(i, j))
		}
		yClean = append(yClean, y[i])
		row++
	}

	fromPolluted, err := SelectFeatures(polluted, yMissing, features, MethodTTest, 0.05)
	require.NoError(t, err)
	fromClean, err := SelectFeatures(clean, yClean, features, MethodTTest, 0.05)
	require.NoError(t, err)

	assert.Equal(t, fromClean, fromPolluted)
}

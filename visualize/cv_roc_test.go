package visualize

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// foldScores draws one fold of labels and mildly informative scores.
func foldScores(rng *rand.Rand, n int) FoldScores {
	fold := FoldScores{
		Labels: make([]float64, n),
		Scores: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		center := 0.3
		if i%2 == 0 {
			fold.Labels[i] = 1.0
			center = 0.7
		}
		fold.Scores[i] = center + 0.2*rng.NormFloat64()
	}
	return fold
}

func TestNewCVROCPlot(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	folds := []FoldScores{foldScores(rng, 12), foldScores(rng, 12), foldScores(rng, 12)}

	cv, err := NewCVROCPlot(folds)
	require.NoError(t, err)
	require.Len(t, cv.Folds, 3)

	require.Len(t, cv.GridFPR, len(cv.MeanTPR))
	require.Len(t, cv.GridFPR, len(cv.StdTPR))
	assert.Equal(t, 0.0, cv.GridFPR[0])
	assert.Equal(t, 1.0, cv.GridFPR[len(cv.GridFPR)-1])
	assert.Equal(t, 0.0, cv.MeanTPR[0])
	assert.Equal(t, 1.0, cv.MeanTPR[len(cv.MeanTPR)-1])
	for i := range cv.StdTPR {
		assert.GreaterOrEqual(t, cv.StdTPR[i], 0.0)
	}

	assert.Greater(t, cv.MeanAUC, 0.5, "informative scores should beat chance")
	assert.LessOrEqual(t, cv.MeanAUC, 1.0)
	assert.GreaterOrEqual(t, cv.StdAUC, 0.0)
}

func TestNewCVROCPlotSkipsSingleClassFolds(t *testing.T) {
	rng := rand.New(rand.NewPCG(10, 10))
	degenerate := FoldScores{Labels: []float64{1, 1, 1}, Scores: []float64{0.4, 0.6, 0.8}}

	cv, err := NewCVROCPlot([]FoldScores{foldScores(rng, 10), degenerate})
	require.NoError(t, err)
	assert.Len(t, cv.Folds, 1, "a single-class fold carries no curve")

	_, err = NewCVROCPlot([]FoldScores{degenerate})
	require.Error(t, err, "every fold single-class leaves nothing to plot")
}

func TestSaveCVROCPlot(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 11))
	folds := []FoldScores{foldScores(rng, 10), foldScores(rng, 10), foldScores(rng, 10), foldScores(rng, 10)}

	path := filepath.Join(t.TempDir(), "roc_cv.png")
	meanAUC, err := SaveCVROCPlot(folds, path)
	require.NoError(t, err)
	assert.Greater(t, meanAUC, 0.5)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

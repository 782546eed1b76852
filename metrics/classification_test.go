package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func vec(values ...float64) *mat.VecDense {
	return mat.NewVecDense(len(values), values)
}

func TestAccuracy(t *testing.T) {
	acc, err := Accuracy(vec(1, 0, 1, 1), vec(1, 0, 0, 1))
	require.NoError(t, err)
	assert.InDelta(t, 0.75, acc, 1e-12)

	acc, err = Accuracy(vec(1, 1), vec(1, 1))
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)

	_, err = Accuracy(vec(1, 0), vec(1))
	require.Error(t, err)
	_, err = Accuracy(nil, vec(1))
	require.Error(t, err)
}

func TestBalancedAccuracy(t *testing.T) {
	// Majority-only predictor on a 3:1 imbalance scores 0.5, not 0.75.
	acc, err := BalancedAccuracy(vec(0, 0, 0, 1), vec(0, 0, 0, 0))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, acc, 1e-12)

	acc, err = BalancedAccuracy(vec(0, 0, 1, 1), vec(0, 1, 1, 1))
	require.NoError(t, err)
	assert.InDelta(t, 0.75, acc, 1e-12)

	_, err = BalancedAccuracy(vec(1, 1, 1), vec(1, 1, 1))
	require.Error(t, err, "single-class truth is degenerate")

	_, err = BalancedAccuracy(vec(0, 2), vec(0, 1))
	require.Error(t, err, "non-binary truth is invalid")
}

func TestBinaryLogLoss(t *testing.T) {
	// Perfect confident predictions approach zero loss.
	loss, err := BinaryLogLoss(vec(1, 0), vec(1, 0))
	require.NoError(t, err)
	assert.Less(t, loss, 1e-10)

	// Uninformative predictions give log(2).
	loss, err = BinaryLogLoss(vec(1, 0, 1, 0), vec(0.5, 0.5, 0.5, 0.5))
	require.NoError(t, err)
	assert.InDelta(t, math.Log(2), loss, 1e-12)

	// Confidently wrong predictions are heavily penalized but finite.
	loss, err = BinaryLogLoss(vec(1), vec(0))
	require.NoError(t, err)
	assert.True(t, loss > 30 && !math.IsInf(loss, 1))
}

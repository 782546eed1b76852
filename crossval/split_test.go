package crossval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKFoldCoverage(t *testing.T) {
	for _, tc := range []struct {
		nSamples int
		nSplits  int
	}{
		{nSamples: 20, nSplits: 5},
		{nSamples: 17, nSplits: 5},
		{nSamples: 10, nSplits: 10},
		{nSamples: 7, nSplits: 3},
	} {
		splitter := &KFold{NSplits: tc.nSplits}
		folds, err := splitter.Split(tc.nSamples)
		require.NoError(t, err)
		require.Len(t, folds, tc.nSplits)

		seen := make(map[int]int)
		for _, fold := range folds {
			assert.Equal(t, tc.nSamples, len(fold.TrainIndices)+len(fold.TestIndices))
			for _, i := range fold.TestIndices {
				seen[i]++
			}
			// Train and test partitions must be disjoint.
			train := make(map[int]bool, len(fold.TrainIndices))
			for _, i := range fold.TrainIndices {
				train[i] = true
			}
			for _, i := range fold.TestIndices {
				assert.False(t, train[i], "index %d in both partitions", i)
			}
		}

		// Every sample tested exactly once.
		assert.Len(t, seen, tc.nSamples)
		for i := 0; i < tc.nSamples; i++ {
			assert.Equal(t, 1, seen[i], "sample %d tested %d times", i, seen[i])
		}
	}
}

func TestKFoldValidation(t *testing.T) {
	_, err := (&KFold{NSplits: 1}).Split(10)
	assert.Error(t, err)

	_, err = (&KFold{NSplits: 11}).Split(10)
	assert.Error(t, err)
}

func TestLeaveOneOut(t *testing.T) {
	folds, err := (&LeaveOneOut{}).Split(6)
	require.NoError(t, err)
	require.Len(t, folds, 6)

	for f, fold := range folds {
		require.Len(t, fold.TestIndices, 1)
		assert.Equal(t, f, fold.TestIndices[0])
		assert.Len(t, fold.TrainIndices, 5)
	}

	_, err = (&LeaveOneOut{}).Split(1)
	assert.Error(t, err)
}

// Package crossval drives leakage-safe cross-validated training of the
// methylation classification pipeline.
//
// Each fold fits its own imputer, feature selector, scaler and classifier
// on the training partition only; the held-out partition is only ever
// transformed with train-fitted parameters. Folds run sequentially and
// share nothing but the immutable source dataset.
package crossval

import (
	mserrors "github.com/epimetry/microscope/pkg/errors"
)

// Fold is one train/test partition of the sample index.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// Splitter produces the train/test partitions of a cross-validation run.
type Splitter interface {
	// Split partitions 0..nSamples-1 into folds. Across all returned
	// folds, every index appears in exactly one test partition.
	Split(nSamples int) ([]Fold, error)
	// Name identifies the strategy for run records and logs.
	Name() string
}

// KFold partitions samples into NSplits contiguous test blocks. Sample
// order is taken as given; the dataset is expected to be pre-shuffled.
type KFold struct {
	NSplits int
}

// Name implements Splitter.
func (k *KFold) Name() string { return "kfold" }

// Split implements Splitter. The first nSamples mod NSplits folds receive
// one extra test sample.
func (k *KFold) Split(nSamples int) ([]Fold, error) {
	if k.NSplits < 2 {
		return nil, mserrors.NewValidationError("n_splits", "must be at least 2", k.NSplits)
	}
	if k.NSplits > nSamples {
		return nil, mserrors.NewValidationError("n_splits",
			"cannot exceed the number of samples", k.NSplits)
	}

	baseSize := nSamples / k.NSplits
	remainder := nSamples % k.NSplits

	folds := make([]Fold, 0, k.NSplits)
	start := 0
	for f := 0; f < k.NSplits; f++ {
		size := baseSize
		if f < remainder {
			size++
		}
		stop := start + size

		fold := Fold{
			TestIndices:  make([]int, 0, size),
			TrainIndices: make([]int, 0, nSamples-size),
		}
		for i := 0; i < nSamples; i++ {
			if i >= start && i < stop {
				fold.TestIndices = append(fold.TestIndices, i)
			} else {
				fold.TrainIndices = append(fold.TrainIndices, i)
			}
		}
		folds = append(folds, fold)
		start = stop
	}
	return folds, nil
}

// LeaveOneOut produces one fold per sample, each holding out exactly that
// sample.
type LeaveOneOut struct{}

// Name implements Splitter.
func (l *LeaveOneOut) Name() string { return "leave_one_out" }

// Split implements Splitter.
func (l *LeaveOneOut) Split(nSamples int) ([]Fold, error) {
	if nSamples < 2 {
		return nil, mserrors.NewValidationError("n_samples",
			"leave-one-out needs at least 2 samples", nSamples)
	}

	folds := make([]Fold, nSamples)
	for f := 0; f < nSamples; f++ {
		fold := Fold{
			TestIndices:  []int{f},
			TrainIndices: make([]int, 0, nSamples-1),
		}
		for i := 0; i < nSamples; i++ {
			if i != f {
				fold.TrainIndices = append(fold.TrainIndices, i)
			}
		}
		folds[f] = fold
	}
	return folds, nil
}

package metrics

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	mserrors "github.com/epimetry/microscope/pkg/errors"
)

// ROCAUC calculates the area under the receiver operating characteristic
// curve for binary labels and continuous scores.
//
// The AUC equals the probability that a uniformly drawn positive sample
// receives a higher score than a uniformly drawn negative sample, with
// ties counted as one half.
//
// Parameters:
//   - yTrue: Ground truth binary labels (0 or 1)
//   - yScore: Predicted scores or positive-class probabilities
//
// Returns:
//   - The AUC score in [0, 1]
//   - An error if inputs are invalid or only one class is present
func ROCAUC(yTrue, yScore *mat.VecDense) (float64, error) {
	fpr, tpr, _, err := ROCCurve(yTrue, yScore)
	if err != nil {
		return 0, err
	}

	// Trapezoidal integration over the curve.
	auc := 0.0
	for i := 1; i < len(fpr); i++ {
		auc += (fpr[i] - fpr[i-1]) * (tpr[i] + tpr[i-1]) / 2.0
	}
	return auc, nil
}

// ROCCurve computes the receiver operating characteristic curve.
//
// Scores are swept from high to low; each distinct score value yields one
// operating point. The returned curve starts at (0, 0) and ends at (1, 1).
//
// Parameters:
//   - yTrue: Ground truth binary labels (0 or 1)
//   - yScore: Predicted scores or positive-class probabilities
//
// Returns:
//   - fpr: False positive rates per operating point
//   - tpr: True positive rates per operating point
//   - thresholds: The score threshold of each point after the first
//   - An error if inputs are invalid or only one class is present
func ROCCurve(yTrue, yScore *mat.VecDense) (fpr, tpr, thresholds []float64, err error) {
	if yTrue == nil || yScore == nil {
		return nil, nil, nil, mserrors.NewValueError("ROCCurve", "input vectors cannot be nil")
	}

	n := yTrue.Len()
	if n == 0 {
		return nil, nil, nil, mserrors.NewValueError("ROCCurve", "input vectors cannot be empty")
	}
	if n != yScore.Len() {
		return nil, nil, nil, mserrors.NewDimensionError("ROCCurve", n, yScore.Len(), 0)
	}

	nPos, nNeg := 0.0, 0.0
	for i := 0; i < n; i++ {
		switch yTrue.AtVec(i) {
		case 1.0:
			nPos++
		case 0.0:
			nNeg++
		default:
			return nil, nil, nil, mserrors.NewValidationError("yTrue",
				"must contain only binary values (0 or 1)", yTrue.AtVec(i))
		}
	}
	if nPos == 0 || nNeg == 0 {
		return nil, nil, nil, mserrors.Wrap(mserrors.ErrDegenerateLabels, "ROCCurve")
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return yScore.AtVec(order[a]) > yScore.AtVec(order[b])
	})

	fpr = []float64{0.0}
	tpr = []float64{0.0}
	thresholds = nil

	tp, fp := 0.0, 0.0
	for i := 0; i < n; {
		threshold := yScore.AtVec(order[i])
		// Consume every sample tied at this score before emitting a point.
		for i < n && yScore.AtVec(order[i]) == threshold {
			if yTrue.AtVec(order[i]) == 1.0 {
				tp++
			} else {
				fp++
			}
			i++
		}
		fpr = append(fpr, fp/nNeg)
		tpr = append(tpr, tp/nPos)
		thresholds = append(thresholds, threshold)
	}
	return fpr, tpr, thresholds, nil
}

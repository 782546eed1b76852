// Package metrics provides evaluation metrics for binary classifiers.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	mserrors "github.com/epimetry/microscope/pkg/errors"
)

// Accuracy calculates the fraction of correctly predicted labels.
//
// Parameters:
//   - yTrue: Ground truth labels
//   - yPred: Predicted labels
//
// Returns:
//   - The accuracy score in [0, 1]
//   - An error if inputs are invalid
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, mserrors.NewValueError("Accuracy", "input vectors cannot be nil")
	}

	n := yTrue.Len()
	if n == 0 {
		return 0, mserrors.NewValueError("Accuracy", "input vectors cannot be empty")
	}
	if n != yPred.Len() {
		return 0, mserrors.NewDimensionError("Accuracy", n, yPred.Len(), 0)
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// BalancedAccuracy calculates the mean of per-class recall for binary
// labels. Unlike plain accuracy it is insensitive to class imbalance:
// a majority-class-only predictor scores 0.5, not the majority fraction.
//
// Parameters:
//   - yTrue: Ground truth binary labels (0 or 1)
//   - yPred: Predicted binary labels (0 or 1)
//
// Returns:
//   - The balanced accuracy score in [0, 1]
//   - An error if inputs are invalid or only one class is present
func BalancedAccuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, mserrors.NewValueError("BalancedAccuracy", "input vectors cannot be nil")
	}

	n := yTrue.Len()
	if n == 0 {
		return 0, mserrors.NewValueError("BalancedAccuracy", "input vectors cannot be empty")
	}
	if n != yPred.Len() {
		return 0, mserrors.NewDimensionError("BalancedAccuracy", n, yPred.Len(), 0)
	}

	var posTotal, posCorrect, negTotal, negCorrect float64
	for i := 0; i < n; i++ {
		truth := yTrue.AtVec(i)
		if truth != 0.0 && truth != 1.0 {
			return 0, mserrors.NewValidationError("yTrue", "must contain only binary values (0 or 1)", truth)
		}
		hit := truth == yPred.AtVec(i)
		if truth == 1.0 {
			posTotal++
			if hit {
				posCorrect++
			}
		} else {
			negTotal++
			if hit {
				negCorrect++
			}
		}
	}

	if posTotal == 0 || negTotal == 0 {
		return 0, mserrors.Wrap(mserrors.ErrDegenerateLabels, "BalancedAccuracy")
	}
	return 0.5 * (posCorrect/posTotal + negCorrect/negTotal), nil
}

// BinaryLogLoss calculates the mean negative log-likelihood of binary
// labels under predicted positive-class probabilities.
//
// Probabilities are clipped away from 0 and 1 before taking logarithms.
//
// Parameters:
//   - yTrue: Ground truth binary labels (0 or 1)
//   - yProb: Predicted positive-class probabilities
//
// Returns:
//   - The log loss (lower is better)
//   - An error if inputs are invalid
func BinaryLogLoss(yTrue, yProb *mat.VecDense) (float64, error) {
	if yTrue == nil || yProb == nil {
		return 0, mserrors.NewValueError("BinaryLogLoss", "input vectors cannot be nil")
	}

	n := yTrue.Len()
	if n == 0 {
		return 0, mserrors.NewValueError("BinaryLogLoss", "input vectors cannot be empty")
	}
	if n != yProb.Len() {
		return 0, mserrors.NewDimensionError("BinaryLogLoss", n, yProb.Len(), 0)
	}

	const eps = 1e-15
	loss := 0.0
	for i := 0; i < n; i++ {
		truth := yTrue.AtVec(i)
		if truth != 0.0 && truth != 1.0 {
			return 0, mserrors.NewValidationError("yTrue", "must contain only binary values (0 or 1)", truth)
		}
		p := math.Min(math.Max(yProb.AtVec(i), eps), 1-eps)
		loss += -truth*math.Log(p) - (1-truth)*math.Log(1-p)
	}
	return loss / float64(n), nil
}

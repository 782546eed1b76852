package preprocessing

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"

	"github.com/epimetry/microscope/core/model"
	mserrors "github.com/epimetry/microscope/pkg/errors"
)

// ImputationPolicy selects the statistic used to fill missing beta values.
type ImputationPolicy string

const (
	// ImputeMean fills missing entries with the per-feature training mean.
	ImputeMean ImputationPolicy = "mean"
	// ImputeMedian fills missing entries with the per-feature training median.
	ImputeMedian ImputationPolicy = "median"
	// ImputeZeros fills missing entries with zero.
	ImputeZeros ImputationPolicy = "zeros"
)

// Imputer computes per-feature fill values from a training matrix and
// applies them to any matrix sharing those feature columns. Fill values are
// keyed by feature name, so a column the imputer never saw during Fit is
// left untouched by Transform.
type Imputer struct {
	model.BaseEstimator

	// Policy is the configured imputation policy.
	Policy ImputationPolicy

	// FillValues maps feature name to fill value, computed during Fit.
	FillValues map[string]float64
}

// NewImputer creates an Imputer for the given policy. An unrecognized
// policy is a configuration error; no default is guessed.
func NewImputer(policy ImputationPolicy) (*Imputer, error) {
	switch policy {
	case ImputeMean, ImputeMedian, ImputeZeros:
		return &Imputer{Policy: policy, FillValues: make(map[string]float64)}, nil
	default:
		return nil, mserrors.NewValidationError("nan_policy", "unrecognized imputation policy", string(policy))
	}
}

// Fit computes one fill value per feature column of X, ignoring missing
// (NaN) entries. features names the columns of X in order.
func (im *Imputer) Fit(X mat.Matrix, features []string) (err error) {
	defer mserrors.Recover(&err, "Imputer.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return mserrors.NewModelError("Imputer.Fit", "empty data", mserrors.ErrEmptyData)
	}
	if len(features) != c {
		return mserrors.NewDimensionError("Imputer.Fit", len(features), c, 1)
	}

	im.FillValues = make(map[string]float64, c)
	for j := 0; j < c; j++ {
		im.FillValues[features[j]] = im.fillValue(X, r, j)
	}

	im.SetFitted()
	return nil
}

func (im *Imputer) fillValue(X mat.Matrix, rows, col int) float64 {
	if im.Policy == ImputeZeros {
		return 0.0
	}

	observed := make([]float64, 0, rows)
	for i := 0; i < rows; i++ {
		v := X.At(i, col)
		if !math.IsNaN(v) {
			observed = append(observed, v)
		}
	}
	if len(observed) == 0 {
		// A fully-missing column has no statistic; its entries stay NaN.
		return math.NaN()
	}

	var fill float64
	var err error
	switch im.Policy {
	case ImputeMean:
		fill, err = stats.Mean(observed)
	case ImputeMedian:
		fill, err = stats.Median(observed)
	}
	if err != nil {
		return math.NaN()
	}
	return fill
}

// Transform returns a copy of X with missing entries replaced by the
// fitted fill values. features names the columns of X in order; columns
// without a fitted fill value are copied unchanged.
func (im *Imputer) Transform(X mat.Matrix, features []string) (_ *mat.Dense, err error) {
	defer mserrors.Recover(&err, "Imputer.Transform")
	if !im.IsFitted() {
		return nil, mserrors.NewNotFittedError("Imputer", "Transform")
	}

	r, c := X.Dims()
	if len(features) != c {
		return nil, mserrors.NewDimensionError("Imputer.Transform", len(features), c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		fill, known := im.FillValues[features[j]]
		for i := 0; i < r; i++ {
			v := X.At(i, j)
			if known && math.IsNaN(v) {
				v = fill
			}
			result.Set(i, j, v)
		}
	}

	return result, nil
}

// FitTransform fits the imputer on X and returns the imputed X.
func (im *Imputer) FitTransform(X mat.Matrix, features []string) (*mat.Dense, error) {
	if err := im.Fit(X, features); err != nil {
		return nil, err
	}
	return im.Transform(X, features)
}

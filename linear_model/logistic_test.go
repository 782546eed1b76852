package linear_model

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	mserrors "github.com/epimetry/microscope/pkg/errors"
)

// separableData builds a linearly separable two-class problem: class 1
// clusters around +2 on every feature, class 0 around -2.
func separableData(nPerClass, nFeatures int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	n := 2 * nPerClass
	X := mat.NewDense(n, nFeatures, nil)
	y := mat.NewDense(n, 1, nil)

	for i := 0; i < n; i++ {
		center := -2.0
		if i < nPerClass {
			center = 2.0
			y.Set(i, 0, 1.0)
		}
		for j := 0; j < nFeatures; j++ {
			X.Set(i, j, center+rng.NormFloat64()*0.5)
		}
	}
	return X, y
}

func TestLogisticRegressionFitPredict(t *testing.T) {
	X, y := separableData(15, 3, 1)

	lr := NewLogisticRegression(WithPenalty(PenaltyL2), WithC(1.0))
	require.NoError(t, lr.Fit(X, y))
	require.True(t, lr.IsFitted())

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.95, "separable data should be classified almost perfectly")

	assert.Equal(t, []int{0, 1}, lr.Classes())
}

func TestLogisticRegressionPredictProba(t *testing.T) {
	X, y := separableData(10, 2, 2)

	lr := NewLogisticRegression(WithPenalty(PenaltyL2))
	require.NoError(t, lr.Fit(X, y))

	probas, err := lr.PredictProba(X)
	require.NoError(t, err)

	n, c := probas.Dims()
	require.Equal(t, 20, n)
	require.Equal(t, 2, c)
	for i := 0; i < n; i++ {
		p0, p1 := probas.At(i, 0), probas.At(i, 1)
		assert.GreaterOrEqual(t, p1, 0.0)
		assert.LessOrEqual(t, p1, 1.0)
		assert.InDelta(t, 1.0, p0+p1, 1e-12, "class probabilities must sum to one")
	}

	// Class-1 samples sit in the first half.
	assert.Greater(t, probas.At(0, 1), 0.5)
	assert.Less(t, probas.At(19, 1), 0.5)
}

func TestLogisticRegressionL1Sparsity(t *testing.T) {
	// Only the first feature carries signal; strong L1 should zero out
	// most of the noise coefficients.
	rng := rand.New(rand.NewPCG(3, 3))
	n, d := 60, 10
	X := mat.NewDense(n, d, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			y.Set(i, 0, 1.0)
		}
		for j := 0; j < d; j++ {
			v := rng.NormFloat64()
			if j == 0 && y.At(i, 0) == 1.0 {
				v += 4.0
			}
			X.Set(i, j, v)
		}
	}

	lr := NewLogisticRegression(WithPenalty(PenaltyL1), WithC(5.0), WithMaxIter(2000))
	require.NoError(t, lr.Fit(X, y))

	coef := lr.Coef()
	assert.NotZero(t, coef[0], "signal coefficient must survive")
	zeroed := 0
	for _, w := range coef[1:] {
		if w == 0.0 {
			zeroed++
		}
	}
	assert.Greater(t, zeroed, 0, "L1 should zero at least some noise coefficients")
}

func TestLogisticRegressionBalancedWeights(t *testing.T) {
	// Imbalanced 25:5 problem with overlapping classes; balanced
	// weighting must not collapse to majority-only predictions.
	rng := rand.New(rand.NewPCG(4, 4))
	n := 30
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		if i < 5 {
			y.Set(i, 0, 1.0)
			X.Set(i, 0, 1.0+rng.NormFloat64())
		} else {
			X.Set(i, 0, -1.0+rng.NormFloat64())
		}
	}

	lr := NewLogisticRegression(WithPenalty(PenaltyL2), WithClassWeight(WeightBalanced))
	require.NoError(t, lr.Fit(X, y))

	pred, err := lr.Predict(X)
	require.NoError(t, err)
	minorityHits := 0
	for i := 0; i < 5; i++ {
		if pred.At(i, 0) == 1.0 {
			minorityHits++
		}
	}
	assert.Greater(t, minorityHits, 2, "balanced weighting should recover the minority class")
}

func TestLogisticRegressionValidation(t *testing.T) {
	X, y := separableData(5, 2, 5)

	lr := NewLogisticRegression(WithPenalty(Penalty("ridge")))
	require.Error(t, lr.Fit(X, y))

	// Single-class labels are degenerate.
	ones := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		ones.Set(i, 0, 1.0)
	}
	lr = NewLogisticRegression()
	require.Error(t, lr.Fit(X, ones))

	// Predicting before fitting fails.
	lr = NewLogisticRegression()
	_, err := lr.Predict(X)
	require.Error(t, err)

	// Feature-count mismatch fails.
	lr = NewLogisticRegression()
	require.NoError(t, lr.Fit(X, y))
	_, err = lr.Predict(mat.NewDense(3, 5, nil))
	require.Error(t, err)
}

func TestLogisticRegressionRejectsNonFiniteInput(t *testing.T) {
	for _, penalty := range []Penalty{PenaltyL2, PenaltyL1} {
		t.Run(string(penalty), func(t *testing.T) {
			X, y := separableData(10, 3, 7)
			X.Set(0, 0, math.NaN())

			lr := NewLogisticRegression(WithPenalty(penalty))
			err := lr.Fit(X, y)
			require.Error(t, err, "a NaN cell must fail the fit, not degrade it")
			assert.False(t, lr.IsFitted())
		})
	}
}

func TestLogisticRegressionIterationLimitWarns(t *testing.T) {
	var captured []error
	mserrors.SetWarningHandler(func(w error) { captured = append(captured, w) })
	defer mserrors.SetWarningHandler(nil)

	X, y := separableData(10, 2, 8)
	lr := NewLogisticRegression(WithPenalty(PenaltyL2), WithC(1e5), WithMaxIter(1), WithTol(1e-12))
	require.NoError(t, lr.Fit(X, y), "hitting the iteration limit is non-convergence, not failure")
	require.True(t, lr.IsFitted())

	require.NotEmpty(t, captured)
	var cw *mserrors.ConvergenceWarning
	require.ErrorAs(t, captured[0], &cw)
	assert.Equal(t, "LogisticRegression(lbfgs)", cw.Algorithm)
	for _, w := range lr.Coef() {
		assert.False(t, math.IsNaN(w))
	}
}

func TestLogisticRegressionReproducible(t *testing.T) {
	X, y := separableData(10, 3, 6)

	first := NewLogisticRegression(WithRandomState(42))
	require.NoError(t, first.Fit(X, y))
	second := NewLogisticRegression(WithRandomState(42))
	require.NoError(t, second.Fit(X, y))

	for j := range first.Coef() {
		assert.InDelta(t, first.Coef()[j], second.Coef()[j], 1e-9)
	}
	assert.InDelta(t, first.Intercept(), second.Intercept(), 1e-9)
}

func TestStableSigmoid(t *testing.T) {
	assert.InDelta(t, 0.5, stableSigmoid(0), 1e-12)
	assert.InDelta(t, 1.0, stableSigmoid(800), 1e-12)
	assert.InDelta(t, 0.0, stableSigmoid(-800), 1e-12)
	assert.False(t, math.IsNaN(stableSigmoid(1e6)))
	assert.False(t, math.IsNaN(stableSigmoid(-1e6)))
}

// Package linear_model implements the regularized logistic-regression
// classifiers used by the methylation pipeline.
//
// LogisticRegression fits a single binary classifier for one penalty
// configuration; LogisticRegressionCV wraps it with nested k-fold
// selection of the regularization strength (and, for elastic net, the
// L1/L2 mixing ratio) from a fixed candidate grid.
package linear_model

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/epimetry/microscope/core/model"
	mserrors "github.com/epimetry/microscope/pkg/errors"
)

// Penalty identifies the regularization regime.
type Penalty string

const (
	// PenaltyNone disables regularization.
	PenaltyNone Penalty = "none"
	// PenaltyL1 applies lasso regularization.
	PenaltyL1 Penalty = "l1"
	// PenaltyL2 applies ridge regularization.
	PenaltyL2 Penalty = "l2"
	// PenaltyElasticNet mixes L1 and L2 regularization.
	PenaltyElasticNet Penalty = "elasticnet"
)

// ClassWeight identifies the class weighting strategy.
type ClassWeight string

const (
	// WeightNone gives every sample unit weight.
	WeightNone ClassWeight = "none"
	// WeightBalanced reweights samples inversely proportional to class
	// frequency: w_c = n_samples / (n_classes * n_c).
	WeightBalanced ClassWeight = "balanced"
)

const (
	binaryClassCount = 2
	epsilonSmall     = 1e-15
)

// ValidPenalty reports whether p names a supported penalty.
func ValidPenalty(p Penalty) bool {
	switch p {
	case PenaltyNone, PenaltyL1, PenaltyL2, PenaltyElasticNet:
		return true
	}
	return false
}

// LogisticRegression is a binary logistic-regression classifier.
type LogisticRegression struct {
	state *model.StateManager

	// Hyperparameters
	penalty     Penalty
	c           float64 // inverse regularization strength
	l1Ratio     float64 // elastic net mixing ratio
	classWeight ClassWeight
	maxIter     int
	tol         float64
	randomState int64

	// Fitted parameters
	coef_      []float64
	intercept_ float64
	classes_   []int
	nFeatures_ int
	nIter_     int
}

// LogisticRegressionOption is a functional option for LogisticRegression.
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a LogisticRegression classifier.
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:       model.NewStateManager(),
		penalty:     PenaltyL2,
		c:           1.0,
		l1Ratio:     0.5,
		classWeight: WeightNone,
		maxIter:     1000,
		tol:         1e-4,
		randomState: 42,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithPenalty sets the regularization regime.
func WithPenalty(penalty Penalty) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithC sets the inverse regularization strength.
func WithC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.c = c
	}
}

// WithL1Ratio sets the elastic net mixing ratio (1.0 = pure L1).
func WithL1Ratio(ratio float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.l1Ratio = ratio
	}
}

// WithClassWeight sets the class weighting strategy.
func WithClassWeight(cw ClassWeight) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.classWeight = cw
	}
}

// WithMaxIter sets the maximum number of solver iterations.
func WithMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithTol sets the solver stopping tolerance.
func WithTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithRandomState sets the seed for weight initialization.
func WithRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.randomState = seed
	}
}

// stableSigmoid computes sigmoid(z) in a numerically stable way.
func stableSigmoid(z float64) float64 {
	if z >= 0 {
		ez := math.Exp(-z)
		return 1.0 / (1.0 + ez)
	}
	ez := math.Exp(z)
	return ez / (1.0 + ez)
}

// clampProbability clamps a probability to avoid log(0).
func clampProbability(p float64) float64 {
	if p < epsilonSmall {
		return epsilonSmall
	}
	if p > 1-epsilonSmall {
		return 1 - epsilonSmall
	}
	return p
}

// Fit trains the classifier on X (samples x features) and binary labels y
// (column vector). Exactly two classes must be present.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if !ValidPenalty(lr.penalty) {
		return mserrors.NewValidationError("penalty", "unrecognized penalty", string(lr.penalty))
	}

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples != yRows {
		return mserrors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return mserrors.NewDimensionError("LogisticRegression.Fit", 1, yCols, 1)
	}

	lr.extractClasses(y)
	if len(lr.classes_) != binaryClassCount {
		return mserrors.Wrapf(mserrors.ErrDegenerateLabels,
			"LogisticRegression.Fit requires exactly 2 classes, got %d", len(lr.classes_))
	}
	lr.nFeatures_ = nFeatures
	lr.initializeWeights(nFeatures)

	yBinary := make([]float64, nSamples)
	posClass := lr.classes_[1]
	for i := 0; i < nSamples; i++ {
		if int(y.At(i, 0)) == posClass {
			yBinary[i] = 1.0
		}
	}

	weights := lr.sampleWeights(yBinary)

	var err error
	switch lr.penalty {
	case PenaltyL1, PenaltyElasticNet:
		err = lr.fitProximal(X, yBinary, weights)
	default:
		err = lr.fitLBFGS(X, yBinary, weights)
	}
	if err != nil {
		return err
	}

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

// extractClasses identifies the sorted unique class labels in y.
func (lr *LogisticRegression) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	classMap := make(map[int]bool)
	for i := 0; i < rows; i++ {
		classMap[int(y.At(i, 0))] = true
	}

	lr.classes_ = lr.classes_[:0]
	for class := range classMap {
		lr.classes_ = append(lr.classes_, class)
	}
	for i := 0; i < len(lr.classes_)-1; i++ {
		for j := i + 1; j < len(lr.classes_); j++ {
			if lr.classes_[i] > lr.classes_[j] {
				lr.classes_[i], lr.classes_[j] = lr.classes_[j], lr.classes_[i]
			}
		}
	}
}

// initializeWeights seeds the coefficients with small random values so
// repeated fits with the same seed are reproducible.
func (lr *LogisticRegression) initializeWeights(nFeatures int) {
	rng := rand.New(rand.NewPCG(uint64(lr.randomState), uint64(lr.randomState)))
	lr.coef_ = make([]float64, nFeatures)
	for j := range lr.coef_ {
		lr.coef_[j] = rng.NormFloat64() * 0.01
	}
	lr.intercept_ = 0.0
	lr.nIter_ = 0
}

// sampleWeights returns per-sample loss weights for the configured class
// weighting strategy, normalized to sum to the sample count.
func (lr *LogisticRegression) sampleWeights(yBinary []float64) []float64 {
	n := len(yBinary)
	weights := make([]float64, n)
	if lr.classWeight != WeightBalanced {
		for i := range weights {
			weights[i] = 1.0
		}
		return weights
	}

	nPos := 0.0
	for _, v := range yBinary {
		if v == 1.0 {
			nPos++
		}
	}
	nNeg := float64(n) - nPos
	wPos := float64(n) / (2.0 * nPos)
	wNeg := float64(n) / (2.0 * nNeg)
	for i, v := range yBinary {
		if v == 1.0 {
			weights[i] = wPos
		} else {
			weights[i] = wNeg
		}
	}
	return weights
}

// lambdaL2 returns the L2 regularization coefficient for the current
// penalty configuration.
func (lr *LogisticRegression) lambdaL2() float64 {
	switch lr.penalty {
	case PenaltyL2:
		return 1.0 / lr.c
	case PenaltyElasticNet:
		return (1.0 - lr.l1Ratio) / lr.c
	}
	return 0.0
}

// lambdaL1 returns the L1 regularization coefficient for the current
// penalty configuration.
func (lr *LogisticRegression) lambdaL1() float64 {
	switch lr.penalty {
	case PenaltyL1:
		return 1.0 / lr.c
	case PenaltyElasticNet:
		return lr.l1Ratio / lr.c
	}
	return 0.0
}

// fitLBFGS fits the smooth-penalty objective (l2 or none) with L-BFGS.
func (lr *LogisticRegression) fitLBFGS(X mat.Matrix, yBinary, sampleWeights []float64) error {
	nSamples, nFeatures := X.Dims()
	lambda := lr.lambdaL2()

	// Parameter vector: [w_0 .. w_{d-1}, b]
	pDim := nFeatures + 1
	x0 := make([]float64, pDim)
	copy(x0[:nFeatures], lr.coef_)
	x0[nFeatures] = lr.intercept_

	xD := mat.DenseCopyOf(X)
	invN := 1.0 / float64(nSamples)

	prob := optimize.Problem{
		Func: func(theta []float64) float64 {
			w := theta[:nFeatures]
			b := theta[nFeatures]
			loss := 0.0
			for i := 0; i < nSamples; i++ {
				z := b
				for j := 0; j < nFeatures; j++ {
					z += w[j] * xD.At(i, j)
				}
				p := clampProbability(stableSigmoid(z))
				loss += sampleWeights[i] * (-yBinary[i]*math.Log(p) - (1.0-yBinary[i])*math.Log(1.0-p))
			}
			loss *= invN
			if lambda > 0 {
				reg := 0.0
				for j := 0; j < nFeatures; j++ {
					reg += w[j] * w[j]
				}
				loss += 0.5 * lambda * reg
			}
			return loss
		},
		Grad: func(grad, theta []float64) {
			w := theta[:nFeatures]
			b := theta[nFeatures]
			for j := range grad {
				grad[j] = 0
			}
			for i := 0; i < nSamples; i++ {
				z := b
				for j := 0; j < nFeatures; j++ {
					z += w[j] * xD.At(i, j)
				}
				diff := sampleWeights[i] * (stableSigmoid(z) - yBinary[i])
				for j := 0; j < nFeatures; j++ {
					grad[j] += diff * xD.At(i, j)
				}
				grad[nFeatures] += diff
			}
			for j := range grad {
				grad[j] *= invN
			}
			if lambda > 0 {
				for j := 0; j < nFeatures; j++ {
					grad[j] += lambda * w[j]
				}
			}
		},
	}

	settings := optimize.Settings{
		GradientThreshold: lr.tol,
		MajorIterations:   lr.maxIter,
	}
	method := &optimize.LBFGS{}
	result, err := optimize.Minimize(prob, x0, &settings, method)
	if err != nil {
		// Numerical failures (NaN objective, linesearch breakdown) abort
		// the fit. Hitting the iteration limit is reported through
		// result.Status, not err.
		return mserrors.Wrap(err, "lbfgs optimization failed")
	}
	if result.Status == optimize.IterationLimit {
		mserrors.Warn(mserrors.NewConvergenceWarning("LogisticRegression(lbfgs)", lr.maxIter, result.Status.String()))
	}

	theta := result.X
	if err := mserrors.CheckValues("LogisticRegression.fitLBFGS", theta, result.Stats.MajorIterations); err != nil {
		return err
	}
	copy(lr.coef_, theta[:nFeatures])
	lr.intercept_ = theta[nFeatures]
	lr.nIter_ = result.Stats.MajorIterations
	return nil
}

// fitProximal fits the l1 and elasticnet objectives with proximal gradient
// descent: a gradient step on the smooth part (log loss + L2 term)
// followed by soft-thresholding for the L1 term.
func (lr *LogisticRegression) fitProximal(X mat.Matrix, yBinary, sampleWeights []float64) error {
	nSamples, nFeatures := X.Dims()
	lambda1 := lr.lambdaL1()
	lambda2 := lr.lambdaL2()

	xD := mat.DenseCopyOf(X)
	invN := 1.0 / float64(nSamples)

	weights := lr.coef_
	intercept := lr.intercept_

	gradW := make([]float64, nFeatures)
	baseLearningRate := 1.0

	converged := false
	for iter := 0; iter < lr.maxIter; iter++ {
		for j := range gradW {
			gradW[j] = 0
		}
		gradB := 0.0

		for i := 0; i < nSamples; i++ {
			z := intercept
			for j := 0; j < nFeatures; j++ {
				z += weights[j] * xD.At(i, j)
			}
			diff := sampleWeights[i] * (stableSigmoid(z) - yBinary[i])
			for j := 0; j < nFeatures; j++ {
				gradW[j] += diff * xD.At(i, j)
			}
			gradB += diff
		}
		for j := range gradW {
			gradW[j] = gradW[j]*invN + lambda2*weights[j]
		}
		gradB *= invN

		learningRate := baseLearningRate / (1.0 + 0.1*float64(iter))
		threshold := learningRate * lambda1

		maxDelta := 0.0
		for j := range weights {
			next := softThreshold(weights[j]-learningRate*gradW[j], threshold)
			if d := math.Abs(next - weights[j]); d > maxDelta {
				maxDelta = d
			}
			weights[j] = next
		}
		intercept -= learningRate * gradB
		if d := math.Abs(learningRate * gradB); d > maxDelta {
			maxDelta = d
		}

		lr.nIter_ = iter + 1
		if maxDelta < lr.tol {
			converged = true
			break
		}
	}

	if err := mserrors.CheckValues("LogisticRegression.fitProximal", weights, lr.nIter_); err != nil {
		return err
	}
	if !converged {
		mserrors.Warn(mserrors.NewConvergenceWarning("LogisticRegression(proximal)", lr.maxIter, ""))
	}

	lr.intercept_ = intercept
	return nil
}

// softThreshold is the proximal operator of the L1 norm.
func softThreshold(v, threshold float64) float64 {
	switch {
	case v > threshold:
		return v - threshold
	case v < -threshold:
		return v + threshold
	}
	return 0.0
}

// decision computes the linear decision value for row i of X.
func (lr *LogisticRegression) decision(X mat.Matrix, i int) float64 {
	z := lr.intercept_
	for j := 0; j < lr.nFeatures_; j++ {
		z += X.At(i, j) * lr.coef_[j]
	}
	return z
}

// Predict returns hard class labels for X, thresholding the predicted
// positive-class probability at 0.5.
func (lr *LogisticRegression) Predict(X mat.Matrix) (*mat.Dense, error) {
	if !lr.state.IsFitted() {
		return nil, mserrors.NewNotFittedError("LogisticRegression", "Predict")
	}

	nSamples, nFeatures := X.Dims()
	if nFeatures != lr.nFeatures_ {
		return nil, mserrors.NewDimensionError("LogisticRegression.Predict", lr.nFeatures_, nFeatures, 1)
	}

	predictions := mat.NewDense(nSamples, 1, nil)
	for i := 0; i < nSamples; i++ {
		if stableSigmoid(lr.decision(X, i)) >= 0.5 {
			predictions.Set(i, 0, float64(lr.classes_[1]))
		} else {
			predictions.Set(i, 0, float64(lr.classes_[0]))
		}
	}
	return predictions, nil
}

// PredictProba returns class probabilities for X with one column per
// class: column 0 holds the negative class, column 1 the positive class.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if !lr.state.IsFitted() {
		return nil, mserrors.NewNotFittedError("LogisticRegression", "PredictProba")
	}

	nSamples, nFeatures := X.Dims()
	if nFeatures != lr.nFeatures_ {
		return nil, mserrors.NewDimensionError("LogisticRegression.PredictProba", lr.nFeatures_, nFeatures, 1)
	}

	probas := mat.NewDense(nSamples, binaryClassCount, nil)
	for i := 0; i < nSamples; i++ {
		p1 := stableSigmoid(lr.decision(X, i))
		probas.Set(i, 0, 1.0-p1)
		probas.Set(i, 1, p1)
	}
	return probas, nil
}

// Score returns the mean accuracy of Predict on X against y.
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}

	nSamples, _ := X.Dims()
	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples), nil
}

// Coef returns the fitted coefficient vector.
func (lr *LogisticRegression) Coef() []float64 {
	return lr.coef_
}

// Intercept returns the fitted intercept.
func (lr *LogisticRegression) Intercept() float64 {
	return lr.intercept_
}

// Classes returns the sorted class labels seen during Fit.
func (lr *LogisticRegression) Classes() []int {
	return lr.classes_
}

// NIter returns the number of solver iterations of the last Fit.
func (lr *LogisticRegression) NIter() int {
	return lr.nIter_
}

// IsFitted reports whether the classifier has been fitted.
func (lr *LogisticRegression) IsFitted() bool {
	return lr.state.IsFitted()
}

// GetParams returns the classifier hyperparameters.
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":      string(lr.penalty),
		"C":            lr.c,
		"l1_ratio":     lr.l1Ratio,
		"class_weight": string(lr.classWeight),
		"max_iter":     lr.maxIter,
		"tol":          lr.tol,
		"random_state": lr.randomState,
	}
}

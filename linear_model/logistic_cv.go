package linear_model

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/epimetry/microscope/core/model"
	mserrors "github.com/epimetry/microscope/pkg/errors"
	mslog "github.com/epimetry/microscope/pkg/log"
)

const (
	defaultCVFolds = 5

	// Largest candidate C: with lambda = 1/C the regularization term is
	// negligible, which is how the unpenalized configuration is realized.
	weakRegularizationC = 1e5
)

// CandidateCs returns the inverse-regularization-strength grid searched
// by LogisticRegressionCV for the l1, l2 and elasticnet penalties:
// 10 values logarithmically spaced from 1e-4 to 1e6.
func CandidateCs(penalty Penalty) []float64 {
	if penalty == PenaltyNone {
		return []float64{weakRegularizationC}
	}
	const (
		logLow  = -4.0
		logHigh = 6.0
		nPoints = 10
	)
	cs := make([]float64, nPoints)
	step := (logHigh - logLow) / float64(nPoints-1)
	for i := range cs {
		cs[i] = math.Pow(10, logLow+float64(i)*step)
	}
	return cs
}

// CandidateL1Ratios returns the elastic net mixing ratios searched by
// LogisticRegressionCV. Only the elasticnet penalty has more than one
// candidate.
func CandidateL1Ratios(penalty Penalty) []float64 {
	if penalty == PenaltyElasticNet {
		return []float64{0.1, 0.5, 0.9}
	}
	return []float64{0.0}
}

// LogisticRegressionCV selects the regularization strength (and, for
// elastic net, the mixing ratio) by internal k-fold cross-validation over
// a fixed candidate grid, then refits on the full training data with the
// winning configuration.
type LogisticRegressionCV struct {
	state  *model.StateManager
	logger mslog.Logger

	// Hyperparameters
	penalty     Penalty
	classWeight ClassWeight
	cvFolds     int
	maxIter     int
	tol         float64
	randomState int64

	// Fitted parameters
	best_   *LogisticRegression
	bestC_  float64
	bestL1_ float64
}

// LogisticRegressionCVOption is a functional option for LogisticRegressionCV.
type LogisticRegressionCVOption func(*LogisticRegressionCV)

// NewLogisticRegressionCV creates a LogisticRegressionCV classifier.
func NewLogisticRegressionCV(opts ...LogisticRegressionCVOption) *LogisticRegressionCV {
	cv := &LogisticRegressionCV{
		state:       model.NewStateManager(),
		logger:      mslog.GetLoggerWithName("linear_model.logistic_cv"),
		penalty:     PenaltyL2,
		classWeight: WeightBalanced,
		cvFolds:     defaultCVFolds,
		maxIter:     1000,
		tol:         1e-4,
		randomState: 42,
	}
	for _, opt := range opts {
		opt(cv)
	}
	return cv
}

// WithCVPenalty sets the regularization regime searched over.
func WithCVPenalty(penalty Penalty) LogisticRegressionCVOption {
	return func(cv *LogisticRegressionCV) {
		cv.penalty = penalty
	}
}

// WithCVClassWeight sets the class weighting strategy.
func WithCVClassWeight(cw ClassWeight) LogisticRegressionCVOption {
	return func(cv *LogisticRegressionCV) {
		cv.classWeight = cw
	}
}

// WithCVFolds sets the number of internal selection folds.
func WithCVFolds(folds int) LogisticRegressionCVOption {
	return func(cv *LogisticRegressionCV) {
		cv.cvFolds = folds
	}
}

// WithCVMaxIter sets the maximum solver iterations per candidate fit.
func WithCVMaxIter(maxIter int) LogisticRegressionCVOption {
	return func(cv *LogisticRegressionCV) {
		cv.maxIter = maxIter
	}
}

// WithCVTol sets the solver stopping tolerance.
func WithCVTol(tol float64) LogisticRegressionCVOption {
	return func(cv *LogisticRegressionCV) {
		cv.tol = tol
	}
}

// WithCVRandomState sets the seed for fold shuffling and solver
// initialization.
func WithCVRandomState(seed int64) LogisticRegressionCVOption {
	return func(cv *LogisticRegressionCV) {
		cv.randomState = seed
	}
}

// candidate is one point of the hyperparameter grid.
type candidate struct {
	c       float64
	l1Ratio float64
}

// effectivePenalty maps the configured penalty to the penalty applied to
// the underlying classifier. "none" is fitted as a very weakly
// regularized l2 model.
func (cv *LogisticRegressionCV) effectivePenalty() Penalty {
	if cv.penalty == PenaltyNone {
		return PenaltyL2
	}
	return cv.penalty
}

// Fit searches the candidate grid by internal k-fold cross-validation and
// refits the winning configuration on all of X.
func (cv *LogisticRegressionCV) Fit(X, y mat.Matrix) (err error) {
	defer mserrors.Recover(&err, "LogisticRegressionCV.Fit")

	if !ValidPenalty(cv.penalty) {
		return mserrors.NewValidationError("penalty", "unrecognized penalty", string(cv.penalty))
	}
	if cv.cvFolds < 2 {
		return mserrors.NewValidationError("cv_folds", "must be at least 2", cv.cvFolds)
	}

	nSamples, nFeatures := X.Dims()
	yRows, _ := y.Dims()
	if nSamples != yRows {
		return mserrors.NewDimensionError("LogisticRegressionCV.Fit", nSamples, yRows, 0)
	}

	var grid []candidate
	for _, c := range CandidateCs(cv.penalty) {
		for _, ratio := range CandidateL1Ratios(cv.penalty) {
			grid = append(grid, candidate{c: c, l1Ratio: ratio})
		}
	}

	folds := cv.selectionFolds(nSamples)

	bestScore := math.Inf(-1)
	best := grid[0]
	for _, cand := range grid {
		score, candErr := cv.scoreCandidate(X, y, folds, cand)
		if candErr != nil {
			return candErr
		}
		if score > bestScore {
			bestScore = score
			best = cand
		}
	}

	cv.logger.Debug("selected hyperparameters",
		"C", best.c, "l1_ratio", best.l1Ratio, "mean_accuracy", bestScore)

	final := cv.newCandidate(best)
	if err := final.Fit(X, y); err != nil {
		return err
	}

	cv.best_ = final
	cv.bestC_ = best.c
	cv.bestL1_ = best.l1Ratio
	cv.state.SetDimensions(nFeatures, nSamples)
	cv.state.SetFitted()
	return nil
}

// newCandidate builds a LogisticRegression for one grid point.
func (cv *LogisticRegressionCV) newCandidate(cand candidate) *LogisticRegression {
	return NewLogisticRegression(
		WithPenalty(cv.effectivePenalty()),
		WithC(cand.c),
		WithL1Ratio(cand.l1Ratio),
		WithClassWeight(cv.classWeight),
		WithMaxIter(cv.maxIter),
		WithTol(cv.tol),
		WithRandomState(cv.randomState),
	)
}

// selectionFolds assigns every sample to one of k internal folds after a
// seeded shuffle. The fold count is capped at the sample count.
func (cv *LogisticRegressionCV) selectionFolds(nSamples int) [][]int {
	k := cv.cvFolds
	if k > nSamples {
		k = nSamples
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	rng := rand.New(rand.NewPCG(uint64(cv.randomState), uint64(cv.randomState)))
	rng.Shuffle(nSamples, func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	folds := make([][]int, k)
	for i, idx := range indices {
		folds[i%k] = append(folds[i%k], idx)
	}
	return folds
}

// scoreCandidate returns the mean validation accuracy of one grid point
// across the internal folds. Folds whose training partition degenerates
// to a single class are skipped.
func (cv *LogisticRegressionCV) scoreCandidate(X, y mat.Matrix, folds [][]int, cand candidate) (float64, error) {
	_, nFeatures := X.Dims()

	total := 0.0
	scored := 0
	for f, valIdx := range folds {
		trainIdx := make([]int, 0)
		for g, idx := range folds {
			if g != f {
				trainIdx = append(trainIdx, idx...)
			}
		}
		if len(trainIdx) == 0 || len(valIdx) == 0 {
			continue
		}

		XTrain, yTrain := subsetRows(X, y, trainIdx, nFeatures)
		XVal, yVal := subsetRows(X, y, valIdx, nFeatures)

		clf := cv.newCandidate(cand)
		if err := clf.Fit(XTrain, yTrain); err != nil {
			if mserrors.Is(err, mserrors.ErrDegenerateLabels) {
				continue
			}
			return 0, mserrors.Wrapf(err, "candidate fit failed (C=%g, l1_ratio=%g)", cand.c, cand.l1Ratio)
		}

		score, err := clf.Score(XVal, yVal)
		if err != nil {
			return 0, err
		}
		total += score
		scored++
	}

	if scored == 0 {
		return 0, mserrors.Wrap(mserrors.ErrDegenerateLabels,
			"no internal fold had both classes in its training partition")
	}
	return total / float64(scored), nil
}

// subsetRows copies the given rows of X and y into fresh matrices.
func subsetRows(X, y mat.Matrix, rows []int, nFeatures int) (*mat.Dense, *mat.Dense) {
	xs := mat.NewDense(len(rows), nFeatures, nil)
	ys := mat.NewDense(len(rows), 1, nil)
	for i, r := range rows {
		for j := 0; j < nFeatures; j++ {
			xs.Set(i, j, X.At(r, j))
		}
		ys.Set(i, 0, y.At(r, 0))
	}
	return xs, ys
}

// Predict returns hard class labels from the refitted best classifier.
func (cv *LogisticRegressionCV) Predict(X mat.Matrix) (*mat.Dense, error) {
	if !cv.state.IsFitted() {
		return nil, mserrors.NewNotFittedError("LogisticRegressionCV", "Predict")
	}
	return cv.best_.Predict(X)
}

// PredictProba returns class probabilities from the refitted best
// classifier.
func (cv *LogisticRegressionCV) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if !cv.state.IsFitted() {
		return nil, mserrors.NewNotFittedError("LogisticRegressionCV", "PredictProba")
	}
	return cv.best_.PredictProba(X)
}

// Score returns the mean accuracy of the refitted best classifier.
func (cv *LogisticRegressionCV) Score(X, y mat.Matrix) (float64, error) {
	if !cv.state.IsFitted() {
		return 0, mserrors.NewNotFittedError("LogisticRegressionCV", "Score")
	}
	return cv.best_.Score(X, y)
}

// BestC returns the selected inverse regularization strength.
func (cv *LogisticRegressionCV) BestC() float64 {
	return cv.bestC_
}

// BestL1Ratio returns the selected elastic net mixing ratio.
func (cv *LogisticRegressionCV) BestL1Ratio() float64 {
	return cv.bestL1_
}

// Best returns the refitted best classifier.
func (cv *LogisticRegressionCV) Best() *LogisticRegression {
	return cv.best_
}

// IsFitted reports whether the selector has been fitted.
func (cv *LogisticRegressionCV) IsFitted() bool {
	return cv.state.IsFitted()
}

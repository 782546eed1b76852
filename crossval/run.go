package crossval

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/epimetry/microscope/dataset"
	"github.com/epimetry/microscope/linear_model"
	mserrors "github.com/epimetry/microscope/pkg/errors"
	mslog "github.com/epimetry/microscope/pkg/log"
	"github.com/epimetry/microscope/preprocessing"
	"github.com/epimetry/microscope/selection"
)

// Config collects the hyperparameters of a cross-validated training run.
type Config struct {
	// Splitter chooses the outer partitioning strategy. Nil defaults to
	// 5-fold.
	Splitter Splitter

	// Penalty is the regularization regime of the classifier.
	Penalty linear_model.Penalty

	// InternalFolds is the fold count of the classifier's nested
	// hyperparameter search. Zero defaults to 5.
	InternalFolds int

	// Selection and PThreshold configure per-fold feature selection.
	// An empty method defaults to selection.MethodNone.
	Selection  selection.Method
	PThreshold float64

	// Imputation names the per-fold fill policy. Empty disables
	// imputation.
	Imputation preprocessing.ImputationPolicy

	// ClassWeight is the loss weighting strategy. Empty defaults to
	// balanced.
	ClassWeight linear_model.ClassWeight

	// Seed drives the classifier's internal fold shuffle and weight
	// initialization. Zero defaults to 42.
	Seed int64
}

// withDefaults returns a copy of the config with zero values replaced.
func (c Config) withDefaults() Config {
	if c.Splitter == nil {
		c.Splitter = &KFold{NSplits: 5}
	}
	if c.Penalty == "" {
		c.Penalty = linear_model.PenaltyL2
	}
	if c.InternalFolds == 0 {
		c.InternalFolds = 5
	}
	if c.Selection == "" {
		c.Selection = selection.MethodNone
	}
	if c.ClassWeight == "" {
		c.ClassWeight = linear_model.WeightBalanced
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	return c
}

// RunParams is the hyperparameter record attached to a run's results.
type RunParams struct {
	FoldStrategy  string
	Penalty       string
	InternalFolds int
	Selection     string
	PThreshold    float64
	Imputation    string
	ClassWeight   string
	Seed          int64
	Timestamp     time.Time
}

// FoldArtifact owns everything fitted or predicted within one fold.
// Artifacts are independent across folds and never mutated after the
// fold completes.
type FoldArtifact struct {
	// Model and Scaler were fitted on this fold's training partition.
	Model  *linear_model.LogisticRegressionCV
	Scaler *preprocessing.StandardScaler
	// Imputer is nil when no imputation policy was configured.
	Imputer *preprocessing.Imputer

	// Features names the columns the model was fitted on, in matrix
	// column order.
	Features []string

	// TestIndices locates this fold's held-out samples as row indices
	// into the source Organized dataset.
	TestIndices []int

	// Per-test-sample outcomes, aligned with TestIndices.
	TestLabels    []float64
	Predictions   []float64
	Probabilities []float64
}

// CVResult bundles all fold artifacts with aggregated predictions.
//
// The aggregated slices concatenate folds in fold order, not original
// dataset row order; TestIndices carries the source row of every
// position so callers can restore dataset order themselves.
type CVResult struct {
	Folds []FoldArtifact

	TestIndices   []int
	Labels        []float64
	Predictions   []float64
	Probabilities []float64

	Params RunParams
}

// RunCV trains and evaluates the pipeline under cross-validation.
//
// Samples without a defined binary target are excluded up front. Within
// each fold: feature columns with any missing value in the training
// partition are dropped, the imputer (if configured), feature selector
// and scaler are fitted on the training partition only, and the held-out
// partition is transformed with those fitted parameters before
// prediction. The first fold error aborts the run.
func RunCV(ds *dataset.Organized, cfg Config) (*CVResult, error) {
	cfg = cfg.withDefaults()
	logger := mslog.GetLoggerWithName("crossval")

	labeled := ds.LabeledIndices()
	if len(labeled) == 0 {
		return nil, mserrors.Wrap(mserrors.ErrDegenerateLabels, "RunCV: no labeled samples")
	}
	work, err := ds.Subset(labeled)
	if err != nil {
		return nil, err
	}

	folds, err := cfg.Splitter.Split(work.NSamples())
	if err != nil {
		return nil, err
	}

	result := &CVResult{
		Params: RunParams{
			FoldStrategy:  cfg.Splitter.Name(),
			Penalty:       string(cfg.Penalty),
			InternalFolds: cfg.InternalFolds,
			Selection:     string(cfg.Selection),
			PThreshold:    cfg.PThreshold,
			Imputation:    string(cfg.Imputation),
			ClassWeight:   string(cfg.ClassWeight),
			Seed:          cfg.Seed,
			Timestamp:     time.Now().UTC(),
		},
	}

	logger.Info("cross-validation run started",
		"strategy", cfg.Splitter.Name(),
		"folds", len(folds),
		mslog.SamplesKey, work.NSamples(),
		mslog.FeaturesKey, work.NFeatures(),
		"penalty", string(cfg.Penalty))

	for f, fold := range folds {
		start := time.Now()
		artifact, err := runFold(work, fold, cfg)
		if err != nil {
			return nil, mserrors.Wrapf(err, "fold %d failed (train=%d, test=%d)",
				f, len(fold.TrainIndices), len(fold.TestIndices))
		}

		// Map held-out rows back to the source dataset.
		artifact.TestIndices = make([]int, len(fold.TestIndices))
		for i, t := range fold.TestIndices {
			artifact.TestIndices[i] = labeled[t]
		}

		result.Folds = append(result.Folds, *artifact)
		result.TestIndices = append(result.TestIndices, artifact.TestIndices...)
		result.Labels = append(result.Labels, artifact.TestLabels...)
		result.Predictions = append(result.Predictions, artifact.Predictions...)
		result.Probabilities = append(result.Probabilities, artifact.Probabilities...)

		logger.Debug("fold complete",
			mslog.FoldKey, f,
			"features_used", len(artifact.Features),
			mslog.DurationMsKey, time.Since(start).Milliseconds())
	}

	return result, nil
}

// runFold fits the full pipeline on one training partition and predicts
// its held-out partition. Indices are rows of work.
func runFold(work *dataset.Organized, fold Fold, cfg Config) (*FoldArtifact, error) {
	// Columns fully observed across the training partition.
	cols, names := completeColumns(work, fold.TrainIndices)
	if len(cols) == 0 {
		return nil, mserrors.Wrap(mserrors.ErrEmptyData,
			"no feature column is fully observed in the training partition")
	}

	XTrain := subsetMatrix(work.Matrix, fold.TrainIndices, cols)
	XTest := subsetMatrix(work.Matrix, fold.TestIndices, cols)
	yTrain := subsetTarget(work.Target, fold.TrainIndices)
	yTest := subsetTarget(work.Target, fold.TestIndices)

	var imputer *preprocessing.Imputer
	if cfg.Imputation != "" {
		var err error
		imputer, err = preprocessing.NewImputer(cfg.Imputation)
		if err != nil {
			return nil, err
		}
		if XTrain, err = imputer.FitTransform(XTrain, names); err != nil {
			return nil, err
		}
		if XTest, err = imputer.Transform(XTest, names); err != nil {
			return nil, err
		}
	} else {
		// Without an imputer a held-out row may still carry a missing
		// value in a column that was complete across the training
		// partition. Such a cell would flow through scaling into a NaN
		// probability, so reject it here.
		for i, r := range fold.TestIndices {
			for j := range names {
				if math.IsNaN(XTest.At(i, j)) {
					return nil, mserrors.Newf(
						"held-out sample %d has a missing value in feature %q; configure an imputation policy",
						r, names[j])
				}
			}
		}
	}

	selected, err := selection.SelectFeatures(XTrain, yTrain, names, cfg.Selection, cfg.PThreshold)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, mserrors.Newf("no feature passed %s selection at p < %g",
			cfg.Selection, cfg.PThreshold)
	}
	XTrain, XTest = restrictColumns(XTrain, XTest, names, selected)

	scaler := preprocessing.NewStandardScalerDefault()
	XTrainScaled, err := scaler.FitTransform(XTrain)
	if err != nil {
		return nil, err
	}
	XTestScaled, err := scaler.Transform(XTest)
	if err != nil {
		return nil, err
	}

	clf := linear_model.NewLogisticRegressionCV(
		linear_model.WithCVPenalty(cfg.Penalty),
		linear_model.WithCVClassWeight(cfg.ClassWeight),
		linear_model.WithCVFolds(cfg.InternalFolds),
		linear_model.WithCVRandomState(cfg.Seed),
	)
	if err := clf.Fit(XTrainScaled, columnVector(yTrain)); err != nil {
		return nil, err
	}

	labels, probs, err := predictWith(clf, XTestScaled)
	if err != nil {
		return nil, err
	}

	return &FoldArtifact{
		Model:         clf,
		Scaler:        scaler,
		Imputer:       imputer,
		Features:      selected,
		TestLabels:    yTest,
		Predictions:   labels,
		Probabilities: probs,
	}, nil
}

// completeColumns returns the column indices (and names) of work.Matrix
// with no missing value in the given rows.
func completeColumns(work *dataset.Organized, rows []int) ([]int, []string) {
	nf := work.NFeatures()
	var cols []int
	var names []string
	for j := 0; j < nf; j++ {
		complete := true
		for _, r := range rows {
			if math.IsNaN(work.Matrix.At(r, j)) {
				complete = false
				break
			}
		}
		if complete {
			cols = append(cols, j)
			names = append(names, work.FeatureIDs[j])
		}
	}
	return cols, names
}

// subsetMatrix copies the given rows and columns of X into a fresh
// matrix.
func subsetMatrix(X mat.Matrix, rows, cols []int) *mat.Dense {
	out := mat.NewDense(len(rows), len(cols), nil)
	for i, r := range rows {
		for j, c := range cols {
			out.Set(i, j, X.At(r, c))
		}
	}
	return out
}

func subsetTarget(target []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = target[r]
	}
	return out
}

// restrictColumns reduces both matrices to the selected feature names,
// preserving the order of selected.
func restrictColumns(XTrain, XTest *mat.Dense, names, selected []string) (*mat.Dense, *mat.Dense) {
	index := make(map[string]int, len(names))
	for j, name := range names {
		index[name] = j
	}
	cols := make([]int, len(selected))
	for i, name := range selected {
		cols[i] = index[name]
	}

	trainRows, _ := XTrain.Dims()
	testRows, _ := XTest.Dims()
	allTrain := make([]int, trainRows)
	for i := range allTrain {
		allTrain[i] = i
	}
	allTest := make([]int, testRows)
	for i := range allTest {
		allTest[i] = i
	}
	return subsetMatrix(XTrain, allTrain, cols), subsetMatrix(XTest, allTest, cols)
}

func columnVector(values []float64) *mat.Dense {
	return mat.NewDense(len(values), 1, append([]float64(nil), values...))
}

// predictWith returns hard labels and positive-class probabilities from a
// fitted classifier.
func predictWith(clf *linear_model.LogisticRegressionCV, X *mat.Dense) ([]float64, []float64, error) {
	pred, err := clf.Predict(X)
	if err != nil {
		return nil, nil, err
	}
	proba, err := clf.PredictProba(X)
	if err != nil {
		return nil, nil, err
	}

	n, _ := X.Dims()
	labels := make([]float64, n)
	probs := make([]float64, n)
	for i := 0; i < n; i++ {
		labels[i] = pred.At(i, 0)
		probs[i] = proba.At(i, 1)
	}
	return labels, probs, nil
}

package crossval

import (
	"math"
	"time"

	"github.com/epimetry/microscope/dataset"
	"github.com/epimetry/microscope/linear_model"
	mserrors "github.com/epimetry/microscope/pkg/errors"
	mslog "github.com/epimetry/microscope/pkg/log"
	"github.com/epimetry/microscope/preprocessing"
	"github.com/epimetry/microscope/selection"
)

// TrainResult is a single-dataset training bundle: one fitted model with
// everything needed to score a different dataset later.
type TrainResult struct {
	Model   *linear_model.LogisticRegressionCV
	Scaler  *preprocessing.StandardScaler
	Imputer *preprocessing.Imputer

	// Features names the columns the model was fitted on, in order.
	Features []string

	Params RunParams
}

// Train fits the pipeline once on the entire labeled dataset.
//
// Unlike the per-fold path, only feature columns missing in every sample
// are dropped up front; partially missing columns are retained for the
// imputer. The Splitter field of cfg is ignored.
func Train(ds *dataset.Organized, cfg Config) (*TrainResult, error) {
	cfg = cfg.withDefaults()
	logger := mslog.GetLoggerWithName("crossval")

	labeled := ds.LabeledIndices()
	if len(labeled) == 0 {
		return nil, mserrors.Wrap(mserrors.ErrDegenerateLabels, "Train: no labeled samples")
	}
	work, err := ds.Subset(labeled)
	if err != nil {
		return nil, err
	}

	cols, names := observedColumns(work)
	if len(cols) == 0 {
		return nil, mserrors.Wrap(mserrors.ErrEmptyData, "every feature column is entirely missing")
	}

	rows := make([]int, work.NSamples())
	for i := range rows {
		rows[i] = i
	}
	X := subsetMatrix(work.Matrix, rows, cols)
	y := work.Target

	var imputer *preprocessing.Imputer
	if cfg.Imputation != "" {
		imputer, err = preprocessing.NewImputer(cfg.Imputation)
		if err != nil {
			return nil, err
		}
		if X, err = imputer.FitTransform(X, names); err != nil {
			return nil, err
		}
	}

	selected, err := selection.SelectFeatures(X, y, names, cfg.Selection, cfg.PThreshold)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, mserrors.Newf("no feature passed %s selection at p < %g",
			cfg.Selection, cfg.PThreshold)
	}
	X, _ = restrictColumns(X, X, names, selected)

	scaler := preprocessing.NewStandardScalerDefault()
	XScaled, err := scaler.FitTransform(X)
	if err != nil {
		return nil, err
	}

	clf := linear_model.NewLogisticRegressionCV(
		linear_model.WithCVPenalty(cfg.Penalty),
		linear_model.WithCVClassWeight(cfg.ClassWeight),
		linear_model.WithCVFolds(cfg.InternalFolds),
		linear_model.WithCVRandomState(cfg.Seed),
	)
	if err := clf.Fit(XScaled, columnVector(y)); err != nil {
		return nil, err
	}

	logger.Info("full-dataset training complete",
		mslog.SamplesKey, work.NSamples(),
		"features_used", len(selected),
		"penalty", string(cfg.Penalty),
		"best_c", clf.BestC())

	return &TrainResult{
		Model:    clf,
		Scaler:   scaler,
		Imputer:  imputer,
		Features: selected,
		Params: RunParams{
			FoldStrategy:  "none",
			Penalty:       string(cfg.Penalty),
			InternalFolds: cfg.InternalFolds,
			Selection:     string(cfg.Selection),
			PThreshold:    cfg.PThreshold,
			Imputation:    string(cfg.Imputation),
			ClassWeight:   string(cfg.ClassWeight),
			Seed:          cfg.Seed,
			Timestamp:     time.Now().UTC(),
		},
	}, nil
}

// Predict scores a different dataset with the stored pipeline: the
// training features are looked up by name in other, imputed and scaled
// with the train-fitted parameters, and passed to the classifier.
// Every training feature must be present in other.
func (t *TrainResult) Predict(other *dataset.Organized) (labels, probabilities []float64, err error) {
	defer mserrors.Recover(&err, "TrainResult.Predict")

	index := make(map[string]int, other.NFeatures())
	for j, name := range other.FeatureIDs {
		index[name] = j
	}
	cols := make([]int, len(t.Features))
	for i, name := range t.Features {
		j, ok := index[name]
		if !ok {
			return nil, nil, mserrors.Newf("feature %q used in training is absent from the dataset", name)
		}
		cols[i] = j
	}

	rows := make([]int, other.NSamples())
	for i := range rows {
		rows[i] = i
	}
	X := subsetMatrix(other.Matrix, rows, cols)

	if t.Imputer != nil {
		if X, err = t.Imputer.Transform(X, t.Features); err != nil {
			return nil, nil, err
		}
	}
	XScaled, err := t.Scaler.Transform(X)
	if err != nil {
		return nil, nil, err
	}
	return predictWith(t.Model, XScaled)
}

// observedColumns returns the columns of work.Matrix with at least one
// observed value.
func observedColumns(work *dataset.Organized) ([]int, []string) {
	nf := work.NFeatures()
	var cols []int
	var names []string
	for j := 0; j < nf; j++ {
		for i := 0; i < work.NSamples(); i++ {
			if !math.IsNaN(work.Matrix.At(i, j)) {
				cols = append(cols, j)
				names = append(names, work.FeatureIDs[j])
				break
			}
		}
	}
	return cols, names
}

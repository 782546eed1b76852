package crossval

import (
	"github.com/epimetry/microscope/core/model"
	"github.com/epimetry/microscope/linear_model"
	mserrors "github.com/epimetry/microscope/pkg/errors"
	"github.com/epimetry/microscope/preprocessing"
)

// ModelSnapshot captures the fitted parameters of one fold's pipeline in
// a serialization-friendly form.
type ModelSnapshot struct {
	Coef      []float64
	Intercept float64
	Classes   []int
	BestC     float64
	BestL1    float64

	ScalerMean  []float64
	ScalerScale []float64

	Features   []string
	FillValues map[string]float64
	FillPolicy string
}

// RunSnapshot is the persistable form of a CVResult.
type RunSnapshot struct {
	Models []ModelSnapshot

	TestIndices   []int
	Labels        []float64
	Predictions   []float64
	Probabilities []float64

	Params RunParams
}

// snapshotFold flattens one fold's fitted objects.
func snapshotFold(clf *linear_model.LogisticRegressionCV, scaler *preprocessing.StandardScaler,
	imputer *preprocessing.Imputer, features []string) ModelSnapshot {

	best := clf.Best()
	snap := ModelSnapshot{
		Coef:      append([]float64(nil), best.Coef()...),
		Intercept: best.Intercept(),
		Classes:   append([]int(nil), best.Classes()...),
		BestC:     clf.BestC(),
		BestL1:    clf.BestL1Ratio(),

		ScalerMean:  append([]float64(nil), scaler.Mean...),
		ScalerScale: append([]float64(nil), scaler.Scale...),

		Features: append([]string(nil), features...),
	}
	if imputer != nil {
		snap.FillPolicy = string(imputer.Policy)
		snap.FillValues = make(map[string]float64, len(imputer.FillValues))
		for k, v := range imputer.FillValues {
			snap.FillValues[k] = v
		}
	}
	return snap
}

// Snapshot flattens the result into its persistable form.
func (r *CVResult) Snapshot() *RunSnapshot {
	snap := &RunSnapshot{
		TestIndices:   r.TestIndices,
		Labels:        r.Labels,
		Predictions:   r.Predictions,
		Probabilities: r.Probabilities,
		Params:        r.Params,
	}
	for _, fold := range r.Folds {
		snap.Models = append(snap.Models, snapshotFold(fold.Model, fold.Scaler, fold.Imputer, fold.Features))
	}
	return snap
}

// Save writes the result's snapshot to filename as an opaque blob.
func (r *CVResult) Save(filename string) error {
	if err := model.SaveArtifact(r.Snapshot(), filename); err != nil {
		return mserrors.Wrapf(err, "save cross-validation results to %s", filename)
	}
	return nil
}

// LoadRunSnapshot reads a saved cross-validation result bundle.
func LoadRunSnapshot(filename string) (*RunSnapshot, error) {
	var snap RunSnapshot
	if err := model.LoadArtifact(&snap, filename); err != nil {
		return nil, mserrors.Wrapf(err, "load cross-validation results from %s", filename)
	}
	return &snap, nil
}

// TrainSnapshot is the persistable form of a TrainResult.
type TrainSnapshot struct {
	Model  ModelSnapshot
	Params RunParams
}

// Snapshot flattens the training bundle into its persistable form.
func (t *TrainResult) Snapshot() *TrainSnapshot {
	return &TrainSnapshot{
		Model:  snapshotFold(t.Model, t.Scaler, t.Imputer, t.Features),
		Params: t.Params,
	}
}

// Save writes the training bundle's snapshot to filename.
func (t *TrainResult) Save(filename string) error {
	if err := model.SaveArtifact(t.Snapshot(), filename); err != nil {
		return mserrors.Wrapf(err, "save training bundle to %s", filename)
	}
	return nil
}

// LoadTrainSnapshot reads a saved training bundle.
func LoadTrainSnapshot(filename string) (*TrainSnapshot, error) {
	var snap TrainSnapshot
	if err := model.LoadArtifact(&snap, filename); err != nil {
		return nil, mserrors.Wrapf(err, "load training bundle from %s", filename)
	}
	return &snap, nil
}

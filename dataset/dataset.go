// Package dataset loads DNA-methylation beta matrices with their sample
// metadata and organizes them for supervised learning.
//
// A dataset moves through two explicit stages. Load produces a Loaded
// value holding the beta matrix (rows = samples, columns = CpG features,
// transposed from the feature-by-sample source layout) together with the
// group and phenotype tables. Organize consumes the Loaded value and
// produces an Organized value with a deterministic sample shuffle and a
// derived binary target. Organized values are never mutated; downstream
// consumers subset by index.
package dataset

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	mserrors "github.com/epimetry/microscope/pkg/errors"
	mslog "github.com/epimetry/microscope/pkg/log"
)

// Group labels recognized when deriving the binary target.
const (
	LabelCase    = "case"
	LabelControl = "control"
)

// Binary target encoding. Samples whose group label is missing or
// unrecognized carry math.NaN().
const (
	TargetControl = 0.0
	TargetCase    = 1.0
)

// Loaded is a dataset as read from disk, before sample shuffling and
// target derivation.
type Loaded struct {
	// Beta matrix, rows = samples, columns = features.
	Matrix *mat.Dense

	// Row and column identities of Matrix.
	SampleIDs  []string
	FeatureIDs []string

	// Groups maps sample-id to its group label ("case"/"control" or
	// anything else found in the table).
	Groups map[string]string

	// Phenotypes maps sample-id to its phenotype record, keyed by the
	// metadata column name. Carried for external reporting; the training
	// pipeline does not read it.
	Phenotypes map[string]map[string]string

	// Report records what was actually loaded versus requested.
	Report LoadReport
}

// LoadReport describes the outcome of a Load call.
type LoadReport struct {
	// SamplesRequested and FeaturesRequested are the caps passed via
	// options; zero means no cap.
	SamplesRequested  int
	FeaturesRequested int

	// SamplesLoaded and FeaturesLoaded are the realized dimensions.
	SamplesLoaded  int
	FeaturesLoaded int

	// Truncated reports whether a requested cap was applied. If a cap was
	// requested but infeasible, Truncated is false and FallbackReason
	// explains why the full table was loaded instead.
	Truncated      bool
	FallbackReason string
}

// Organized is a dataset ready for training: samples deterministically
// shuffled, binary target derived from group labels.
type Organized struct {
	// Matrix rows follow the shuffled sample order.
	Matrix     *mat.Dense
	SampleIDs  []string
	FeatureIDs []string

	// Target holds one value per Matrix row: TargetCase, TargetControl,
	// or NaN for samples without a recognized group label.
	Target []float64

	// Seed used for the shuffle.
	Seed int64
}

// NSamples returns the number of samples (matrix rows).
func (d *Organized) NSamples() int {
	r, _ := d.Matrix.Dims()
	return r
}

// NFeatures returns the number of features (matrix columns).
func (d *Organized) NFeatures() int {
	_, c := d.Matrix.Dims()
	return c
}

// LabeledIndices returns the row indices with a defined binary target, in
// row order.
func (d *Organized) LabeledIndices() []int {
	var idx []int
	for i, t := range d.Target {
		if !math.IsNaN(t) {
			idx = append(idx, i)
		}
	}
	return idx
}

// Subset copies the given rows into a fresh Organized value. Used to
// restrict training to labeled samples or to carve out external test
// sets.
func (d *Organized) Subset(rows []int) (*Organized, error) {
	n := d.NSamples()
	for _, r := range rows {
		if r < 0 || r >= n {
			return nil, mserrors.NewValidationError("rows", "index out of range", r)
		}
	}

	nf := d.NFeatures()
	sub := &Organized{
		Matrix:     mat.NewDense(len(rows), nf, nil),
		SampleIDs:  make([]string, len(rows)),
		FeatureIDs: d.FeatureIDs,
		Target:     make([]float64, len(rows)),
		Seed:       d.Seed,
	}
	for i, r := range rows {
		for j := 0; j < nf; j++ {
			sub.Matrix.Set(i, j, d.Matrix.At(r, j))
		}
		sub.SampleIDs[i] = d.SampleIDs[r]
		sub.Target[i] = d.Target[r]
	}
	return sub, nil
}

// Organize derives the binary target from the group-label table and
// permutes the sample order with the given seed. The input Loaded value
// is not modified.
//
// Label vocabulary handling: if neither recognized category appears among
// the labels of loaded samples, Organize fails. If exactly one appears, a
// warning is emitted and partial assignment proceeds; samples with
// unrecognized or absent labels keep a NaN target.
func Organize(l *Loaded, seed int64) (*Organized, error) {
	logger := mslog.GetLoggerWithName("dataset")

	nSamples, nFeatures := l.Matrix.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return nil, mserrors.Wrap(mserrors.ErrEmptyData, "Organize")
	}

	target := make([]float64, nSamples)
	seenSet := make(map[string]bool)
	haveCase, haveControl := false, false
	for i, id := range l.SampleIDs {
		label, ok := l.Groups[id]
		if !ok {
			target[i] = math.NaN()
			continue
		}
		seenSet[label] = true
		switch label {
		case LabelCase:
			target[i] = TargetCase
			haveCase = true
		case LabelControl:
			target[i] = TargetControl
			haveControl = true
		default:
			target[i] = math.NaN()
		}
	}

	seen := make([]string, 0, len(seenSet))
	for label := range seenSet {
		seen = append(seen, label)
	}
	sort.Strings(seen)

	switch {
	case !haveCase && !haveControl:
		return nil, mserrors.Newf(
			"target assignment failed: neither %q nor %q present among group labels %v",
			LabelCase, LabelControl, seen)
	case !haveCase:
		mserrors.Warn(mserrors.NewLabelVocabularyWarning([]string{LabelControl}, seen))
	case !haveControl:
		mserrors.Warn(mserrors.NewLabelVocabularyWarning([]string{LabelCase}, seen))
	}

	perm := make([]int, nSamples)
	for i := range perm {
		perm[i] = i
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	rng.Shuffle(nSamples, func(i, j int) {
		perm[i], perm[j] = perm[j], perm[i]
	})

	org := &Organized{
		Matrix:     mat.NewDense(nSamples, nFeatures, nil),
		SampleIDs:  make([]string, nSamples),
		FeatureIDs: append([]string(nil), l.FeatureIDs...),
		Target:     make([]float64, nSamples),
		Seed:       seed,
	}
	for i, src := range perm {
		for j := 0; j < nFeatures; j++ {
			org.Matrix.Set(i, j, l.Matrix.At(src, j))
		}
		org.SampleIDs[i] = l.SampleIDs[src]
		org.Target[i] = target[src]
	}

	labeled := 0
	for _, t := range org.Target {
		if !math.IsNaN(t) {
			labeled++
		}
	}
	logger.Info("dataset organized",
		mslog.SamplesKey, nSamples,
		mslog.FeaturesKey, nFeatures,
		"labeled_samples", labeled,
		"seed", seed)

	return org, nil
}

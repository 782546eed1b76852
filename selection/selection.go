// Package selection implements univariate feature selection for the
// methylation pipeline. Each CpG feature is tested for a difference
// between the two label groups; features whose p-value falls below the
// configured threshold are retained.
//
// Selection statistics must only ever see training-partition rows; the
// cross-validation orchestrator is responsible for passing the training
// subset here.
package selection

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	mserrors "github.com/epimetry/microscope/pkg/errors"
)

// Method identifies the two-group test used to score features.
type Method string

const (
	// MethodWilcoxon ranks features by a Mann-Whitney U test (normal
	// approximation with tie correction).
	MethodWilcoxon Method = "wilcoxon"
	// MethodTTest ranks features by a Welch two-sample t-test.
	MethodTTest Method = "ttest"
	// MethodNone retains all features.
	MethodNone Method = "none"
)

// SelectFeatures returns the feature names whose two-group p-value is
// strictly below pThreshold, preserving the input column order.
//
// X has one row per sample and one column per feature; features names the
// columns. y holds the binary target per row; rows with a missing (NaN)
// target are excluded from the comparison. MethodNone returns all features
// unchanged. An unrecognized method is a configuration error.
func SelectFeatures(X mat.Matrix, y []float64, features []string, method Method, pThreshold float64) ([]string, error) {
	r, c := X.Dims()
	if len(y) != r {
		return nil, mserrors.NewDimensionError("selection.SelectFeatures", r, len(y), 0)
	}
	if len(features) != c {
		return nil, mserrors.NewDimensionError("selection.SelectFeatures", len(features), c, 1)
	}

	if method == MethodNone {
		out := make([]string, len(features))
		copy(out, features)
		return out, nil
	}

	var test func(g0, g1 []float64) float64
	switch method {
	case MethodWilcoxon:
		test = mannWhitneyPValue
	case MethodTTest:
		test = welchPValue
	default:
		return nil, mserrors.NewValidationError("feat_selection", "unrecognized feature selection method", string(method))
	}

	group0, group1 := groupRows(y)
	if len(group0) == 0 || len(group1) == 0 {
		return nil, mserrors.Wrapf(mserrors.ErrDegenerateLabels,
			"selection requires both label groups (got %d zeros, %d ones)", len(group0), len(group1))
	}

	kept := make([]string, 0, c)
	g0 := make([]float64, len(group0))
	g1 := make([]float64, len(group1))
	for j := 0; j < c; j++ {
		for i, row := range group0 {
			g0[i] = X.At(row, j)
		}
		for i, row := range group1 {
			g1[i] = X.At(row, j)
		}
		if p := test(g0, g1); p < pThreshold {
			kept = append(kept, features[j])
		}
	}
	return kept, nil
}

// groupRows partitions row indices by binary label, skipping rows whose
// target is missing.
func groupRows(y []float64) (group0, group1 []int) {
	for i, label := range y {
		switch {
		case math.IsNaN(label):
			continue
		case label == 0:
			group0 = append(group0, i)
		default:
			group1 = append(group1, i)
		}
	}
	return group0, group1
}

// mannWhitneyPValue computes a two-sided Mann-Whitney U p-value using the
// normal approximation with tie correction and continuity correction.
func mannWhitneyPValue(g0, g1 []float64) float64 {
	n0 := float64(len(g0))
	n1 := float64(len(g1))
	n := n0 + n1

	type obs struct {
		value float64
		group int
	}
	all := make([]obs, 0, int(n))
	for _, v := range g0 {
		all = append(all, obs{v, 0})
	}
	for _, v := range g1 {
		all = append(all, obs{v, 1})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].value < all[j].value })

	// Average ranks for ties; accumulate the tie correction term.
	ranks := make([]float64, len(all))
	tieTerm := 0.0
	for i := 0; i < len(all); {
		j := i
		for j < len(all) && all[j].value == all[i].value {
			j++
		}
		avgRank := float64(i+j+1) / 2.0 // ranks are 1-based
		for k := i; k < j; k++ {
			ranks[k] = avgRank
		}
		t := float64(j - i)
		if t > 1 {
			tieTerm += t*t*t - t
		}
		i = j
	}

	r0 := 0.0
	for i, o := range all {
		if o.group == 0 {
			r0 += ranks[i]
		}
	}

	u0 := r0 - n0*(n0+1)/2.0
	meanU := n0 * n1 / 2.0
	varU := n0 * n1 / 12.0 * ((n + 1) - tieTerm/(n*(n-1)))
	if varU <= 0 {
		// All observations tied; no evidence of a group difference.
		return 1.0
	}

	z := (math.Abs(u0-meanU) - 0.5) / math.Sqrt(varU)
	if z < 0 {
		z = 0
	}
	normal := distuv.Normal{Mu: 0, Sigma: 1}
	return 2.0 * normal.Survival(z)
}

// welchPValue computes a two-sided Welch t-test p-value with
// Welch-Satterthwaite degrees of freedom.
func welchPValue(g0, g1 []float64) float64 {
	n0 := float64(len(g0))
	n1 := float64(len(g1))
	if n0 < 2 || n1 < 2 {
		return 1.0
	}

	m0 := stat.Mean(g0, nil)
	m1 := stat.Mean(g1, nil)
	v0 := stat.Variance(g0, nil)
	v1 := stat.Variance(g1, nil)

	se2 := v0/n0 + v1/n1
	if se2 <= 0 {
		return 1.0
	}

	t := (m0 - m1) / math.Sqrt(se2)
	df := se2 * se2 / ((v0*v0)/(n0*n0*(n0-1)) + (v1*v1)/(n1*n1*(n1-1)))
	if df <= 0 || math.IsNaN(df) {
		return 1.0
	}

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2.0 * dist.Survival(math.Abs(t))
}

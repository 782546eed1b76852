// Package visualize renders evaluation results as plot files.
//
// Rendering is a pure consumer of structured results: nothing here feeds
// back into training, and every function takes materialized labels and
// scores rather than live pipeline objects.
package visualize

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/epimetry/microscope/metrics"
	mserrors "github.com/epimetry/microscope/pkg/errors"
)

// ROCPlot holds a computed ROC curve ready for rendering or inspection.
type ROCPlot struct {
	FPR        []float64
	TPR        []float64
	Thresholds []float64
	AUC        float64
}

// NewROCPlot computes the ROC curve and its AUC from binary labels and
// positive-class scores.
func NewROCPlot(labels, scores []float64) (*ROCPlot, error) {
	if len(labels) != len(scores) {
		return nil, mserrors.NewDimensionError("NewROCPlot", len(labels), len(scores), 0)
	}

	yTrue := mat.NewVecDense(len(labels), append([]float64(nil), labels...))
	yScore := mat.NewVecDense(len(scores), append([]float64(nil), scores...))

	fpr, tpr, thresholds, err := metrics.ROCCurve(yTrue, yScore)
	if err != nil {
		return nil, err
	}
	auc, err := metrics.ROCAUC(yTrue, yScore)
	if err != nil {
		return nil, err
	}

	return &ROCPlot{FPR: fpr, TPR: tpr, Thresholds: thresholds, AUC: auc}, nil
}

// Save renders the curve to filename; the format follows the file
// extension (png, svg, pdf).
func (r *ROCPlot) Save(filename string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("ROC curve (AUC = %.3f)", r.AUC)
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	pts := make(plotter.XYs, len(r.FPR))
	for i := range r.FPR {
		pts[i].X = r.FPR[i]
		pts[i].Y = r.TPR[i]
	}
	curve, err := plotter.NewLine(pts)
	if err != nil {
		return mserrors.Wrap(err, "build roc curve line")
	}
	curve.Width = vg.Points(2)

	// Chance diagonal for reference.
	diag, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return mserrors.Wrap(err, "build chance diagonal")
	}
	diag.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	diag.Color = color.Gray{Y: 128}

	p.Add(curve, diag)
	p.Legend.Add(fmt.Sprintf("AUC = %.3f", r.AUC), curve)
	p.Legend.Top = false

	if err := p.Save(6*vg.Inch, 6*vg.Inch, filename); err != nil {
		return mserrors.Wrapf(err, "save roc plot to %s", filename)
	}
	return nil
}

// SaveROCPlot computes and renders a ROC curve in one call, returning the
// AUC.
func SaveROCPlot(labels, scores []float64, filename string) (float64, error) {
	roc, err := NewROCPlot(labels, scores)
	if err != nil {
		return 0, err
	}
	if err := roc.Save(filename); err != nil {
		return 0, err
	}
	return roc.AUC, nil
}

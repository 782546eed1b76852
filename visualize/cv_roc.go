package visualize

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	mserrors "github.com/epimetry/microscope/pkg/errors"
)

// cvGridPoints is the resolution of the common false-positive-rate grid
// the per-fold curves are interpolated onto.
const cvGridPoints = 101

// FoldScores carries one fold's held-out labels and positive-class
// scores, aligned by position.
type FoldScores struct {
	Labels []float64
	Scores []float64
}

// CVROCPlot aggregates the per-fold ROC curves of a cross-validation run
// onto a common false-positive-rate grid, with the mean curve and its
// pointwise standard deviation across folds.
type CVROCPlot struct {
	Folds []*ROCPlot

	GridFPR []float64
	MeanTPR []float64
	StdTPR  []float64

	MeanAUC float64
	StdAUC  float64
}

// NewCVROCPlot computes one ROC curve per fold and their mean. Folds
// whose held-out labels are single-class carry no curve and are skipped;
// at least one fold must have both classes.
func NewCVROCPlot(folds []FoldScores) (*CVROCPlot, error) {
	cv := &CVROCPlot{
		GridFPR: make([]float64, cvGridPoints),
		MeanTPR: make([]float64, cvGridPoints),
		StdTPR:  make([]float64, cvGridPoints),
	}
	for i := range cv.GridFPR {
		cv.GridFPR[i] = float64(i) / float64(cvGridPoints-1)
	}

	var gridTPRs [][]float64
	var aucs []float64
	for _, fold := range folds {
		if !hasBothClasses(fold.Labels) {
			continue
		}
		roc, err := NewROCPlot(fold.Labels, fold.Scores)
		if err != nil {
			return nil, err
		}
		cv.Folds = append(cv.Folds, roc)
		aucs = append(aucs, roc.AUC)

		onGrid := make([]float64, cvGridPoints)
		for i, x := range cv.GridFPR {
			onGrid[i] = interpolate(roc.FPR, roc.TPR, x)
		}
		onGrid[0] = 0.0
		gridTPRs = append(gridTPRs, onGrid)
	}
	if len(cv.Folds) == 0 {
		return nil, mserrors.Wrap(mserrors.ErrDegenerateLabels,
			"NewCVROCPlot: no fold holds both classes")
	}

	column := make([]float64, len(gridTPRs))
	for i := range cv.GridFPR {
		for f, tprs := range gridTPRs {
			column[f] = tprs[i]
		}
		cv.MeanTPR[i] = stat.Mean(column, nil)
		if len(column) > 1 {
			cv.StdTPR[i] = stat.StdDev(column, nil)
		}
	}
	cv.MeanTPR[cvGridPoints-1] = 1.0

	cv.MeanAUC = stat.Mean(aucs, nil)
	if len(aucs) > 1 {
		cv.StdAUC = stat.StdDev(aucs, nil)
	}
	return cv, nil
}

// Save renders the per-fold curves, the mean curve with its one-standard-
// deviation band, and the chance diagonal; the format follows the file
// extension (png, svg, pdf).
func (c *CVROCPlot) Save(filename string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("ROC curves across folds (mean AUC = %.3f ± %.3f)", c.MeanAUC, c.StdAUC)
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	band, err := stdBand(c.GridFPR, c.MeanTPR, c.StdTPR)
	if err != nil {
		return err
	}
	p.Add(band)

	for _, fold := range c.Folds {
		pts := make(plotter.XYs, len(fold.FPR))
		for i := range fold.FPR {
			pts[i].X = fold.FPR[i]
			pts[i].Y = fold.TPR[i]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return mserrors.Wrap(err, "build fold roc line")
		}
		line.Width = vg.Points(0.5)
		line.Color = color.Gray{Y: 170}
		p.Add(line)
	}

	meanPts := make(plotter.XYs, len(c.GridFPR))
	for i := range c.GridFPR {
		meanPts[i].X = c.GridFPR[i]
		meanPts[i].Y = c.MeanTPR[i]
	}
	mean, err := plotter.NewLine(meanPts)
	if err != nil {
		return mserrors.Wrap(err, "build mean roc line")
	}
	mean.Width = vg.Points(2)
	mean.Color = color.NRGBA{B: 180, A: 255}

	diag, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return mserrors.Wrap(err, "build chance diagonal")
	}
	diag.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	diag.Color = color.Gray{Y: 128}

	p.Add(mean, diag)
	p.Legend.Add(fmt.Sprintf("mean AUC = %.3f ± %.3f", c.MeanAUC, c.StdAUC), mean)
	p.Legend.Top = false

	if err := p.Save(6*vg.Inch, 6*vg.Inch, filename); err != nil {
		return mserrors.Wrapf(err, "save cv roc plot to %s", filename)
	}
	return nil
}

// SaveCVROCPlot computes and renders the per-fold ROC summary in one
// call, returning the mean AUC across folds.
func SaveCVROCPlot(folds []FoldScores, filename string) (float64, error) {
	cv, err := NewCVROCPlot(folds)
	if err != nil {
		return 0, err
	}
	if err := cv.Save(filename); err != nil {
		return 0, err
	}
	return cv.MeanAUC, nil
}

// stdBand builds the shaded mean ± std region, clipped to [0, 1].
func stdBand(grid, mean, std []float64) (*plotter.Polygon, error) {
	pts := make(plotter.XYs, 0, 2*len(grid))
	for i := range grid {
		pts = append(pts, plotter.XY{X: grid[i], Y: clampUnit(mean[i] + std[i])})
	}
	for i := len(grid) - 1; i >= 0; i-- {
		pts = append(pts, plotter.XY{X: grid[i], Y: clampUnit(mean[i] - std[i])})
	}

	band, err := plotter.NewPolygon(pts)
	if err != nil {
		return nil, mserrors.Wrap(err, "build std band")
	}
	band.Color = color.NRGBA{B: 180, A: 40}
	band.LineStyle.Color = color.NRGBA{}
	return band, nil
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func hasBothClasses(labels []float64) bool {
	var pos, neg bool
	for _, y := range labels {
		if y == 1.0 {
			pos = true
		} else {
			neg = true
		}
	}
	return pos && neg
}

// interpolate evaluates the piecewise-linear curve through (xs, ys) at
// x. xs must be non-decreasing; x outside the range clamps to the
// nearest endpoint.
func interpolate(xs, ys []float64, x float64) float64 {
	if x <= xs[0] {
		return ys[0]
	}
	for i := 1; i < len(xs); i++ {
		if x <= xs[i] {
			if xs[i] == xs[i-1] {
				return ys[i]
			}
			t := (x - xs[i-1]) / (xs[i] - xs[i-1])
			return ys[i-1] + t*(ys[i]-ys[i-1])
		}
	}
	return ys[len(ys)-1]
}

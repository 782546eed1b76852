package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

const epsilon = 1e-9

func TestStandardScalerFitTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1.0, 10.0,
		2.0, 20.0,
		3.0, 30.0,
		4.0, 40.0,
	})

	scaler := NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	// Each column of the transformed training data must have mean ~0 and
	// variance ~1.
	r, c := scaled.Dims()
	for j := 0; j < c; j++ {
		sum := 0.0
		for i := 0; i < r; i++ {
			sum += scaled.At(i, j)
		}
		mean := sum / float64(r)
		if math.Abs(mean) > epsilon {
			t.Errorf("column %d: mean = %g, want ~0", j, mean)
		}

		sumSq := 0.0
		for i := 0; i < r; i++ {
			d := scaled.At(i, j) - mean
			sumSq += d * d
		}
		variance := sumSq / float64(r)
		if math.Abs(variance-1.0) > epsilon {
			t.Errorf("column %d: variance = %g, want ~1", j, variance)
		}
	}
}

func TestStandardScalerReuseDoesNotRefit(t *testing.T) {
	XTrain := mat.NewDense(3, 2, []float64{
		1.0, 5.0,
		2.0, 7.0,
		3.0, 9.0,
	})
	XTest := mat.NewDense(2, 2, []float64{
		100.0, -50.0,
		200.0, -70.0,
	})

	scaler := NewStandardScalerDefault()
	if err := scaler.Fit(XTrain); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	meanBefore := append([]float64(nil), scaler.Mean...)
	scaleBefore := append([]float64(nil), scaler.Scale...)

	if _, err := scaler.Transform(XTest); err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	for j := range meanBefore {
		if scaler.Mean[j] != meanBefore[j] {
			t.Errorf("Mean[%d] changed after transforming test data", j)
		}
		if scaler.Scale[j] != scaleBefore[j] {
			t.Errorf("Scale[%d] changed after transforming test data", j)
		}
	}
}

func TestStandardScalerConstantFeature(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{5.0, 5.0, 5.0})

	scaler := NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	// A constant feature gets scale 1, so the result is all zeros rather
	// than NaN.
	for i := 0; i < 3; i++ {
		if v := scaled.At(i, 0); v != 0.0 {
			t.Errorf("row %d: got %g, want 0", i, v)
		}
	}
}

func TestStandardScalerNotFitted(t *testing.T) {
	scaler := NewStandardScalerDefault()
	if _, err := scaler.Transform(mat.NewDense(1, 1, []float64{1})); err == nil {
		t.Fatal("Transform on an unfitted scaler should fail")
	}
}

func TestStandardScalerDimensionMismatch(t *testing.T) {
	scaler := NewStandardScalerDefault()
	if err := scaler.Fit(mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if _, err := scaler.Transform(mat.NewDense(2, 3, nil)); err == nil {
		t.Fatal("Transform with mismatched feature count should fail")
	}
}

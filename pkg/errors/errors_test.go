package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFittedError(t *testing.T) {
	err := NewNotFittedError("StandardScaler", "Transform")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "StandardScaler")
	assert.Contains(t, err.Error(), "Transform")

	var nf *NotFittedError
	assert.True(t, As(err, &nf))
}

func TestDimensionError(t *testing.T) {
	err := NewDimensionError("Fit", 10, 7, 1)
	var dim *DimensionError
	require.True(t, As(err, &dim))
	assert.Equal(t, 10, dim.Expected)
	assert.Equal(t, 7, dim.Got)
	assert.Equal(t, 1, dim.Axis)
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("penalty", "unrecognized penalty", "ridge")
	var v *ValidationError
	require.True(t, As(err, &v))
	assert.Equal(t, "penalty", v.ParamName)
	assert.Contains(t, err.Error(), "ridge")
}

func TestWrapPreservesSentinels(t *testing.T) {
	err := Wrapf(ErrDegenerateLabels, "fold %d", 3)
	assert.True(t, Is(err, ErrDegenerateLabels))
	assert.Contains(t, err.Error(), "fold 3")

	assert.Nil(t, Wrap(nil, "context"))
}

func TestWarningHandlerPrecedence(t *testing.T) {
	var viaHandler, viaSink error
	SetZerologWarnFunc(func(w error) { viaSink = w })
	defer SetZerologWarnFunc(nil)

	Warn(NewConvergenceWarning("lbfgs", 100, ""))
	require.Error(t, viaSink)

	SetWarningHandler(func(w error) { viaHandler = w })
	defer SetWarningHandler(nil)

	warning := NewTruncationWarning(100, 4, "too wide")
	Warn(warning)
	assert.Equal(t, warning, viaHandler)
}

func TestRecoverConvertsPanic(t *testing.T) {
	run := func() (err error) {
		defer Recover(&err, "TestOp")
		panic("matrix dimensions misaligned")
	}

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TestOp")

	var pe *PanicError
	assert.True(t, As(err, &pe))
}

func TestCheckValues(t *testing.T) {
	assert.NoError(t, CheckValues("fit", []float64{1, 2, 3}, 5))

	err := CheckValues("fit", []float64{1, mustNaN(), 3}, 5)
	require.Error(t, err)

	var num *NumericalInstabilityError
	assert.True(t, As(err, &num))
}

func mustNaN() float64 {
	zero := 0.0
	return zero / zero
}

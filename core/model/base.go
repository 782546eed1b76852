// Package model provides the shared estimator abstractions for the
// microscope toolkit: fitted-state tracking and opaque artifact
// persistence.
//
// Estimators either embed BaseEstimator (preprocessing transformers) or
// compose a StateManager (classifiers), mirroring the two patterns used
// across the codebase. Both make "predict before fit" a checkable error
// instead of a runtime fault.
package model

// EstimatorState represents the learning state of an estimator.
type EstimatorState int

const (
	// NotFitted indicates the estimator is not yet trained
	NotFitted EstimatorState = iota
	// Fitted indicates the estimator has been trained
	Fitted
)

// BaseEstimator is the embeddable base for stateful transformers.
type BaseEstimator struct {
	// State holds the estimator's learning state. Public for gob encoding.
	State EstimatorState
}

// IsFitted returns whether the estimator has been fitted with training data.
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted marks the estimator as fitted. Called by implementations after
// a successful Fit, not by end users.
func (e *BaseEstimator) SetFitted() {
	e.State = Fitted
}

// Reset returns the estimator to its initial untrained state.
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
}

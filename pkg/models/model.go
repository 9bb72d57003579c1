// Package models provides the univariate forecasting models rancast evaluates.
//
// Models are deliberately opaque to the evaluation harness: they are consumed
// through the Model interface (fit a series, predict at timestamps) so the
// harness can be tested against a deterministic stub independent of any
// particular algorithm.
package models

import (
	"context"
	"errors"
	"time"
)

// Series is a univariate time series: one value per point in time.
// The order of points carries no meaning; models must be order-invariant in
// their training rows (the evaluation splits are shuffled).
type Series struct {
	Times  []time.Time
	Values []float64
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.Times) }

var (
	// ErrNotFitted is returned by Predict before a successful Fit.
	ErrNotFitted = errors.New("models: model has not been fitted")

	// ErrEmptySeries is returned when a training series carries no points.
	ErrEmptySeries = errors.New("models: series is empty")

	// ErrLengthMismatch is returned when a series' times and values differ in length.
	ErrLengthMismatch = errors.New("models: times and values length mismatch")
)

// Model is a univariate forecaster: fit once on a training series, then
// predict values at arbitrary timestamps.
type Model interface {
	// Name returns a short model identifier, e.g. "additive" or "naive".
	Name() string

	// Fit estimates model parameters from the training series.
	Fit(ctx context.Context, series Series) error

	// Predict returns one predicted value per requested timestamp.
	Predict(ctx context.Context, at []time.Time) ([]float64, error)
}

// validate performs the shared sanity checks on a training series.
func validate(series Series) error {
	if len(series.Times) != len(series.Values) {
		return ErrLengthMismatch
	}
	if series.Len() == 0 {
		return ErrEmptySeries
	}
	return nil
}

// Package eval implements the forecast accuracy protocol: smoothing of the
// selected cell's target series, a seeded random holdout split, and joint R²
// scoring of two univariate forecasts.
package eval

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// ErrTooFewRows is returned when a series is too short to split into a
// usable train and test set.
var ErrTooFewRows = errors.New("eval: too few rows to split")

// Split holds row indices for the train and test partitions.
type Split struct {
	Train []int
	Test  []int
}

// ShuffleSplit permutes [0, n) with the given seed and carves off the last
// int(n*testFraction) permuted indices as the test set.
//
// The shuffle deliberately destroys temporal order: test points may precede
// train points in time, so the resulting score is a random-holdout accuracy
// estimate rather than a true out-of-sample forecast. Callers relying on the
// same seed and the same n get a bit-identical split every time.
func ShuffleSplit(n int, testFraction float64, seed int64) (Split, error) {
	if testFraction <= 0 || testFraction >= 1 {
		return Split{}, fmt.Errorf("eval: test fraction must be in (0, 1), got %g", testFraction)
	}

	nTest := int(float64(n) * testFraction)
	nTrain := n - nTest
	if nTest < 1 || nTrain < 3 {
		return Split{}, fmt.Errorf("%w: %d rows at test fraction %g", ErrTooFewRows, n, testFraction)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return Split{
		Train: perm[:nTrain],
		Test:  perm[nTrain:],
	}, nil
}

// Smooth applies a trailing mean of the given window (minimum one sample, so
// early values use a shrinking window). window of one returns a copy.
//
// Each output is the direct mean of its window slice; a running sum would
// accumulate rounding drift and break the window-of-one copy guarantee.
func Smooth(values []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}

	out := make([]float64, len(values))
	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		out[i] = floats.Sum(values[lo:i+1]) / float64(i+1-lo)
	}
	return out
}

package models

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
)

// AdditiveModel implements the Model interface with an additive time-series
// regressor:
//   - Piecewise-linear trend with evenly spaced changepoints over the first
//     80% of the training range
//   - Daily and weekly seasonality via Fourier terms
//
// The components are fitted jointly by ridge-regularized least squares.
// ChangepointScale controls how readily the trend bends: larger values
// penalize changepoint slope deltas less, allowing a more flexible trend.
//
// The model is order-invariant in its training rows and thread-safe for
// concurrent Predict calls after fitting.
type AdditiveModel struct {
	changepoints     int
	changepointScale float64
	dailyOrder       int
	weeklyOrder      int

	mu     sync.RWMutex
	fitted bool
	origin time.Time
	span   float64 // training range in seconds
	cps    []float64
	beta   []float64
}

// Default additive model parameters.
const (
	DefaultChangepoints     = 25
	DefaultChangepointScale = 0.05
	defaultDailyOrder       = 3
	defaultWeeklyOrder      = 3
)

// NewAdditiveModel creates an additive regressor.
//
// changepoints is the number of potential trend changepoints (0 uses the
// default of 25; the count is clamped so each changepoint has at least two
// training points). changepointScale is the changepoint sensitivity
// (0 uses the default of 0.05).
func NewAdditiveModel(changepoints int, changepointScale float64) *AdditiveModel {
	if changepoints <= 0 {
		changepoints = DefaultChangepoints
	}
	if changepointScale <= 0 {
		changepointScale = DefaultChangepointScale
	}

	return &AdditiveModel{
		changepoints:     changepoints,
		changepointScale: changepointScale,
		dailyOrder:       defaultDailyOrder,
		weeklyOrder:      defaultWeeklyOrder,
	}
}

func (m *AdditiveModel) Name() string { return "additive" }

// Fit estimates trend and seasonality coefficients from the training series
// by solving the ridge-penalized normal equations.
func (m *AdditiveModel) Fit(ctx context.Context, series Series) error {
	if err := validate(series); err != nil {
		return err
	}
	if series.Len() < 3 {
		return fmt.Errorf("additive: need at least 3 training points, got %d", series.Len())
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// The series may arrive shuffled; recover the temporal extent.
	origin, last := series.Times[0], series.Times[0]
	for _, t := range series.Times[1:] {
		if t.Before(origin) {
			origin = t
		}
		if t.After(last) {
			last = t
		}
	}
	span := last.Sub(origin).Seconds()
	if span <= 0 {
		return fmt.Errorf("additive: training series has no temporal extent")
	}

	n := series.Len()
	k := m.changepoints
	if max := n/2 - 1; k > max {
		k = max
	}
	if k < 0 {
		k = 0
	}

	cps := make([]float64, k)
	for j := range cps {
		cps[j] = 0.8 * float64(j+1) / float64(k+1)
	}

	p := 2 + k + 2*m.dailyOrder + 2*m.weeklyOrder
	X := mat.NewDense(n, p, nil)
	for i, t := range series.Times {
		X.SetRow(i, designRow(t, origin, span, cps, m.dailyOrder, m.weeklyOrder))
	}
	y := mat.NewVecDense(n, series.Values)

	var xtx mat.Dense
	xtx.Mul(X.T(), X)

	// Ridge penalties: the trend itself is nearly free, changepoint deltas
	// are damped by the sensitivity, seasonal terms lightly regularized.
	cpPenalty := 1.0 / m.changepointScale
	for i := 0; i < p; i++ {
		penalty := 1e-8
		switch {
		case i >= 2 && i < 2+k:
			penalty = cpPenalty
		case i >= 2+k:
			penalty = 1e-3
		}
		xtx.Set(i, i, xtx.At(i, i)+penalty)
	}

	var xty mat.VecDense
	xty.MulVec(X.T(), y)

	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		return fmt.Errorf("additive: solve normal equations: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.fitted = true
	m.origin = origin
	m.span = span
	m.cps = cps
	m.beta = make([]float64, p)
	copy(m.beta, beta.RawVector().Data)

	return nil
}

// Predict evaluates the fitted regressor at each requested timestamp.
// Timestamps outside the training range extrapolate the final trend segment.
func (m *AdditiveModel) Predict(ctx context.Context, at []time.Time) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.fitted {
		return nil, ErrNotFitted
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	out := make([]float64, len(at))
	for i, t := range at {
		row := designRow(t, m.origin, m.span, m.cps, m.dailyOrder, m.weeklyOrder)
		var v float64
		for j, x := range row {
			v += x * m.beta[j]
		}
		out[i] = v
	}
	return out, nil
}

// designRow builds one row of the regression design matrix.
func designRow(t, origin time.Time, span float64, cps []float64, dailyOrder, weeklyOrder int) []float64 {
	row := make([]float64, 0, 2+len(cps)+2*dailyOrder+2*weeklyOrder)

	s := t.Sub(origin).Seconds() / span
	row = append(row, 1, s)

	for _, cp := range cps {
		if s > cp {
			row = append(row, s-cp)
		} else {
			row = append(row, 0)
		}
	}

	u := t.UTC()
	secondOfDay := float64(u.Hour()*3600 + u.Minute()*60 + u.Second())
	tod := secondOfDay / 86400
	for h := 1; h <= dailyOrder; h++ {
		angle := 2 * math.Pi * float64(h) * tod
		row = append(row, math.Sin(angle), math.Cos(angle))
	}

	isoDow := (int(u.Weekday()) + 6) % 7
	tow := (float64(isoDow)*86400 + secondOfDay) / 604800
	for h := 1; h <= weeklyOrder; h++ {
		angle := 2 * math.Pi * float64(h) * tow
		row = append(row, math.Sin(angle), math.Cos(angle))
	}

	return row
}

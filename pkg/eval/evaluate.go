package eval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/rancastproj/rancast/pkg/features"
	"github.com/rancastproj/rancast/pkg/models"
)

// Config holds the evaluation protocol parameters.
type Config struct {
	// SmoothWindow is the trailing-mean window applied to both target series
	// before splitting (default 3).
	SmoothWindow int

	// TestFraction is the share of rows held out for scoring (default 0.2).
	TestFraction float64

	// Seed drives the shuffle. The same seed on the same input reproduces the
	// split and the accuracy bit-for-bit.
	Seed int64
}

// DefaultConfig returns the standard evaluation parameters.
func DefaultConfig() Config {
	return Config{SmoothWindow: 3, TestFraction: 0.2, Seed: 42}
}

// ResultRow pairs the two actual values with the two predictions at one test
// timestamp.
type ResultRow struct {
	Ts           time.Time
	ActualUE     float64
	PredictedUE  float64
	ActualPRB    float64
	PredictedPRB float64
}

// Result is one completed evaluation for one cell. Accuracy is a single
// scalar for the whole evaluation; the writer repeats it on every row.
type Result struct {
	Cell      uint64
	Rows      []ResultRow
	Accuracy  float64
	R2UE      float64
	R2PRB     float64
	TrainRows int
	TestRows  int
}

// Harness runs the evaluation protocol over a selected cell's feature rows
// using two independent forecasting models, one per target variable.
type Harness struct {
	ueModel  models.Model
	prbModel models.Model
	cfg      Config
	logger   *slog.Logger
}

// NewHarness creates an evaluation harness. Models must be unfitted; the
// harness fits each on its own training series.
func NewHarness(ueModel, prbModel models.Model, cfg Config, logger *slog.Logger) *Harness {
	if cfg.SmoothWindow < 1 {
		cfg.SmoothWindow = 3
	}
	if cfg.TestFraction <= 0 {
		cfg.TestFraction = 0.2
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Harness{
		ueModel:  ueModel,
		prbModel: prbModel,
		cfg:      cfg,
		logger:   logger,
	}
}

// Evaluate smooths the cell's two target series, performs the seeded random
// split, fits both models on the training rows only, predicts at exactly the
// test timestamps, and scores the outcome as the uniform average of the two
// per-target R² values.
//
// Both targets share one permutation: with a fixed seed and series length the
// split is identical per series and bit-for-bit reproducible across runs.
func (h *Harness) Evaluate(ctx context.Context, rows []features.Row) (Result, error) {
	if len(rows) == 0 {
		return Result{}, errors.New("eval: no rows to evaluate")
	}
	if h.ueModel == nil || h.prbModel == nil {
		return Result{}, errors.New("eval: both models are required")
	}

	sorted := make([]features.Row, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Ts.Before(sorted[j].Ts) })

	n := len(sorted)
	times := make([]time.Time, n)
	ue := make([]float64, n)
	prb := make([]float64, n)
	for i, r := range sorted {
		times[i] = r.Ts
		ue[i] = r.AvgUE
		prb[i] = r.PRBUtil
	}

	ueSmooth := Smooth(ue, h.cfg.SmoothWindow)
	prbSmooth := Smooth(prb, h.cfg.SmoothWindow)

	split, err := ShuffleSplit(n, h.cfg.TestFraction, h.cfg.Seed)
	if err != nil {
		return Result{}, err
	}

	h.logger.Debug("evaluation split",
		"rows", n,
		"train", len(split.Train),
		"test", len(split.Test),
		"seed", h.cfg.Seed,
	)

	testTimes := pickTimes(times, split.Test)

	uePred, err := h.fitPredict(ctx, h.ueModel, times, ueSmooth, split, testTimes)
	if err != nil {
		return Result{}, fmt.Errorf("ue series: %w", err)
	}
	prbPred, err := h.fitPredict(ctx, h.prbModel, times, prbSmooth, split, testTimes)
	if err != nil {
		return Result{}, fmt.Errorf("prb series: %w", err)
	}

	ueActual := pick(ueSmooth, split.Test)
	prbActual := pick(prbSmooth, split.Test)

	r2UE := stat.RSquaredFrom(uePred, ueActual, nil)
	r2PRB := stat.RSquaredFrom(prbPred, prbActual, nil)

	result := Result{
		Cell:      sorted[0].Cell,
		Accuracy:  (r2UE + r2PRB) / 2, // uniform-average multi-output score
		R2UE:      r2UE,
		R2PRB:     r2PRB,
		TrainRows: len(split.Train),
		TestRows:  len(split.Test),
	}

	result.Rows = make([]ResultRow, len(split.Test))
	for i, idx := range split.Test {
		result.Rows[i] = ResultRow{
			Ts:           times[idx],
			ActualUE:     ueSmooth[idx],
			PredictedUE:  uePred[i],
			ActualPRB:    prbSmooth[idx],
			PredictedPRB: prbPred[i],
		}
	}

	return result, nil
}

// fitPredict trains one model on the training rows and predicts at the test
// timestamps.
func (h *Harness) fitPredict(ctx context.Context, model models.Model, times []time.Time, values []float64, split Split, testTimes []time.Time) ([]float64, error) {
	series := models.Series{
		Times:  pickTimes(times, split.Train),
		Values: pick(values, split.Train),
	}

	if err := model.Fit(ctx, series); err != nil {
		return nil, fmt.Errorf("fit %s: %w", model.Name(), err)
	}

	predictions, err := model.Predict(ctx, testTimes)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", model.Name(), err)
	}
	if len(predictions) != len(testTimes) {
		return nil, fmt.Errorf("predict %s: got %d predictions for %d timestamps", model.Name(), len(predictions), len(testTimes))
	}

	return predictions, nil
}

func pick(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

func pickTimes(times []time.Time, idx []int) []time.Time {
	out := make([]time.Time, len(idx))
	for i, j := range idx {
		out[i] = times[j]
	}
	return out
}

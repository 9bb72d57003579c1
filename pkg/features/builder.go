// Package features turns merged per-cell observations into the model-ready
// feature table: calendar fields, grouped rolling statistics, lags and the
// load ratio, with incomplete rows removed.
package features

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/rancastproj/rancast/pkg/dataset"
)

// ErrNoFeatures is returned when no row survives feature construction.
var ErrNoFeatures = errors.New("features: no rows survived feature construction")

// DefaultWindow is the trailing window for rolling statistics.
const DefaultWindow = 4

// Row is one complete feature row. Every field is finite; rows that would
// carry a missing or non-finite value are dropped during construction.
type Row struct {
	dataset.Observation

	Hour      int
	DayOfWeek int // ISO: 0=Monday .. 6=Sunday
	Week      int
	Month     int
	Weekend   bool
	Night     bool

	UERollMean  float64
	UERollStd   float64
	PRBRollMean float64
	PRBRollStd  float64

	UELag1  float64
	UELag4  float64
	PRBLag1 float64
	PRBLag4 float64

	// LoadRatio is PRBUtil / AvgUE. Rows where AvgUE is zero are dropped
	// rather than producing extreme ratios.
	LoadRatio float64
}

// Builder computes the feature table. The zero value uses DefaultWindow.
type Builder struct {
	// Window is the trailing window for rolling mean/std (minimum one sample;
	// early-window statistics use a shrinking window). Rolling std follows the
	// sample definition and is undefined for a single sample, so each cell's
	// first row never survives.
	Window int
}

// NewBuilder creates a Builder with the given rolling window.
// A window below one falls back to DefaultWindow.
func NewBuilder(window int) *Builder {
	if window < 1 {
		window = DefaultWindow
	}
	return &Builder{Window: window}
}

// Build derives the feature table from merged observations.
//
// Observations are re-sorted by (Cell, Ts) so rolling and lag features are
// computed in correct temporal order, strictly within each cell's own rows.
// Returns the surviving rows, sorted by (Cell, Ts), and the number of rows
// dropped for carrying missing or non-finite values. Because of the lag-4
// warmup, each cell's effective history starts four samples after its first
// observation.
func (b *Builder) Build(observations []dataset.Observation) ([]Row, int, error) {
	window := b.Window
	if window < 1 {
		window = DefaultWindow
	}

	obs := make([]dataset.Observation, len(observations))
	copy(obs, observations)
	sort.Slice(obs, func(i, j int) bool {
		if obs[i].Cell != obs[j].Cell {
			return obs[i].Cell < obs[j].Cell
		}
		return obs[i].Ts.Before(obs[j].Ts)
	})

	rows := make([]Row, 0, len(obs))
	dropped := 0

	for start := 0; start < len(obs); {
		end := start
		for end < len(obs) && obs[end].Cell == obs[start].Cell {
			end++
		}

		group := obs[start:end]
		ue := make([]float64, len(group))
		prb := make([]float64, len(group))
		for i, o := range group {
			ue[i] = o.AvgUE
			prb[i] = o.PRBUtil
		}

		for i, o := range group {
			row := Row{Observation: o}

			hour := o.Ts.Hour()
			row.Hour = hour
			row.DayOfWeek = (int(o.Ts.Weekday()) + 6) % 7
			_, row.Week = o.Ts.ISOWeek()
			row.Month = int(o.Ts.Month())
			row.Weekend = row.DayOfWeek >= 5
			row.Night = hour < 6 || hour >= 22

			lo := i - window + 1
			if lo < 0 {
				lo = 0
			}
			row.UERollMean, row.UERollStd = stat.MeanStdDev(ue[lo:i+1], nil)
			row.PRBRollMean, row.PRBRollStd = stat.MeanStdDev(prb[lo:i+1], nil)

			row.UELag1, row.PRBLag1 = lag(ue, prb, i, 1)
			row.UELag4, row.PRBLag4 = lag(ue, prb, i, 4)

			if o.AvgUE != 0 {
				row.LoadRatio = o.PRBUtil / o.AvgUE
			} else {
				row.LoadRatio = math.NaN()
			}

			if !complete(row) {
				dropped++
				continue
			}
			rows = append(rows, row)
		}

		start = end
	}

	if len(rows) == 0 {
		return nil, dropped, ErrNoFeatures
	}
	return rows, dropped, nil
}

// lag returns both targets' values n samples back, or NaN inside the warmup.
func lag(ue, prb []float64, i, n int) (float64, float64) {
	if i-n < 0 {
		return math.NaN(), math.NaN()
	}
	return ue[i-n], prb[i-n]
}

// complete reports whether every derived value in the row is finite.
func complete(r Row) bool {
	for _, v := range []float64{
		r.AvgUE, r.PRBUtil,
		r.UERollMean, r.UERollStd, r.PRBRollMean, r.PRBRollStd,
		r.UELag1, r.UELag4, r.PRBLag1, r.PRBLag4,
		r.LoadRatio,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

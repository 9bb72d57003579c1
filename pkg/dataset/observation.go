// Package dataset aligns the two telemetry feeds into a single per-cell
// observation table: inner join on (Timestamp, NCI, gNB), rounding to the
// sampling grid, and mean-collapse of duplicate grid cells.
package dataset

import (
	"errors"
	"time"
)

// ErrNoOverlap is returned when the two feeds share no (Timestamp, NCI, gNB)
// tuples, leaving nothing to forecast.
var ErrNoOverlap = errors.New("dataset: no overlapping rows between feeds")

// Observation is one merged telemetry sample for one cell on the grid.
// Uniquely keyed by (Ts, Cell) after duplicate collapse.
type Observation struct {
	Ts      time.Time
	Cell    uint64
	GNB     uint64
	AvgUE   float64
	PRBUtil float64
}

// MergeStats accounts for what the merge did, so the caller can report it
// instead of losing the information.
type MergeStats struct {
	// JoinedRows is the number of rows surviving the inner join, before
	// duplicate collapse.
	JoinedRows int

	// Collapsed is the number of rows averaged away because their cell
	// reported more than once within a single grid slot.
	Collapsed int
}

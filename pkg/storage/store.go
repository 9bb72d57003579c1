package storage

import (
	"context"
	"time"
)

// Snapshot is one completed evaluation for one cell, ready to be shared with
// other consumers (dashboards, capacity planners) without re-running the
// pipeline.
type Snapshot struct {
	Cell        uint64
	GeneratedAt time.Time
	GridSeconds int

	// Parallel slices, one entry per held-out timestamp.
	Timestamps   []time.Time
	ActualUE     []float64
	PredictedUE  []float64
	ActualPRB    []float64
	PredictedPRB []float64

	// Accuracy is the uniform average of the two per-target R² scores.
	Accuracy float64
}

type Store interface {
	Put(ctx context.Context, snapshot Snapshot) error
	GetLatest(ctx context.Context, cell uint64) (Snapshot, bool, error)
}

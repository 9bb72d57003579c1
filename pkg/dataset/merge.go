package dataset

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"

	"github.com/rancastproj/rancast/pkg/ingest"
)

// Merge inner-joins the UE-count and PRB-utilization frames on exact equality
// of (Timestamp, NCI, gNB), rounds timestamps to the nearest grid boundary,
// and collapses rows sharing (rounded timestamp, NCI) by arithmetic mean over
// all numeric columns (gNB included).
//
// Rows present in only one feed are excluded by the join. When a cell reports
// twice within one grid slot the readings are indistinguishably averaged; the
// multiplicity is only retained as a count in MergeStats.
//
// The result is sorted by (Cell, Ts), the order feature building requires.
func Merge(ue, prb dataframe.DataFrame, grid time.Duration) ([]Observation, MergeStats, error) {
	var stats MergeStats

	if grid <= 0 {
		return nil, stats, fmt.Errorf("dataset: grid must be positive, got %v", grid)
	}

	joined := ue.InnerJoin(prb, ingest.ColTimestamp, ingest.ColCell, ingest.ColGNB)
	if joined.Err != nil {
		return nil, stats, fmt.Errorf("dataset: inner join: %w", joined.Err)
	}
	if joined.Nrow() == 0 {
		return nil, stats, ErrNoOverlap
	}
	stats.JoinedRows = joined.Nrow()

	type key struct {
		ts   int64
		cell uint64
	}
	type acc struct {
		gnb, ue, prb float64
		n            int
	}

	groups := make(map[key]*acc, joined.Nrow())
	for _, row := range joined.Maps() {
		ts, err := time.Parse(ingest.CanonicalTimeLayout, asString(row[ingest.ColTimestamp]))
		if err != nil {
			return nil, stats, fmt.Errorf("dataset: timestamp %v: %w", row[ingest.ColTimestamp], err)
		}

		cell, err := asUint64(row[ingest.ColCell])
		if err != nil {
			return nil, stats, fmt.Errorf("dataset: cell id: %w", err)
		}
		gnb, err := asUint64(row[ingest.ColGNB])
		if err != nil {
			return nil, stats, fmt.Errorf("dataset: gnb id: %w", err)
		}
		avgUE, err := asFloat64(row[ingest.ColAvgUE])
		if err != nil {
			return nil, stats, fmt.Errorf("dataset: %s: %w", ingest.ColAvgUE, err)
		}
		prbUtil, err := asFloat64(row[ingest.ColPRBUtil])
		if err != nil {
			return nil, stats, fmt.Errorf("dataset: %s: %w", ingest.ColPRBUtil, err)
		}

		k := key{ts: ts.Round(grid).Unix(), cell: cell}
		a, ok := groups[k]
		if !ok {
			a = &acc{}
			groups[k] = a
		}
		a.gnb += float64(gnb)
		a.ue += avgUE
		a.prb += prbUtil
		a.n++
	}

	observations := make([]Observation, 0, len(groups))
	for k, a := range groups {
		n := float64(a.n)
		observations = append(observations, Observation{
			Ts:      time.Unix(k.ts, 0).UTC(),
			Cell:    k.cell,
			GNB:     uint64(a.gnb/n + 0.5),
			AvgUE:   a.ue / n,
			PRBUtil: a.prb / n,
		})
		stats.Collapsed += a.n - 1
	}

	sort.Slice(observations, func(i, j int) bool {
		if observations[i].Cell != observations[j].Cell {
			return observations[i].Cell < observations[j].Cell
		}
		return observations[i].Ts.Before(observations[j].Ts)
	})

	return observations, stats, nil
}

// asString converts a gota element value to a string.
func asString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// asFloat64 converts a gota element value to a float64. Gota detects column
// types on load, so joined frames can surface ints, floats or strings.
func asFloat64(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", val)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}

// asUint64 converts a gota element value to an unsigned id.
func asUint64(v any) (uint64, error) {
	switch val := v.(type) {
	case int:
		if val < 0 {
			return 0, fmt.Errorf("negative id %d", val)
		}
		return uint64(val), nil
	case float64:
		if val < 0 {
			return 0, fmt.Errorf("negative id %g", val)
		}
		return uint64(val), nil
	case string:
		id, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an id: %q", val)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("unsupported id type %T", v)
	}
}

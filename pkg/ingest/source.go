// Package ingest provides rancast telemetry source connectors that retrieve
// per-cell counter feeds and normalize them into gota DataFrames keyed by
// (Timestamp, NCI, gNB).
//
// Each source implements the Source interface. Available sources:
//   - CSVSource  — reads a delimited counter export from disk
//   - HTTPSource — pulls counters from a REST API with JSON responses
//
// Sources are intentionally lightweight: they pull raw rows, coerce the
// timestamp column to a canonical form, and leave merging, feature building
// and forecasting to the upper layers. Rows that cannot be parsed are not
// silently discarded; every source returns a DropReport so the caller can
// surface what was lost.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gota/gota/dataframe"
)

// Well-known column names shared by both telemetry feeds.
const (
	ColTimestamp = "Timestamp"
	ColCell      = "NCI"
	ColGNB       = "gNB"
	ColAvgUE     = "Avg_UE_Number"
	ColPRBUtil   = "DL_Prb_Utilization"
)

// CanonicalTimeLayout is the timestamp format every source rewrites into,
// so the downstream join on the Timestamp column is an exact string match.
const CanonicalTimeLayout = time.RFC3339

// timeLayouts are the accepted input timestamp formats, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
}

// DropReport accounts for rows a source discarded while parsing.
// The original tooling this replaces dropped such rows silently.
type DropReport struct {
	// MalformedLines counts raw lines skipped for having the wrong field count.
	MalformedLines int

	// BadTimestamps counts rows dropped because the Timestamp column did not
	// parse under any accepted layout.
	BadTimestamps int
}

// Total returns the total number of discarded rows.
func (r DropReport) Total() int {
	return r.MalformedLines + r.BadTimestamps
}

// Source is the interface all rancast telemetry sources implement.
//
// Fetch retrieves one feed and returns it as a DataFrame containing at least
// the Timestamp, NCI and gNB columns plus the source's value column. The call
// is synchronous and must respect context cancellation.
type Source interface {
	Fetch(ctx context.Context) (dataframe.DataFrame, DropReport, error)

	// Name returns a short identifier for the source, e.g. "csv" or "http".
	Name() string
}

// parseTime tries every accepted layout against a raw timestamp string.
func parseTime(raw string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// requireColumns verifies the header contains every expected column and
// returns the index of each, keyed by name.
func requireColumns(header []string, names ...string) (map[string]int, error) {
	idx := make(map[string]int, len(names))
	for i, col := range header {
		idx[col] = i
	}
	for _, name := range names {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}
	return idx, nil
}

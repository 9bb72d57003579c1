package dataset

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
)

func frame(t *testing.T, records [][]string) dataframe.DataFrame {
	t.Helper()

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
	)
	if df.Err != nil {
		t.Fatalf("load records: %v", df.Err)
	}
	return df
}

func TestMerge_InnerJoinKeepsOnlySharedTuples(t *testing.T) {
	ue := frame(t, [][]string{
		{"Timestamp", "NCI", "gNB", "Avg_UE_Number"},
		{"2024-03-01T10:00:00Z", "101", "1", "10"},
		{"2024-03-01T10:15:00Z", "101", "1", "12"},
		{"2024-03-01T10:30:00Z", "101", "1", "14"}, // missing from prb feed
		{"2024-03-01T10:00:00Z", "202", "1", "5"},  // cell missing from prb feed
	})
	prb := frame(t, [][]string{
		{"Timestamp", "NCI", "gNB", "DL_Prb_Utilization"},
		{"2024-03-01T10:00:00Z", "101", "1", "0.4"},
		{"2024-03-01T10:15:00Z", "101", "1", "0.5"},
		{"2024-03-01T10:45:00Z", "101", "1", "0.6"}, // missing from ue feed
	})

	obs, stats, err := Merge(ue, prb, 15*time.Minute)
	if err != nil {
		t.Fatalf("Merge() error: %v", err)
	}

	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}
	if stats.JoinedRows != 2 {
		t.Errorf("expected 2 joined rows, got %d", stats.JoinedRows)
	}

	for _, o := range obs {
		if o.Cell != 101 {
			t.Errorf("unexpected cell %d in merge output", o.Cell)
		}
	}
	if obs[0].AvgUE != 10 || obs[0].PRBUtil != 0.4 {
		t.Errorf("first observation values wrong: %+v", obs[0])
	}
}

func TestMerge_RoundsToGridAndCollapsesDuplicates(t *testing.T) {
	// 10:07 rounds down to 10:00, 10:08 rounds up to 10:15. The two rows
	// landing on 10:00 (10:00 and 10:07) must be averaged.
	ue := frame(t, [][]string{
		{"Timestamp", "NCI", "gNB", "Avg_UE_Number"},
		{"2024-03-01T10:00:00Z", "101", "1", "10"},
		{"2024-03-01T10:07:00Z", "101", "1", "20"},
		{"2024-03-01T10:08:00Z", "101", "1", "30"},
	})
	prb := frame(t, [][]string{
		{"Timestamp", "NCI", "gNB", "DL_Prb_Utilization"},
		{"2024-03-01T10:00:00Z", "101", "1", "0.2"},
		{"2024-03-01T10:07:00Z", "101", "1", "0.4"},
		{"2024-03-01T10:08:00Z", "101", "1", "0.6"},
	})

	obs, stats, err := Merge(ue, prb, 15*time.Minute)
	if err != nil {
		t.Fatalf("Merge() error: %v", err)
	}

	if len(obs) != 2 {
		t.Fatalf("expected 2 grid slots, got %d", len(obs))
	}
	if stats.Collapsed != 1 {
		t.Errorf("expected 1 collapsed duplicate, got %d", stats.Collapsed)
	}

	first := obs[0]
	if !first.Ts.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("expected slot 10:00, got %v", first.Ts)
	}
	if math.Abs(first.AvgUE-15) > 1e-12 {
		t.Errorf("expected averaged UE 15, got %g", first.AvgUE)
	}
	if math.Abs(first.PRBUtil-0.3) > 1e-12 {
		t.Errorf("expected averaged PRB 0.3, got %g", first.PRBUtil)
	}

	second := obs[1]
	if !second.Ts.Equal(time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC)) {
		t.Errorf("expected slot 10:15, got %v", second.Ts)
	}
}

func TestMerge_SortedByCellThenTime(t *testing.T) {
	ue := frame(t, [][]string{
		{"Timestamp", "NCI", "gNB", "Avg_UE_Number"},
		{"2024-03-01T10:15:00Z", "202", "2", "1"},
		{"2024-03-01T10:00:00Z", "202", "2", "2"},
		{"2024-03-01T10:00:00Z", "101", "1", "3"},
	})
	prb := frame(t, [][]string{
		{"Timestamp", "NCI", "gNB", "DL_Prb_Utilization"},
		{"2024-03-01T10:15:00Z", "202", "2", "0.1"},
		{"2024-03-01T10:00:00Z", "202", "2", "0.2"},
		{"2024-03-01T10:00:00Z", "101", "1", "0.3"},
	})

	obs, _, err := Merge(ue, prb, 15*time.Minute)
	if err != nil {
		t.Fatalf("Merge() error: %v", err)
	}

	if len(obs) != 3 {
		t.Fatalf("expected 3 observations, got %d", len(obs))
	}
	if obs[0].Cell != 101 {
		t.Errorf("expected cell 101 first, got %d", obs[0].Cell)
	}
	if obs[1].Cell != 202 || obs[2].Cell != 202 {
		t.Errorf("expected cell 202 next, got %d then %d", obs[1].Cell, obs[2].Cell)
	}
	if !obs[1].Ts.Before(obs[2].Ts) {
		t.Error("cell 202 observations not in chronological order")
	}
}

func TestMerge_Errors(t *testing.T) {
	ue := frame(t, [][]string{
		{"Timestamp", "NCI", "gNB", "Avg_UE_Number"},
		{"2024-03-01T10:00:00Z", "101", "1", "10"},
	})
	prb := frame(t, [][]string{
		{"Timestamp", "NCI", "gNB", "DL_Prb_Utilization"},
		{"2024-03-01T11:00:00Z", "101", "1", "0.4"},
	})

	if _, _, err := Merge(ue, prb, 0); err == nil {
		t.Error("expected error for non-positive grid, got nil")
	}

	_, _, err := Merge(ue, prb, 15*time.Minute)
	if !errors.Is(err, ErrNoOverlap) {
		t.Errorf("expected ErrNoOverlap, got %v", err)
	}
}

func TestMerge_RejectsNegativeGNB(t *testing.T) {
	ue := frame(t, [][]string{
		{"Timestamp", "NCI", "gNB", "Avg_UE_Number"},
		{"2024-03-01T10:00:00Z", "101", "-1", "10"},
	})
	prb := frame(t, [][]string{
		{"Timestamp", "NCI", "gNB", "DL_Prb_Utilization"},
		{"2024-03-01T10:00:00Z", "101", "-1", "0.4"},
	})

	// A negative id must error out instead of wrapping around to a huge
	// unsigned value in the merged observation.
	if _, _, err := Merge(ue, prb, 15*time.Minute); err == nil {
		t.Error("expected error for negative gNB id, got nil")
	}
}

package features

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rancastproj/rancast/pkg/dataset"
)

// linearSeries builds n grid-aligned observations for one cell with linear
// trends in both targets.
func linearSeries(cell uint64, start time.Time, n int) []dataset.Observation {
	obs := make([]dataset.Observation, n)
	for i := 0; i < n; i++ {
		obs[i] = dataset.Observation{
			Ts:      start.Add(time.Duration(i) * 15 * time.Minute),
			Cell:    cell,
			GNB:     1,
			AvgUE:   10 + float64(i),
			PRBUtil: 0.2 + 0.01*float64(i),
		}
	}
	return obs
}

func TestBuilder_WarmupDropsFourRowsPerCell(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	obs := linearSeries(101, start, 40)

	rows, dropped, err := NewBuilder(4).Build(obs)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if len(rows) != 36 {
		t.Errorf("expected 36 surviving rows, got %d", len(rows))
	}
	if dropped != 4 {
		t.Errorf("expected 4 dropped warmup rows, got %d", dropped)
	}
	if !rows[0].Ts.Equal(start.Add(4 * 15 * time.Minute)) {
		t.Errorf("effective history should start 4 samples in, got %v", rows[0].Ts)
	}
}

func TestBuilder_CalendarFeatures(t *testing.T) {
	tests := []struct {
		name    string
		ts      time.Time
		dow     int
		week    int
		weekend bool
		night   bool
	}{
		{
			name: "friday evening",
			ts:   time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC),
			dow:  4, week: 9, weekend: false, night: true,
		},
		{
			name: "saturday noon",
			ts:   time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC),
			dow:  5, week: 9, weekend: true, night: false,
		},
		{
			name: "monday early",
			ts:   time.Date(2024, 3, 4, 5, 59, 0, 0, time.UTC),
			dow:  0, week: 10, weekend: false, night: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Five observations ending at the timestamp under test so the
			// last row survives warmup.
			obs := make([]dataset.Observation, 5)
			for i := range obs {
				obs[i] = dataset.Observation{
					Ts:      tt.ts.Add(time.Duration(i-4) * 15 * time.Minute),
					Cell:    1,
					AvgUE:   5,
					PRBUtil: 0.5,
				}
			}

			rows, _, err := NewBuilder(4).Build(obs)
			if err != nil {
				t.Fatalf("Build() error: %v", err)
			}
			row := rows[len(rows)-1]

			if row.Hour != tt.ts.Hour() {
				t.Errorf("hour = %d, want %d", row.Hour, tt.ts.Hour())
			}
			if row.DayOfWeek != tt.dow {
				t.Errorf("day of week = %d, want %d", row.DayOfWeek, tt.dow)
			}
			if row.Week != tt.week {
				t.Errorf("week = %d, want %d", row.Week, tt.week)
			}
			if row.Weekend != tt.weekend {
				t.Errorf("weekend = %v, want %v", row.Weekend, tt.weekend)
			}
			if row.Night != tt.night {
				t.Errorf("night = %v, want %v", row.Night, tt.night)
			}
		})
	}
}

func TestBuilder_RollingAndLagValues(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	obs := linearSeries(101, start, 10)

	rows, _, err := NewBuilder(4).Build(obs)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	// First surviving row is sample index 4: window covers samples 1..4
	// (UE values 11,12,13,14), lag-1 is sample 3, lag-4 is sample 0.
	first := rows[0]
	if math.Abs(first.UERollMean-12.5) > 1e-12 {
		t.Errorf("UE rolling mean = %g, want 12.5", first.UERollMean)
	}
	wantStd := math.Sqrt((1.5*1.5 + 0.5*0.5 + 0.5*0.5 + 1.5*1.5) / 3)
	if math.Abs(first.UERollStd-wantStd) > 1e-12 {
		t.Errorf("UE rolling std = %g, want %g", first.UERollStd, wantStd)
	}
	if first.UELag1 != 13 {
		t.Errorf("UE lag-1 = %g, want 13", first.UELag1)
	}
	if first.UELag4 != 10 {
		t.Errorf("UE lag-4 = %g, want 10", first.UELag4)
	}
	if first.PRBLag4 != 0.2 {
		t.Errorf("PRB lag-4 = %g, want 0.2", first.PRBLag4)
	}
}

func TestBuilder_PerCellIsolation(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	a := linearSeries(101, start, 12)
	b := linearSeries(202, start, 12)
	for i := range b {
		b[i].AvgUE *= 100
		b[i].PRBUtil *= 2
	}

	combined := append(append([]dataset.Observation{}, a...), b...)
	rng := rand.New(rand.NewSource(1))
	rng.Shuffle(len(combined), func(i, j int) {
		combined[i], combined[j] = combined[j], combined[i]
	})

	shuffledRows, _, err := NewBuilder(4).Build(combined)
	if err != nil {
		t.Fatalf("Build() shuffled error: %v", err)
	}
	soloRows, _, err := NewBuilder(4).Build(a)
	if err != nil {
		t.Fatalf("Build() solo error: %v", err)
	}

	cellA := FilterCell(shuffledRows, 101)
	if len(cellA) != len(soloRows) {
		t.Fatalf("cell 101: %d rows in combined build, %d alone", len(cellA), len(soloRows))
	}
	for i := range cellA {
		if cellA[i] != soloRows[i] {
			t.Fatalf("row %d differs between combined and solo builds:\n%+v\n%+v", i, cellA[i], soloRows[i])
		}
	}
}

func TestBuilder_LoadRatio(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	obs := linearSeries(101, start, 8)

	rows, _, err := NewBuilder(4).Build(obs)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	for _, r := range rows {
		if math.Abs(r.LoadRatio-r.PRBUtil/r.AvgUE) > 1e-15 {
			t.Errorf("load ratio %g != %g/%g", r.LoadRatio, r.PRBUtil, r.AvgUE)
		}
	}

	// A zero UE count must drop the row instead of producing an extreme ratio.
	obs[6].AvgUE = 0
	rows, dropped, err := NewBuilder(4).Build(obs)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if dropped != 5 { // 4 warmup + 1 zero-UE
		t.Errorf("expected 5 dropped rows, got %d", dropped)
	}
	for _, r := range rows {
		if r.AvgUE == 0 {
			t.Error("zero-UE row survived")
		}
	}
}

func TestBuilder_NoSurvivors(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	obs := linearSeries(101, start, 3) // shorter than the lag-4 warmup

	_, _, err := NewBuilder(4).Build(obs)
	if !errors.Is(err, ErrNoFeatures) {
		t.Errorf("expected ErrNoFeatures, got %v", err)
	}
}

// Package export writes the feature table and the forecast comparison to CSV
// files for downstream tooling.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rancastproj/rancast/pkg/eval"
	"github.com/rancastproj/rancast/pkg/features"
)

var featureHeader = []string{
	"timestamp", "nci", "gnb",
	"avg_ue_number", "dl_prb_utilization",
	"hour", "day_of_week", "week", "month", "is_weekend", "is_night",
	"ue_roll_mean", "ue_roll_std", "prb_roll_mean", "prb_roll_std",
	"ue_lag_1", "ue_lag_4", "prb_lag_1", "prb_lag_4",
	"load_ratio",
}

var forecastHeader = []string{
	"timestamp",
	"actual_ue", "predicted_ue",
	"actual_prb", "predicted_prb",
	"accuracy",
}

// WriteFeatures writes the full engineered feature table to path.
func WriteFeatures(path string, rows []features.Row) error {
	if len(rows) == 0 {
		return errors.New("export: no feature rows to write")
	}

	return writeCSV(path, featureHeader, len(rows), func(i int) []string {
		r := rows[i]
		return []string{
			r.Ts.UTC().Format(time.RFC3339),
			strconv.FormatUint(r.Cell, 10),
			strconv.FormatUint(r.GNB, 10),
			formatFloat(r.AvgUE),
			formatFloat(r.PRBUtil),
			strconv.Itoa(r.Hour),
			strconv.Itoa(r.DayOfWeek),
			strconv.Itoa(r.Week),
			strconv.Itoa(r.Month),
			strconv.FormatBool(r.Weekend),
			strconv.FormatBool(r.Night),
			formatFloat(r.UERollMean),
			formatFloat(r.UERollStd),
			formatFloat(r.PRBRollMean),
			formatFloat(r.PRBRollStd),
			formatFloat(r.UELag1),
			formatFloat(r.UELag4),
			formatFloat(r.PRBLag1),
			formatFloat(r.PRBLag4),
			formatFloat(r.LoadRatio),
		}
	})
}

// WriteForecast writes the held-out comparison rows to path. The evaluation
// produces one accuracy for the whole run, so the same value is repeated on
// every row.
func WriteForecast(path string, result eval.Result) error {
	if len(result.Rows) == 0 {
		return errors.New("export: no forecast rows to write")
	}

	accuracy := formatFloat(result.Accuracy)
	return writeCSV(path, forecastHeader, len(result.Rows), func(i int) []string {
		r := result.Rows[i]
		return []string{
			r.Ts.UTC().Format(time.RFC3339),
			formatFloat(r.ActualUE),
			formatFloat(r.PredictedUE),
			formatFloat(r.ActualPRB),
			formatFloat(r.PredictedPRB),
			accuracy,
		}
	})
}

func writeCSV(path string, header []string, n int, record func(int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < n; i++ {
		if err := w.Write(record(i)); err != nil {
			f.Close()
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}

	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

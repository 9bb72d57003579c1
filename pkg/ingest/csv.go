package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-gota/gota/dataframe"
)

// CSVSource reads one telemetry feed from a delimited file on disk.
//
// The file must carry a header row with at least the Timestamp, NCI and gNB
// columns plus ValueColumn. Lines with the wrong number of fields are skipped,
// as are rows whose Timestamp does not parse; both are counted in the returned
// DropReport. Surviving timestamps are rewritten to CanonicalTimeLayout.
type CSVSource struct {
	// Path is the file to read (required).
	Path string

	// ValueColumn is the feed's measurement column, e.g. Avg_UE_Number for the
	// UE-count feed or DL_Prb_Utilization for the PRB feed (required).
	ValueColumn string

	// Comma is the field delimiter. Defaults to ',' when zero.
	Comma rune
}

func (s *CSVSource) Name() string { return "csv" }

// Fetch implements Source.
func (s *CSVSource) Fetch(ctx context.Context) (dataframe.DataFrame, DropReport, error) {
	var report DropReport

	if s.Path == "" {
		return dataframe.DataFrame{}, report, errors.New("csv source: path is required")
	}
	if s.ValueColumn == "" {
		return dataframe.DataFrame{}, report, errors.New("csv source: value column is required")
	}

	select {
	case <-ctx.Done():
		return dataframe.DataFrame{}, report, ctx.Err()
	default:
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return dataframe.DataFrame{}, report, fmt.Errorf("csv source: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if s.Comma != 0 {
		r.Comma = s.Comma
	}
	r.FieldsPerRecord = 0 // first record fixes the expected width

	header, err := r.Read()
	if err != nil {
		return dataframe.DataFrame{}, report, fmt.Errorf("csv source %s: read header: %w", s.Path, err)
	}

	cols, err := requireColumns(header, ColTimestamp, ColCell, ColGNB, s.ValueColumn)
	if err != nil {
		return dataframe.DataFrame{}, report, fmt.Errorf("csv source %s: %w", s.Path, err)
	}
	tsIdx := cols[ColTimestamp]

	records := [][]string{header}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Wrong field count or a quoting problem on this line only.
			report.MalformedLines++
			continue
		}

		ts, err := parseTime(record[tsIdx])
		if err != nil {
			report.BadTimestamps++
			continue
		}
		record[tsIdx] = ts.Format(CanonicalTimeLayout)

		records = append(records, record)
	}

	if len(records) == 1 {
		return dataframe.DataFrame{}, report, fmt.Errorf("csv source %s: no rows survived parsing", s.Path)
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, report, fmt.Errorf("csv source %s: load records: %w", s.Path, df.Err)
	}

	return df, report, nil
}

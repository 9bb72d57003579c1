// Package main implements the batch evaluation pipeline orchestration.
//
// This file contains the Pipeline type which runs the stages in order:
//
//	fetch → merge → buildFeatures → selectCell → evaluate → export → store
//
// Each stage is timed and instrumented; the run produces the feature table
// CSV, the held-out forecast comparison CSV, an optional Prometheus metrics
// textfile, and a snapshot in the configured store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-gota/gota/dataframe"

	"github.com/rancastproj/rancast/cmd/rancast/metrics"
	"github.com/rancastproj/rancast/pkg/dataset"
	"github.com/rancastproj/rancast/pkg/eval"
	"github.com/rancastproj/rancast/pkg/export"
	"github.com/rancastproj/rancast/pkg/features"
	"github.com/rancastproj/rancast/pkg/ingest"
	"github.com/rancastproj/rancast/pkg/storage"
)

// Pipeline wires the stages of one evaluation run together.
type Pipeline struct {
	ueSource  ingest.Source
	prbSource ingest.Source
	grid      time.Duration
	builder   *features.Builder
	minRows   int
	harness   *eval.Harness
	store     storage.Store

	featuresOut string
	forecastOut string

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewPipeline creates a Pipeline. All collaborators are required except the
// store and metrics, which may be nil to disable those stages.
func NewPipeline(
	ueSource, prbSource ingest.Source,
	grid time.Duration,
	builder *features.Builder,
	minRows int,
	harness *eval.Harness,
	store storage.Store,
	featuresOut, forecastOut string,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		ueSource:    ueSource,
		prbSource:   prbSource,
		grid:        grid,
		builder:     builder,
		minRows:     minRows,
		harness:     harness,
		store:       store,
		featuresOut: featuresOut,
		forecastOut: forecastOut,
		logger:      logger,
		metrics:     m,
	}
}

// Run executes one complete evaluation and returns the result.
func (p *Pipeline) Run(ctx context.Context) (eval.Result, error) {
	start := time.Now()
	p.logger.Info("starting pipeline run", "grid", p.grid, "min_rows", p.minRows)

	observations, err := p.collect(ctx)
	if err != nil {
		p.recordError("collect", "fetch_failed")
		return eval.Result{}, fmt.Errorf("collect: %w", err)
	}

	rows, err := p.buildFeatures(observations)
	if err != nil {
		p.recordError("features", "build_failed")
		return eval.Result{}, fmt.Errorf("features: %w", err)
	}

	cell, err := p.selectCell(rows)
	if err != nil {
		p.recordError("select", "no_eligible_cell")
		return eval.Result{}, fmt.Errorf("select: %w", err)
	}

	if err := p.exportFeatures(rows); err != nil {
		p.recordError("export", "features_write_failed")
		return eval.Result{}, fmt.Errorf("export features: %w", err)
	}

	result, err := p.evaluate(ctx, features.FilterCell(rows, cell))
	if err != nil {
		p.recordError("evaluate", "evaluation_failed")
		return eval.Result{}, fmt.Errorf("evaluate: %w", err)
	}

	if err := p.exportForecast(result); err != nil {
		p.recordError("export", "forecast_write_failed")
		return eval.Result{}, fmt.Errorf("export forecast: %w", err)
	}

	if err := p.storeSnapshot(ctx, result); err != nil {
		p.recordError("store", "put_failed")
		return eval.Result{}, fmt.Errorf("store: %w", err)
	}

	p.logger.Info("pipeline run complete",
		"cell", result.Cell,
		"accuracy", result.Accuracy,
		"duration", time.Since(start),
	)

	return result, nil
}

// collect fetches both telemetry feeds and joins them on the shared grid.
func (p *Pipeline) collect(ctx context.Context) ([]dataset.Observation, error) {
	fetch := func(src ingest.Source) (dataframe.DataFrame, error) {
		stageStart := time.Now()
		df, report, err := src.Fetch(ctx)
		p.recordStage("collect", time.Since(stageStart).Seconds())
		if err != nil {
			return df, fmt.Errorf("%s: %w", src.Name(), err)
		}
		if dropped := report.Total(); dropped > 0 {
			p.logger.Warn("dropped unusable source lines",
				"source", src.Name(),
				"malformed", report.MalformedLines,
				"bad_timestamps", report.BadTimestamps,
			)
			p.recordRows("collect", "dropped", dropped)
		}
		p.recordRows("collect", "accepted", df.Nrow())
		return df, nil
	}

	ue, err := fetch(p.ueSource)
	if err != nil {
		return nil, err
	}
	prb, err := fetch(p.prbSource)
	if err != nil {
		return nil, err
	}

	mergeStart := time.Now()
	observations, stats, err := dataset.Merge(ue, prb, p.grid)
	p.recordStage("merge", time.Since(mergeStart).Seconds())
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	p.logger.Info("feeds merged",
		"joined_rows", stats.JoinedRows,
		"collapsed_duplicates", stats.Collapsed,
		"observations", len(observations),
	)
	p.recordRows("merge", "accepted", len(observations))
	p.recordRows("merge", "collapsed", stats.Collapsed)

	return observations, nil
}

func (p *Pipeline) buildFeatures(observations []dataset.Observation) ([]features.Row, error) {
	stageStart := time.Now()
	rows, dropped, err := p.builder.Build(observations)
	p.recordStage("features", time.Since(stageStart).Seconds())
	if err != nil {
		return nil, err
	}

	p.logger.Info("feature table built", "rows", len(rows), "dropped", dropped)
	p.recordRows("features", "accepted", len(rows))
	p.recordRows("features", "dropped", dropped)

	return rows, nil
}

func (p *Pipeline) selectCell(rows []features.Row) (uint64, error) {
	cell, err := features.SelectCell(rows, p.minRows)
	if err != nil {
		return 0, err
	}

	p.logger.Info("cell selected", "cell", cell, "min_rows", p.minRows)
	if p.metrics != nil {
		p.metrics.SelectedCell.Set(float64(cell))
	}

	return cell, nil
}

func (p *Pipeline) evaluate(ctx context.Context, rows []features.Row) (eval.Result, error) {
	stageStart := time.Now()
	result, err := p.harness.Evaluate(ctx, rows)
	p.recordStage("evaluate", time.Since(stageStart).Seconds())
	if err != nil {
		return eval.Result{}, err
	}

	p.logger.Info("evaluation complete",
		"cell", result.Cell,
		"train_rows", result.TrainRows,
		"test_rows", result.TestRows,
		"r2_ue", result.R2UE,
		"r2_prb", result.R2PRB,
		"accuracy", result.Accuracy,
	)
	if p.metrics != nil {
		p.metrics.Accuracy.Set(result.Accuracy)
	}

	return result, nil
}

func (p *Pipeline) exportFeatures(rows []features.Row) error {
	stageStart := time.Now()
	err := export.WriteFeatures(p.featuresOut, rows)
	p.recordStage("export", time.Since(stageStart).Seconds())
	if err != nil {
		return err
	}
	p.logger.Info("feature table written", "path", p.featuresOut, "rows", len(rows))
	return nil
}

func (p *Pipeline) exportForecast(result eval.Result) error {
	stageStart := time.Now()
	err := export.WriteForecast(p.forecastOut, result)
	p.recordStage("export", time.Since(stageStart).Seconds())
	if err != nil {
		return err
	}
	p.logger.Info("forecast comparison written", "path", p.forecastOut, "rows", len(result.Rows))
	return nil
}

func (p *Pipeline) storeSnapshot(ctx context.Context, result eval.Result) error {
	if p.store == nil {
		return nil
	}

	snapshot := storage.Snapshot{
		Cell:         result.Cell,
		GeneratedAt:  time.Now().UTC(),
		GridSeconds:  int(p.grid.Seconds()),
		Timestamps:   make([]time.Time, len(result.Rows)),
		ActualUE:     make([]float64, len(result.Rows)),
		PredictedUE:  make([]float64, len(result.Rows)),
		ActualPRB:    make([]float64, len(result.Rows)),
		PredictedPRB: make([]float64, len(result.Rows)),
		Accuracy:     result.Accuracy,
	}
	for i, row := range result.Rows {
		snapshot.Timestamps[i] = row.Ts
		snapshot.ActualUE[i] = row.ActualUE
		snapshot.PredictedUE[i] = row.PredictedUE
		snapshot.ActualPRB[i] = row.ActualPRB
		snapshot.PredictedPRB[i] = row.PredictedPRB
	}

	stageStart := time.Now()
	err := p.store.Put(ctx, snapshot)
	p.recordStage("store", time.Since(stageStart).Seconds())
	if err != nil {
		return err
	}

	p.logger.Debug("snapshot stored", "cell", snapshot.Cell)
	return nil
}

func (p *Pipeline) recordStage(stage string, seconds float64) {
	if p.metrics != nil {
		p.metrics.RecordStage(stage, seconds)
	}
}

func (p *Pipeline) recordRows(stage, outcome string, n int) {
	if p.metrics != nil && n > 0 {
		p.metrics.RecordRows(stage, outcome, n)
	}
}

func (p *Pipeline) recordError(stage, reason string) {
	if p.metrics != nil {
		p.metrics.RecordError(stage, reason)
	}
}

// Command rancast evaluates short-horizon forecasting models against RAN
// cell telemetry.
//
// The pipeline runs once per invocation:
//  1. Fetches two telemetry feeds (per-cell average UE count and downlink
//     PRB utilization) from CSV files or an HTTP API
//  2. Aligns both feeds to a shared time grid and joins them per cell
//  3. Engineers calendar, rolling, lag and load-ratio features
//  4. Selects the cell with the longest usable history
//  5. Fits one model per target on a seeded random train split and scores
//     predictions on the held-out rows
//  6. Writes the feature table and the forecast comparison to CSV, stores
//     a result snapshot, and optionally writes Prometheus metrics
//
// Usage:
//
//	rancast \
//	  -ue-csv=AvgUENumber.csv \
//	  -prb-csv=PrbUtilization.csv \
//	  -model=additive \
//	  -features-out=features.csv \
//	  -forecast-out=forecast.csv
//
// Environment variables:
//
//	UE_CSV         - CSV file with per-cell average UE counts
//	PRB_CSV        - CSV file with per-cell PRB utilization
//	SOURCE         - Telemetry source: csv or http (default: csv)
//	SOURCE_*       - HTTP source settings (URL, paths, timestamp format)
//	GRID           - Alignment grid (default: 15m)
//	MIN_ROWS       - Cell selection threshold (default: 500)
//	SEED           - Train/test split seed (default: 42)
//	MODEL          - Forecasting model: additive or naive (default: additive)
//	STORAGE        - Snapshot storage: memory or redis (default: memory)
//	LOG_LEVEL      - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT     - Logging format: text, json (default: text)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rancastproj/rancast/cmd/rancast/config"
	"github.com/rancastproj/rancast/cmd/rancast/logger"
	"github.com/rancastproj/rancast/cmd/rancast/metrics"
	"github.com/rancastproj/rancast/pkg/eval"
	"github.com/rancastproj/rancast/pkg/features"
	"github.com/rancastproj/rancast/pkg/ingest"
	"github.com/rancastproj/rancast/pkg/models"
	"github.com/rancastproj/rancast/pkg/storage"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	log := logger.New(cfg)
	slog.SetDefault(log)

	log.Info("starting rancast",
		"version", version,
		"source", cfg.Source,
		"model", cfg.Model,
	)

	ueSource, prbSource, err := buildSources(cfg)
	if err != nil {
		log.Error("failed to build telemetry sources", "error", err)
		os.Exit(1)
	}

	store, err := buildStore(cfg)
	if err != nil {
		log.Error("failed to build store", "error", err)
		os.Exit(1)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Error("failed to close store", "error", err)
			}
		}()
	}

	harness := eval.NewHarness(
		newModel(cfg),
		newModel(cfg),
		eval.Config{
			SmoothWindow: cfg.SmoothWindow,
			TestFraction: cfg.TestFraction,
			Seed:         cfg.Seed,
		},
		log,
	)

	m := metrics.New()

	pipeline := NewPipeline(
		ueSource,
		prbSource,
		cfg.Grid,
		features.NewBuilder(cfg.RollingWindow),
		cfg.MinRows,
		harness,
		store,
		cfg.FeaturesOut,
		cfg.ForecastOut,
		log,
		m,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := pipeline.Run(ctx)

	if werr := m.WriteTextfile(cfg.MetricsFile); werr != nil {
		log.Error("failed to write metrics", "error", werr)
	}

	if err != nil {
		log.Error("pipeline run failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("cell %d: accuracy %.4f over %d held-out rows\n",
		result.Cell, result.Accuracy, result.TestRows)
}

// buildSources constructs one source per telemetry feed from configuration.
func buildSources(cfg *config.Config) (ingest.Source, ingest.Source, error) {
	switch cfg.Source {
	case "csv":
		ue := &ingest.CSVSource{Path: cfg.UEPath, ValueColumn: ingest.ColAvgUE}
		prb := &ingest.CSVSource{Path: cfg.PRBPath, ValueColumn: ingest.ColPRBUtil}
		return ue, prb, nil

	case "http":
		ue, err := httpSource(cfg, ingest.ColAvgUE, cfg.SourceConfig["ueUrl"])
		if err != nil {
			return nil, nil, fmt.Errorf("ue source: %w", err)
		}
		prb, err := httpSource(cfg, ingest.ColPRBUtil, cfg.SourceConfig["prbUrl"])
		if err != nil {
			return nil, nil, fmt.Errorf("prb source: %w", err)
		}
		return ue, prb, nil

	default:
		return nil, nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

// httpSource builds an HTTP source for one feed. Shared settings come from
// SOURCE_* variables; the per-feed URL (SOURCE_UE_URL / SOURCE_PRB_URL) falls
// back to the shared SOURCE_URL.
func httpSource(cfg *config.Config, valueColumn, url string) (*ingest.HTTPSource, error) {
	sc := cfg.SourceConfig
	if url == "" {
		url = sc["url"]
	}
	if url == "" {
		return nil, fmt.Errorf("no URL configured")
	}

	window := 24 * time.Hour
	if raw := sc["window"]; raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SOURCE_WINDOW %q: %w", raw, err)
		}
		window = parsed
	}

	return &ingest.HTTPSource{
		URL:             url,
		Method:          sc["method"],
		Body:            sc["body"],
		TimestampPath:   sc["timestampPath"],
		CellPath:        sc["cellPath"],
		GNBPath:         sc["gnbPath"],
		ValuePath:       sc["valuePath"],
		ValueColumn:     valueColumn,
		TimestampFormat: sc["timestampFormat"],
		Window:          window,
		TLS:             cfg.TLS,
	}, nil
}

// newModel constructs one model instance from configuration. The harness
// fits one instance per target, so each call returns a fresh model.
func newModel(cfg *config.Config) models.Model {
	switch cfg.Model {
	case "naive":
		return models.NewNaiveModel()
	default:
		return models.NewAdditiveModel(cfg.Changepoints, cfg.ChangepointScale)
	}
}

// buildStore constructs the snapshot store from configuration.
func buildStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage {
	case "redis":
		return storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
	default:
		return storage.NewMemoryStore(), nil
	}
}

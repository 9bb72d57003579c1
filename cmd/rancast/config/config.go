// Package config provides configuration parsing for the rancast pipeline.
//
// It handles both command-line flags and environment variables, with flags
// taking precedence over environment variables. The Config struct contains all
// runtime configuration for one pipeline run including:
//   - Ingestion settings (CSV paths or HTTP source, time grid)
//   - Feature engineering parameters (rolling window, cell selection threshold)
//   - Evaluation protocol (smoothing window, test fraction, seed)
//   - Model choice and additive model parameters
//   - Output paths (feature table, forecast comparison, metrics textfile)
//   - Storage backend settings (memory or redis)
//   - Logging configuration (level, format)
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rancastproj/rancast/pkg/tls"
)

// Config holds all pipeline configuration.
type Config struct {
	LogFormat string
	LogLevel  string

	Source       string
	UEPath       string
	PRBPath      string
	SourceConfig map[string]string
	TLS          tls.Config

	Grid             time.Duration
	RollingWindow    int
	MinRows          int
	SmoothWindow     int
	TestFraction     float64
	Seed             int64
	Model            string
	Changepoints     int
	ChangepointScale float64

	FeaturesOut string
	ForecastOut string
	MetricsFile string

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
}

// ParseFlags parses command-line flags and environment variables into a Config.
// Environment variables are used as fallbacks when flags are not provided.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.StringVar(&cfg.Source, "source", getEnv("SOURCE", "csv"), "Telemetry source: csv or http")
	flag.StringVar(&cfg.UEPath, "ue-csv", getEnv("UE_CSV", "AvgUENumber.csv"), "CSV file with per-cell average UE counts")
	flag.StringVar(&cfg.PRBPath, "prb-csv", getEnv("PRB_CSV", "PrbUtilization.csv"), "CSV file with per-cell downlink PRB utilization")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable mutual TLS for the HTTP source")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS client certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS client private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for server verification")

	flag.DurationVar(&cfg.Grid, "grid", getEnvDuration("GRID", 15*time.Minute), "Time grid both feeds are aligned to")
	flag.IntVar(&cfg.RollingWindow, "rolling-window", getEnvInt("ROLLING_WINDOW", 4), "Trailing window for rolling mean/std features (minimum 2)")
	flag.IntVar(&cfg.MinRows, "min-rows", getEnvInt("MIN_ROWS", 500), "Minimum surviving feature rows a cell needs to be evaluated")
	flag.IntVar(&cfg.SmoothWindow, "smooth-window", getEnvInt("SMOOTH_WINDOW", 3), "Trailing-mean window applied to both targets before the split")
	flag.Float64Var(&cfg.TestFraction, "test-fraction", getEnvFloat("TEST_FRACTION", 0.2), "Share of rows held out for scoring")
	flag.Int64Var(&cfg.Seed, "seed", getEnvInt64("SEED", 42), "Seed for the shuffled train/test split")
	flag.StringVar(&cfg.Model, "model", getEnv("MODEL", "additive"), "Forecasting model: additive or naive")
	flag.IntVar(&cfg.Changepoints, "changepoints", getEnvInt("CHANGEPOINTS", 25), "Number of trend changepoints for the additive model")
	flag.Float64Var(&cfg.ChangepointScale, "changepoint-scale", getEnvFloat("CHANGEPOINT_SCALE", 0.05), "Trend flexibility for the additive model")

	flag.StringVar(&cfg.FeaturesOut, "features-out", getEnv("FEATURES_OUT", "features.csv"), "Output path for the engineered feature table")
	flag.StringVar(&cfg.ForecastOut, "forecast-out", getEnv("FORECAST_OUT", "forecast.csv"), "Output path for the held-out forecast comparison")
	flag.StringVar(&cfg.MetricsFile, "metrics-file", getEnv("METRICS_FILE", ""), "Optional path to write Prometheus metrics in text format")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Storage backend: memory or redis")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 24*time.Hour), "Redis snapshot TTL")

	flag.Parse()

	cfg.SourceConfig = parseSourceConfig()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	return cfg
}

// Validate checks the configuration for values no pipeline run could use.
func (c *Config) Validate() error {
	switch c.Source {
	case "csv":
		if c.UEPath == "" || c.PRBPath == "" {
			return fmt.Errorf("both -ue-csv and -prb-csv are required with the csv source")
		}
	case "http":
		if len(c.SourceConfig) == 0 {
			return fmt.Errorf("the http source requires SOURCE_* environment variables")
		}
	default:
		return fmt.Errorf("unknown source %q: must be csv or http", c.Source)
	}

	if c.Grid <= 0 {
		return fmt.Errorf("grid must be positive, got %v", c.Grid)
	}
	// The rolling std is a sample statistic: a window of one leaves every
	// row without a defined deviation, so no row would ever survive.
	if c.RollingWindow < 2 {
		return fmt.Errorf("rolling-window must be at least 2, got %d", c.RollingWindow)
	}
	if c.SmoothWindow < 1 {
		return fmt.Errorf("smooth-window must be at least 1, got %d", c.SmoothWindow)
	}
	if c.TestFraction <= 0 || c.TestFraction >= 1 {
		return fmt.Errorf("test-fraction must be in (0, 1), got %g", c.TestFraction)
	}
	if c.MinRows < 1 {
		return fmt.Errorf("min-rows must be at least 1, got %d", c.MinRows)
	}

	switch c.Model {
	case "additive", "naive":
	default:
		return fmt.Errorf("unknown model %q: must be additive or naive", c.Model)
	}

	switch c.Storage {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("redis-addr is required with the redis storage backend")
		}
	default:
		return fmt.Errorf("unknown storage %q: must be memory or redis", c.Storage)
	}

	if c.TLS.Enabled {
		if err := c.TLS.Validate(); err != nil {
			return fmt.Errorf("tls: %w", err)
		}
	}

	return nil
}

// parseSourceConfig parses SOURCE_* environment variables into a generic
// configuration map for the HTTP source. For example: SOURCE_URL,
// SOURCE_VALUE_PATH, SOURCE_TIMESTAMP_FORMAT. Environment variable names
// are converted to camelCase for the map keys (SOURCE_VALUE_PATH → valuePath).
func parseSourceConfig() map[string]string {
	config := make(map[string]string)

	for _, env := range os.Environ() {
		if len(env) > 7 && env[:7] == "SOURCE_" {
			parts := splitEnv(env)
			if len(parts) == 2 && parts[0] != "SOURCE" {
				key := toLowerCamelCase(parts[0][7:])
				config[key] = parts[1]
			}
		}
	}

	return config
}

func splitEnv(env string) []string {
	for i := 0; i < len(env); i++ {
		if env[i] == '=' {
			return []string{env[:i], env[i+1:]}
		}
	}
	return []string{env}
}

func toLowerCamelCase(s string) string {
	if s == "" {
		return s
	}
	parts := []rune(s)
	result := make([]rune, 0, len(parts))
	nextUpper := false
	for i, r := range parts {
		if r == '_' {
			nextUpper = true
			continue
		}
		if i == 0 {
			result = append(result, toLower(r))
		} else if nextUpper {
			result = append(result, r)
			nextUpper = false
		} else {
			result = append(result, toLower(r))
		}
	}
	return string(result)
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + 32
	}
	return r
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		var i int64
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%g", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

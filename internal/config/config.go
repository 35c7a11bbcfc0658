// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Storage settings.
	DBPath string // Path to the SQLite database file.

	// Provenance settings.
	KeyPath string // Path to the Ed25519 private key PEM file.

	// Model artifact paths (both optional; C2/C5 degrade gracefully without them).
	NeuralModelPath   string
	EmbedderModelPath string

	// Retrieval pipeline tuning (spec.md §4.6, §4.8).
	DefaultDepth       string
	WFts               float64
	WSem               float64
	KRRF               int
	WExplore           float64
	SuccessDelta       float64
	FailureDelta       float64
	RequestDeadlineMS  int

	// OTEL settings.
	OTELEndpoint          string
	OTELInsecure          bool
	ServiceName           string
	OTELTraceBatchTimeout time.Duration
	OTELMetricInterval    time.Duration

	// Qdrant vector search settings (optional C2 backend).
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if any environment variable contains an unparseable value.
// Missing variables use sensible defaults; only malformed values are rejected.
func Load() (Config, error) {
	var errs []error
	cfg := Config{
		DBPath:            envStr("ORACULUM_DB_PATH", "./oraculum.db"),
		KeyPath:           envStr("ORACULUM_KEY_PATH", "./oraculum_ed25519.pem"),
		NeuralModelPath:   envStr("ORACULUM_NEURAL_MODEL_PATH", ""),
		EmbedderModelPath: envStr("ORACULUM_EMBEDDER_MODEL_PATH", ""),
		DefaultDepth:      envStr("ORACULUM_DEFAULT_DEPTH", "standard"),
		OTELEndpoint:      envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:       envStr("OTEL_SERVICE_NAME", "oraculum"),
		QdrantURL:         envStr("QDRANT_URL", ""),
		QdrantAPIKey:      envStr("QDRANT_API_KEY", ""),
		QdrantCollection:  envStr("QDRANT_COLLECTION", "oraculum_principles"),
		LogLevel:          envStr("ORACULUM_LOG_LEVEL", "info"),
	}

	// Float fields.
	cfg.WFts, errs = collectFloat(errs, "ORACULUM_W_FTS", 0.3)
	cfg.WSem, errs = collectFloat(errs, "ORACULUM_W_SEM", 0.5)
	cfg.WExplore, errs = collectFloat(errs, "ORACULUM_W_EXPLORE", 0.5)
	cfg.SuccessDelta, errs = collectFloat(errs, "ORACULUM_SUCCESS_DELTA", 0.05)
	cfg.FailureDelta, errs = collectFloat(errs, "ORACULUM_FAILURE_DELTA", 0.10)

	// Integer fields.
	cfg.KRRF, errs = collectInt(errs, "ORACULUM_K_RRF", 60)
	cfg.RequestDeadlineMS, errs = collectInt(errs, "ORACULUM_REQUEST_DEADLINE_MS", 5000)

	traceBatchMS, traceErrs := collectInt(nil, "OTEL_TRACE_BATCH_TIMEOUT_MS", 5000)
	errs = append(errs, traceErrs...)
	cfg.OTELTraceBatchTimeout = time.Duration(traceBatchMS) * time.Millisecond

	metricIntervalMS, metricErrs := collectInt(nil, "OTEL_METRIC_INTERVAL_MS", 15000)
	errs = append(errs, metricErrs...)
	cfg.OTELMetricInterval = time.Duration(metricIntervalMS) * time.Millisecond

	// Boolean fields.
	cfg.OTELInsecure, errs = collectBool(errs, "OTEL_EXPORTER_OTLP_INSECURE", false)

	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return Config{}, fmt.Errorf("config: invalid environment variables:\n  %s", strings.Join(msgs, "\n  "))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// collectInt parses an int env var, appending any error to the accumulator.
func collectInt(errs []error, key string, fallback int) (int, []error) {
	v, err := envInt(key, fallback)
	if err != nil {
		errs = append(errs, err)
	}
	return v, errs
}

// collectFloat parses a float env var, appending any error to the accumulator.
func collectFloat(errs []error, key string, fallback float64) (float64, []error) {
	v, err := envFloat(key, fallback)
	if err != nil {
		errs = append(errs, err)
	}
	return v, errs
}

// collectBool parses a bool env var, appending any error to the accumulator.
func collectBool(errs []error, key string, fallback bool) (bool, []error) {
	v, err := envBool(key, fallback)
	if err != nil {
		errs = append(errs, err)
	}
	return v, errs
}

// Validate checks that required configuration is present and sane.
func (c Config) Validate() error {
	var errs []error

	if c.DBPath == "" {
		errs = append(errs, errors.New("config: ORACULUM_DB_PATH is required"))
	}
	if !isValidDepth(c.DefaultDepth) {
		errs = append(errs, fmt.Errorf("config: ORACULUM_DEFAULT_DEPTH %q must be one of quick, standard, deep", c.DefaultDepth))
	}
	if c.KRRF <= 0 {
		errs = append(errs, errors.New("config: ORACULUM_K_RRF must be positive"))
	}
	if c.WFts < 0 || c.WSem < 0 || c.WExplore < 0 {
		errs = append(errs, errors.New("config: weight env vars must be non-negative"))
	}
	if c.SuccessDelta <= 0 || c.FailureDelta <= 0 {
		errs = append(errs, errors.New("config: ORACULUM_SUCCESS_DELTA and ORACULUM_FAILURE_DELTA must be positive"))
	}
	if c.RequestDeadlineMS <= 0 {
		errs = append(errs, errors.New("config: ORACULUM_REQUEST_DEADLINE_MS must be positive"))
	}
	if c.OTELTraceBatchTimeout <= 0 || c.OTELMetricInterval <= 0 {
		errs = append(errs, errors.New("config: OTEL_TRACE_BATCH_TIMEOUT_MS and OTEL_METRIC_INTERVAL_MS must be positive"))
	}
	if c.KeyPath != "" {
		if err := validateKeyFile(c.KeyPath, "ORACULUM_KEY_PATH"); err != nil && !errors.Is(err, os.ErrNotExist) {
			// A missing key file is not an error here: provenance.Init
			// generates and persists one on first run. Any other stat
			// failure (permissions, wrong type, wrong mode) is rejected.
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func isValidDepth(d string) bool {
	switch d {
	case "quick", "standard", "deep":
		return true
	default:
		return false
	}
}

// validateKeyFile checks that an existing key file is not a directory, is
// non-empty, and has restrictive permissions (owner-only on Unix); it does
// not open or read the file. A non-existent file is reported via the returned error wrapping
// os.ErrNotExist so callers can treat first-run bootstrap differently.
func validateKeyFile(path, envVar string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("config: %s %q: %w", envVar, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config: %s %q is a directory, expected a file", envVar, path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("config: %s %q is empty", envVar, path)
	}
	perm := info.Mode().Perm()
	if perm&0o077 != 0 {
		return fmt.Errorf("config: %s %q has overly permissive mode %04o (expected 0600 or stricter)", envVar, path, perm)
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid float", key, v)
	}
	return f, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

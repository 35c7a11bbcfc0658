package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/oraculum-ai/oraculum/internal/config"
	"github.com/oraculum-ai/oraculum/internal/engine"
	"github.com/oraculum-ai/oraculum/internal/mcp"
	"github.com/oraculum-ai/oraculum/internal/neural"
	"github.com/oraculum-ai/oraculum/internal/provenance"
	"github.com/oraculum-ai/oraculum/internal/retrieval"
	"github.com/oraculum-ai/oraculum/internal/semantic"
	"github.com/oraculum-ai/oraculum/internal/storage"
	"github.com/oraculum-ai/oraculum/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := parseLogLevel(os.Getenv("ORACULUM_LOG_LEVEL"))
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("oraculum starting", "version", version, "db_path", cfg.DBPath)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure,
		cfg.OTELTraceBatchTimeout, cfg.OTELMetricInterval)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()
	instruments := telemetry.NewInstruments()

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	index, err := newSemanticIndex(ctx, cfg, store, logger)
	if err != nil {
		return fmt.Errorf("semantic index: %w", err)
	}
	if closer, ok := index.(interface{ Close() error }); ok {
		defer func() { _ = closer.Close() }()
	}

	scorer := newNeuralScorer(cfg, logger)

	chain, err := provenance.Init(store, cfg.KeyPath)
	if err != nil {
		return fmt.Errorf("provenance: %w", err)
	}

	retrievalCfg := retrieval.DefaultConfig()
	retrievalCfg.WFts = cfg.WFts
	retrievalCfg.WSem = cfg.WSem
	retrievalCfg.KRRF = cfg.KRRF
	retrievalCfg.WExplore = cfg.WExplore

	eng := engine.New(store, index, scorer, chain, cfg.DefaultDepth, retrievalCfg, instruments)

	mcpSrv := mcp.New(eng, version)

	stdioSrv := mcpserver.NewStdioServer(mcpSrv.MCPServer())
	errCh := make(chan error, 1)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil {
			errCh <- err
		}
	}()

	slog.Info("oraculum ready", "transport", "stdio")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("oraculum stopped")
	return nil
}

// newSemanticIndex builds the C2 semantic index: Qdrant-backed when
// QDRANT_URL is configured, falling back to the in-process LocalIndex
// otherwise (spec.md §4.2, §7's "local recovery only for missing semantic
// index" rule).
func newSemanticIndex(ctx context.Context, cfg config.Config, store *storage.Store, logger *slog.Logger) (semantic.Index, error) {
	dims := semantic.DefaultDims
	local, err := semantic.NewLocalIndex(ctx, store, dims)
	if err != nil {
		return nil, fmt.Errorf("local index: %w", err)
	}

	if cfg.QdrantURL == "" {
		logger.Info("semantic index: local only (no QDRANT_URL)")
		return local, nil
	}

	qdrantIndex, err := semantic.NewQdrantIndex(ctx, semantic.QdrantConfig{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
		Dims:       dims,
	}, local)
	if err != nil {
		logger.Warn("semantic index: qdrant init failed, falling back to local", "error", err)
		return local, nil
	}

	logger.Info("semantic index: qdrant", "collection", cfg.QdrantCollection)
	return qdrantIndex, nil
}

// newNeuralScorer loads the optional C5 neural scorer artifact, falling
// back to NoopScorer (which the retrieval pipeline treats as "substitute
// the arm sampler's draw", per spec.md §4.5) when no path is configured or
// loading fails.
func newNeuralScorer(cfg config.Config, logger *slog.Logger) neural.Scorer {
	if cfg.NeuralModelPath == "" {
		logger.Info("neural scorer: disabled (no ORACULUM_NEURAL_MODEL_PATH)")
		return neural.NoopScorer{}
	}
	model, err := neural.LoadModel(cfg.NeuralModelPath)
	if err != nil {
		logger.Warn("neural scorer: load failed, falling back to arm sampler", "error", err)
		return neural.NoopScorer{}
	}
	logger.Info("neural scorer: loaded", "path", cfg.NeuralModelPath)
	return model
}

func parseLogLevel(raw string) slog.Level {
	switch raw {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

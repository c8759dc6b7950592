// Command sibyld runs the sibyl query service: a confidence-routed set
// of specialized handlers over a retrieval-augmented document index.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sibylhq/sibyl/internal/agents"
	"github.com/sibylhq/sibyl/internal/chunking"
	"github.com/sibylhq/sibyl/internal/complaints"
	"github.com/sibylhq/sibyl/internal/config"
	"github.com/sibylhq/sibyl/internal/embedding"
	"github.com/sibylhq/sibyl/internal/generation"
	"github.com/sibylhq/sibyl/internal/ingest"
	"github.com/sibylhq/sibyl/internal/retrieval"
	"github.com/sibylhq/sibyl/internal/service"
	"github.com/sibylhq/sibyl/internal/synthesis"
	"github.com/sibylhq/sibyl/internal/vector"
	"github.com/sibylhq/sibyl/internal/vector/pgvector"
	"github.com/sibylhq/sibyl/internal/vector/sqlite"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "sibyl.yaml", "path to configuration file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := run(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Service failed")
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}

	index, err := openIndex(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open vector index: %w", err)
	}
	defer index.Close()

	generator, err := generation.New(cfg.Generation)
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}
	settings := generation.NewSettings(cfg.Generation.Defaults)

	synth, err := synthesis.NewSynthesizer(generator, settings)
	if err != nil {
		return fmt.Errorf("create synthesizer: %w", err)
	}

	store, err := complaints.NewStore(cfg.Complaints)
	if err != nil {
		return fmt.Errorf("open complaints store: %w", err)
	}
	defer store.Close()

	engine := retrieval.NewEngine(embedder, index)
	chunker := chunking.New(cfg.Chunking)
	ingester := ingest.NewIngester(chunker, embedder, index)

	router := agents.BuildRouter(cfg.Routing, engine, synth, store)
	orchestrator := agents.NewOrchestrator(router)

	svc := service.NewService(version, cfg, service.Deps{
		Orchestrator: orchestrator,
		Ingester:     ingester,
		Engine:       engine,
		Settings:     settings,
		Index:        index,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func openIndex(ctx context.Context, cfg *config.Config) (vector.Index, error) {
	switch cfg.Vector.Backend {
	case config.BackendPgvector:
		return pgvector.NewClient(ctx, pgvector.Config{
			DSN:        cfg.Vector.PostgresDSN,
			Dimensions: cfg.Embedding.Dimensions,
		})
	default:
		return sqlite.NewClient(sqlite.Config{Path: cfg.Vector.SQLitePath})
	}
}

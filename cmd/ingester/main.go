package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dometrics/dometrics/internal/app"
	"github.com/dometrics/dometrics/internal/config"
	"github.com/dometrics/dometrics/internal/core/service"
	"github.com/dometrics/dometrics/internal/metrics"
	"github.com/dometrics/dometrics/pkg/logger"
)

// runTimeout bounds a single ingestion pass.
const runTimeout = 30 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty}).
		With().Str("component", "ingester").Logger()
	logger.SetGlobalLogger(log)
	metrics.Init()

	// run returns before exiting so its deferred closes always execute.
	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("ingester stopped")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	if cfg.Ingest.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Ingest.Schedule); err != nil {
			return fmt.Errorf("invalid INGEST_SCHEDULE %q: %w", cfg.Ingest.Schedule, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sources, err := app.NewSources(cfg.Sources, log)
	if err != nil {
		return fmt.Errorf("failed to configure sources: %w", err)
	}

	log.Info().Msg("connecting to database")
	repo, closeRepo, err := app.OpenRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open snapshot repository: %w", err)
	}
	defer closeRepo()

	scorer, closeScorer, err := app.NewScorer(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build scoring engine: %w", err)
	}
	defer closeScorer()

	ingestor := service.NewIngestor(scorer, repo, sources, app.IngestOptions(cfg, log)...)

	if cfg.Ingest.Schedule == "" {
		return runOnce(ctx, ingestor, log)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(cfg.Ingest.Schedule, func() { _ = runOnce(ctx, ingestor, log) }); err != nil {
		return fmt.Errorf("invalid INGEST_SCHEDULE %q: %w", cfg.Ingest.Schedule, err)
	}
	c.Start()
	log.Info().Str("schedule", cfg.Ingest.Schedule).Int("sources", len(sources)).Msg("ingestion scheduled")

	<-ctx.Done()
	log.Info().Msg("stopping scheduler")
	<-c.Stop().Done()
	return nil
}

func runOnce(ctx context.Context, ingestor *service.Ingestor, log zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	report, err := ingestor.Run(ctx)
	event := log.Info()
	if err != nil {
		event = log.Error().Err(err)
	}
	event.
		Int("fetched", report.Fetched).
		Int("unique", report.Unique).
		Int("saved", report.Saved).
		Int("alerts", report.Alerts).
		Strs("failed_sources", report.FailedSources).
		Dur("duration", report.Duration).
		Msg("ingestion finished")
	return err
}

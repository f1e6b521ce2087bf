package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dometrics/dometrics/internal/adapter/handler"
	"github.com/dometrics/dometrics/internal/app"
	"github.com/dometrics/dometrics/internal/config"
	"github.com/dometrics/dometrics/internal/metrics"
	"github.com/dometrics/dometrics/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)
	metrics.Init()

	// run returns before exiting so its deferred closes always execute.
	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

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

	router := mux.NewRouter()
	handler.NewRestHandler(scorer, repo, log).Register(router)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.Use(handler.LoggingMiddleware(log))
	router.Use(handler.AuthMiddleware(cfg.AuthToken, log))

	srv := &http.Server{
		Addr:         ":" + cfg.RESTPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.RESTPort).Msg("dometrics REST API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server stopped")
	return nil
}

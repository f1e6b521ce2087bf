package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

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

	// Localhost by default; set GRPC_LISTEN_ADDR to expose it.
	listenAddr := os.Getenv("GRPC_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = "localhost:" + cfg.GRPCPort
	}

	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
	}

	s := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLoggingInterceptor(log)))
	handler.RegisterScoringServer(s, handler.NewGrpcServer(scorer, repo, log))
	reflection.Register(s)

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", listenAddr).Msg("dometrics gRPC API listening")
		if err := s.Serve(lis); err != nil {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to serve: %w", err)
	case <-quit:
	}

	log.Info().Msg("shutting down server")
	s.GracefulStop()
	return nil
}

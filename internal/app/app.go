// Package app wires adapters into the scoring services for the binaries under cmd/.
package app

import (
	"context"

	"github.com/dometrics/dometrics/internal/adapter/cache"
	"github.com/dometrics/dometrics/internal/adapter/llm"
	"github.com/dometrics/dometrics/internal/adapter/repository"
	"github.com/dometrics/dometrics/internal/config"
	"github.com/dometrics/dometrics/internal/core/service"
	"github.com/rs/zerolog"
)

// NewScorer builds the scoring engine: weights from SCORING_WEIGHTS_FILE, the LLM
// oracle and, when REDIS_URL is set and reachable, the score cache. The returned
// cleanup closes whatever was opened.
func NewScorer(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*service.Scorer, func(), error) {
	weights, err := config.LoadWeights(cfg.WeightsFile)
	if err != nil {
		return nil, nil, err
	}

	valuator := llm.NewValuator(cfg.LLM, log)
	opts := []service.Option{
		service.WithOracle(valuator),
		service.WithOracleTimeout(cfg.OracleTimeout),
		service.WithBatchConcurrency(cfg.BatchConcurrency),
		service.WithLogger(log),
	}

	cleanup := func() {}
	rdb, err := cache.NewClient(ctx, cfg.RedisURL)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("redis unavailable, score cache disabled")
	case rdb != nil:
		opts = append(opts, service.WithCache(cache.NewRedisCache(rdb), cfg.CacheTTL))
		cleanup = func() { _ = rdb.Close() }
	}

	log.Info().
		Str("weights_version", weights.Version).
		Bool("oracle_enabled", valuator.IsEnabled()).
		Bool("cache_enabled", rdb != nil).
		Msg("scoring engine ready")

	return service.NewScorer(weights, opts...), cleanup, nil
}

// OpenRepository connects to Postgres and applies the schema.
func OpenRepository(ctx context.Context, databaseURL string) (*repository.PostgresRepository, func(), error) {
	pool, err := repository.Connect(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}

	repo := repository.NewPostgresRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repo, pool.Close, nil
}

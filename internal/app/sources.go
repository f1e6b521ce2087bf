package app

import (
	"errors"
	"time"

	"github.com/dometrics/dometrics/internal/adapter/notifier"
	"github.com/dometrics/dometrics/internal/adapter/provider"
	"github.com/dometrics/dometrics/internal/adapter/resilient"
	"github.com/dometrics/dometrics/internal/config"
	"github.com/dometrics/dometrics/internal/core/ports"
	"github.com/dometrics/dometrics/internal/core/service"
	"github.com/rs/zerolog"
)

// ErrNoSources is returned when configuration enables no registry source.
var ErrNoSources = errors.New("no domain sources configured (set SUBGRAPH_URL, REGISTRAR_API_URL, WATCHLIST_FILE or WATCHLIST_URL)")

const (
	sourceHTTPTimeout = 30 * time.Second
	slackHTTPTimeout  = 10 * time.Second
)

// NewSources builds every registry source enabled in cfg.Sources.
func NewSources(cfg config.SourcesConfig, log zerolog.Logger) ([]ports.DomainSource, error) {
	var sources []ports.DomainSource

	if cfg.SubgraphURL != "" {
		client := resilient.New("subgraph", sourceHTTPTimeout, cfg.Resilience.ToClientConfig(), log)
		sources = append(sources, provider.NewSubgraphProvider(client, cfg.SubgraphURL, cfg.SubgraphPageSize, log))
	}

	if cfg.RegistrarURL != "" {
		registrar, err := provider.NewRegistrarProvider(
			cfg.RegistrarURL,
			cfg.RegistrarUser,
			cfg.RegistrarPassword,
			cfg.RegistrarIANAID,
			sourceHTTPTimeout,
			log,
		)
		if err != nil {
			return nil, err
		}
		sources = append(sources, registrar)
	}

	if cfg.WatchListFile != "" {
		sources = append(sources, provider.NewWatchListFile(cfg.WatchListFile))
	}
	if cfg.WatchListURL != "" {
		client := resilient.New("watchlist", sourceHTTPTimeout, cfg.Resilience.ToClientConfig(), log)
		sources = append(sources, provider.NewWatchListURL(client, cfg.WatchListURL))
	}

	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	return sources, nil
}

// IngestOptions adds Slack alerting when a bot token is configured.
func IngestOptions(cfg *config.Config, log zerolog.Logger) []service.IngestOption {
	opts := []service.IngestOption{
		service.WithBatchSize(cfg.Ingest.BatchSize),
		service.WithIngestLogger(log),
	}

	if cfg.Alerting.SlackBotToken == "" {
		log.Warn().Msg("SLACK_BOT_TOKEN not set - alerts disabled")
		return opts
	}

	client := resilient.New("slack", slackHTTPTimeout, resilient.DefaultConfig(), log)
	slack := notifier.NewSlackNotifier(cfg.Alerting.SlackBotToken, cfg.Alerting.SlackChannel, cfg.Alerting.SlackMention, client)
	policy := service.AlertPolicy{
		RiskThreshold:     cfg.Alerting.RiskThreshold,
		ExpiryWarningDays: float64(cfg.Alerting.ExpiryWarningDays),
	}
	return append(opts, service.WithNotifier(slack, policy))
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dometrics/dometrics/internal/core/domain"
	"github.com/dometrics/dometrics/internal/core/ports"
	"github.com/dometrics/dometrics/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const DefaultIngestBatchSize = 500

// IngestReport summarises one ingestion run.
type IngestReport struct {
	Fetched       int
	Unique        int
	Saved         int
	Alerts        int
	FailedSources []string
	Duration      time.Duration
}

// Ingestor pulls registry sources, scores the domains and persists snapshots.
type Ingestor struct {
	sources   []ports.DomainSource
	scorer    *Scorer
	repo      ports.ScoreRepository
	notifier  ports.Notifier
	policy    AlertPolicy
	batchSize int
	now       func() time.Time
	log       zerolog.Logger
}

type IngestOption func(*Ingestor)

// WithNotifier enables alerts for snapshots matching policy.
func WithNotifier(n ports.Notifier, policy AlertPolicy) IngestOption {
	return func(i *Ingestor) {
		i.notifier = n
		i.policy = policy
	}
}

func WithBatchSize(size int) IngestOption {
	return func(i *Ingestor) {
		if size > 0 {
			i.batchSize = size
		}
	}
}

func WithIngestClock(now func() time.Time) IngestOption {
	return func(i *Ingestor) { i.now = now }
}

func WithIngestLogger(log zerolog.Logger) IngestOption {
	return func(i *Ingestor) { i.log = log }
}

func NewIngestor(scorer *Scorer, repo ports.ScoreRepository, sources []ports.DomainSource, opts ...IngestOption) *Ingestor {
	i := &Ingestor{
		sources:   sources,
		scorer:    scorer,
		repo:      repo,
		batchSize: DefaultIngestBatchSize,
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

type sourcedAttributes struct {
	source string
	attrs  domain.DomainAttributes
}

// Run executes one ingestion pass. A failing source or batch is logged and skipped;
// the returned error joins every batch failure, or reports that all sources failed.
func (i *Ingestor) Run(ctx context.Context) (IngestReport, error) {
	start := time.Now()
	report := IngestReport{}

	fetched, failed := i.fetchAll(ctx)
	report.FailedSources = failed
	for _, batch := range fetched {
		report.Fetched += len(batch)
	}
	if len(i.sources) > 0 && len(failed) == len(i.sources) {
		report.Duration = time.Since(start)
		return report, fmt.Errorf("all %d sources failed: %s", len(failed), strings.Join(failed, ", "))
	}

	records := dedupe(fetched)
	report.Unique = len(records)
	i.log.Info().Int("fetched", report.Fetched).Int("unique", report.Unique).Msg("sources fetched, scoring")

	var batchErrs []error
	for startIdx := 0; startIdx < len(records); startIdx += i.batchSize {
		end := startIdx + i.batchSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[startIdx:end]

		attrs := make([]domain.DomainAttributes, len(chunk))
		for j, rec := range chunk {
			attrs[j] = rec.attrs
		}
		scores := i.scorer.ComputeBatch(ctx, attrs)

		snapshots := make([]domain.ScoreSnapshot, len(chunk))
		for j, rec := range chunk {
			snapshots[j] = domain.NewScoreSnapshot(rec.attrs, scores[j], rec.source)
		}

		if err := i.repo.SaveBatch(ctx, snapshots); err != nil {
			i.log.Error().Err(err).Int("size", len(snapshots)).Msg("failed to save snapshot batch")
			batchErrs = append(batchErrs, fmt.Errorf("batch %d-%d: %w", startIdx, end, err))
			continue
		}
		report.Saved += len(snapshots)
		i.log.Info().Int("size", len(snapshots)).Int("total", report.Saved).Msg("snapshot batch saved")

		report.Alerts += i.notify(snapshots)
	}

	report.Duration = time.Since(start)
	return report, errors.Join(batchErrs...)
}

// fetchAll queries every source in parallel. Results keep the source order.
func (i *Ingestor) fetchAll(ctx context.Context) ([][]sourcedAttributes, []string) {
	results := make([][]sourcedAttributes, len(i.sources))
	var mu sync.Mutex
	var failed []string

	g, gctx := errgroup.WithContext(ctx)
	for idx, src := range i.sources {
		idx, src := idx, src
		g.Go(func() error {
			i.log.Info().Str("source", src.Name()).Msg("fetching domains")

			domains, err := src.FetchDomains(gctx)
			if err != nil {
				metrics.RecordSourceFetch(src.Name(), "error", 0)
				i.log.Error().Err(err).Str("source", src.Name()).Msg("failed to fetch domains")
				mu.Lock()
				failed = append(failed, src.Name())
				mu.Unlock()
				return nil
			}

			metrics.RecordSourceFetch(src.Name(), "success", len(domains))
			i.log.Info().Str("source", src.Name()).Int("count", len(domains)).Msg("source fetched")

			batch := make([]sourcedAttributes, len(domains))
			for j, d := range domains {
				batch[j] = sourcedAttributes{source: src.Name(), attrs: d}
			}
			results[idx] = batch
			return nil
		})
	}
	_ = g.Wait()

	return results, failed
}

// dedupe keeps the first record of every FQDN; earlier sources win.
func dedupe(fetched [][]sourcedAttributes) []sourcedAttributes {
	seen := make(map[string]struct{})
	var out []sourcedAttributes
	for _, batch := range fetched {
		for _, rec := range batch {
			key := rec.attrs.Normalized().FQDN()
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, rec)
		}
	}
	return out
}

func (i *Ingestor) notify(snapshots []domain.ScoreSnapshot) int {
	if i.notifier == nil {
		return 0
	}

	now := i.now()
	sent := 0
	for _, snap := range snapshots {
		for _, alert := range i.policy.Evaluate(snap, now) {
			if err := dispatch(i.notifier, alert); err != nil {
				i.log.Warn().Err(err).Str("domain", alert.Domain).Str("kind", string(alert.Kind)).Msg("failed to send alert")
				continue
			}
			sent++
		}
	}
	return sent
}

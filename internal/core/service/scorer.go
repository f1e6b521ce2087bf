package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dometrics/dometrics/internal/core/domain"
	"github.com/dometrics/dometrics/internal/core/ports"
	"github.com/dometrics/dometrics/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultOracleTimeout    = 8 * time.Second
	DefaultBatchConcurrency = 8
	DefaultCacheTTL         = 15 * time.Minute
)

// Fallback reasons, also used as metric labels.
const (
	fallbackDisabled = "disabled"
	fallbackTimeout  = "timeout"
	fallbackCanceled = "canceled"
	fallbackError    = "error"
	fallbackPanic    = "panic"
	fallbackEmpty    = "empty"
)

var (
	errOraclePanic    = errors.New("valuation oracle panicked")
	errEmptyValuation = errors.New("valuation oracle returned no result")
)

// Scorer computes DomainScores with an immutable weight set. The oracle and cache are
// optional; a Scorer is safe for concurrent use.
type Scorer struct {
	weights     domain.ScoringWeights
	oracle      ports.ValuationOracle
	cache       ports.ScoreCache
	cacheTTL    time.Duration
	timeout     time.Duration
	concurrency int
	now         func() time.Time
	log         zerolog.Logger
}

type Option func(*Scorer)

func WithOracle(oracle ports.ValuationOracle) Option {
	return func(s *Scorer) { s.oracle = oracle }
}

// WithCache enables the valuation cache. Only sanitized oracle valuations are cached;
// sub-scores are recomputed on every call.
func WithCache(cache ports.ScoreCache, ttl time.Duration) Option {
	return func(s *Scorer) {
		s.cache = cache
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

func WithOracleTimeout(timeout time.Duration) Option {
	return func(s *Scorer) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func WithBatchConcurrency(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithClock replaces time.Now as the reference time for expiry and event windows.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Scorer) { s.log = log }
}

func NewScorer(weights domain.ScoringWeights, opts ...Option) *Scorer {
	s := &Scorer{
		weights:     weights,
		cacheTTL:    DefaultCacheTTL,
		timeout:     DefaultOracleTimeout,
		concurrency: DefaultBatchConcurrency,
		now:         time.Now,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Weights returns the active weight set.
func (s *Scorer) Weights() domain.ScoringWeights {
	return s.weights
}

// OracleEnabled reports whether ComputeScores will try the oracle.
func (s *Scorer) OracleEnabled() bool {
	return s.oracle != nil && s.oracle.IsEnabled()
}

// ComputeScoresSync always uses the algorithmic valuation and never does I/O.
func (s *Scorer) ComputeScoresSync(attrs domain.DomainAttributes) domain.DomainScores {
	scores := domain.ScoreDomain(attrs, s.weights, s.now())
	metrics.RecordScores(scores)
	return scores
}

// ComputeScores takes the value fields from the oracle when it answers in time and
// falls back to the algorithmic valuation otherwise. It never fails.
func (s *Scorer) ComputeScores(ctx context.Context, attrs domain.DomainAttributes) domain.DomainScores {
	now := s.now()
	sub := domain.CalculateSubScores(attrs, s.weights, now)

	if !s.OracleEnabled() {
		metrics.RecordOracleRequest("skipped", fallbackDisabled)
		return s.fallback(attrs, sub, now, fallbackDisabled)
	}

	key := s.cacheKey(attrs, now)
	if cached := s.lookupCache(ctx, key); cached != nil {
		scores := sub.WithValue(*cached, s.weights.Version, now)
		metrics.RecordScores(scores)
		return scores
	}

	raw, err := s.callOracle(ctx, s.valuationRequest(attrs, sub, now))
	if err != nil {
		reason := fallbackReason(err)
		metrics.RecordOracleRequest("error", reason)
		s.log.Warn().
			Err(err).
			Str("domain", attrs.FQDN()).
			Str("oracle", s.oracle.Name()).
			Str("reason", reason).
			Msg("valuation oracle failed, using algorithmic valuation")
		return s.fallback(attrs, sub, now, reason)
	}

	metrics.RecordOracleRequest("success", "oracle")
	value := domain.SanitizeOracleValuation(*raw, s.weights.Valuation)
	scores := sub.WithValue(value, s.weights.Version, now)
	metrics.RecordScores(scores)

	s.storeCache(ctx, key, value)
	return scores
}

// ComputeBatch scores every record concurrently. The result order matches attrs.
func (s *Scorer) ComputeBatch(ctx context.Context, attrs []domain.DomainAttributes) []domain.DomainScores {
	out := make([]domain.DomainScores, len(attrs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range attrs {
		i := i
		g.Go(func() error {
			out[i] = s.ComputeScores(gctx, attrs[i])
			return nil
		})
	}
	_ = g.Wait() // ComputeScores never fails

	return out
}

func (s *Scorer) fallback(attrs domain.DomainAttributes, sub domain.SubScores, now time.Time, reason string) domain.DomainScores {
	if reason != fallbackDisabled {
		metrics.RecordFallback(reason)
	}
	scores := sub.WithValue(sub.AlgorithmicValue(attrs, s.weights), s.weights.Version, now)
	metrics.RecordScores(scores)
	return scores
}

// callOracle runs a single oracle attempt raced against the timeout. The result channel
// is buffered so an abandoned call can still complete and exit.
func (s *Scorer) callOracle(ctx context.Context, req ports.ValuationRequest) (*domain.OracleValuation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		valuation *domain.OracleValuation
		err       error
	}
	done := make(chan result, 1)

	timer := metrics.StartTimer()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%w: %v", errOraclePanic, r)}
			}
		}()
		v, err := s.oracle.Valuate(ctx, req)
		done <- result{valuation: v, err: err}
	}()

	select {
	case res := <-done:
		timer.ObserveDuration()
		if res.err != nil {
			return nil, res.err
		}
		if res.valuation == nil {
			return nil, errEmptyValuation
		}
		return res.valuation, nil
	case <-ctx.Done():
		timer.ObserveDuration()
		return nil, ctx.Err()
	}
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fallbackTimeout
	case errors.Is(err, context.Canceled):
		return fallbackCanceled
	case errors.Is(err, errOraclePanic):
		return fallbackPanic
	case errors.Is(err, errEmptyValuation):
		return fallbackEmpty
	default:
		return fallbackError
	}
}

func (s *Scorer) valuationRequest(attrs domain.DomainAttributes, sub domain.SubScores, now time.Time) ports.ValuationRequest {
	n := attrs.Normalized()
	return ports.ValuationRequest{
		Name:         n.Name,
		TLD:          n.TLD,
		OfferCount:   attrs.OfferCount,
		Activity7d:   attrs.Activity7d,
		Activity30d:  attrs.Activity30d,
		DaysToExpiry: attrs.DaysUntilExpiry(now),
		Risk:         sub.Risk,
		Rarity:       sub.Rarity,
		Momentum:     sub.Momentum,
	}
}

// cacheKey hashes the normalized attributes, the weights version and the hour of now.
func (s *Scorer) cacheKey(attrs domain.DomainAttributes, now time.Time) string {
	payload, err := json.Marshal(struct {
		Attrs   domain.DomainAttributes `json:"attrs"`
		Version string                  `json:"version"`
		Hour    int64                   `json:"hour"`
	}{
		Attrs:   attrs.Normalized(),
		Version: s.weights.Version,
		Hour:    now.Truncate(time.Hour).Unix(),
	})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func (s *Scorer) lookupCache(ctx context.Context, key string) *domain.ValueEstimate {
	if s.cache == nil || key == "" {
		return nil
	}
	value, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.RecordCache("error")
		s.log.Debug().Err(err).Msg("score cache lookup failed")
		return nil
	}
	if value == nil {
		metrics.RecordCache("miss")
		return nil
	}
	metrics.RecordCache("hit")
	return value
}

func (s *Scorer) storeCache(ctx context.Context, key string, value domain.ValueEstimate) {
	if s.cache == nil || key == "" {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		metrics.RecordCache("error")
		s.log.Debug().Err(err).Msg("score cache store failed")
	}
}

package metrics

import (
	"sync"
	"time"

	"github.com/dometrics/dometrics/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// metricsOnce ensures metrics are registered only once
	metricsOnce sync.Once

	// oracleRequestsTotal tracks valuation oracle calls by status and reason
	oracleRequestsTotal *prometheus.CounterVec

	// oracleDuration tracks latency of oracle calls
	oracleDuration prometheus.Histogram

	// guardrailsTotal tracks oracle guardrail activations
	guardrailsTotal *prometheus.CounterVec

	// upstreamErrorsTotal tracks HTTP errors per upstream client
	upstreamErrorsTotal *prometheus.CounterVec

	fallbacksTotal *prometheus.CounterVec

	subScores *prometheus.HistogramVec

	valueConfidence prometheus.Histogram

	cacheRequestsTotal *prometheus.CounterVec

	sourceFetchTotal *prometheus.CounterVec

	sourceDomainsFetched *prometheus.CounterVec
)

// Init registers all Prometheus metrics.
// This should be called once at application startup
func Init() {
	metricsOnce.Do(func() {
		oracleRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dometrics_oracle_requests_total",
				Help: "Total number of valuation oracle requests by status and reason",
			},
			[]string{"status", "reason"},
		)

		oracleDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dometrics_oracle_duration_seconds",
				Help:    "Duration of valuation oracle calls in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 4.0, 8.0},
			},
		)

		guardrailsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dometrics_oracle_guardrails_total",
				Help: "Total number of oracle guardrail activations by type and action",
			},
			[]string{"type", "action"},
		)

		upstreamErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dometrics_upstream_errors_total",
				Help: "Total number of upstream HTTP errors by client and error type",
			},
			[]string{"client", "error_type"},
		)

		fallbacksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dometrics_valuation_fallbacks_total",
				Help: "Total number of algorithmic valuation fallbacks by reason",
			},
			[]string{"reason"},
		)

		subScores = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dometrics_sub_score",
				Help:    "Distribution of computed sub-scores (0-100)",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
			[]string{"score"},
		)

		valueConfidence = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dometrics_value_confidence",
				Help:    "Distribution of valuation confidence (50-95)",
				Buckets: []float64{50, 60, 70, 75, 80, 85, 90, 95},
			},
		)

		cacheRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dometrics_score_cache_requests_total",
				Help: "Score cache lookups by result",
			},
			[]string{"result"},
		)

		sourceFetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dometrics_source_fetch_total",
				Help: "Registry source fetches by source and status",
			},
			[]string{"source", "status"},
		)

		sourceDomainsFetched = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dometrics_source_domains_fetched_total",
				Help: "Domains returned by registry sources",
			},
			[]string{"source"},
		)
	})
}

// RecordOracleRequest records an oracle call.
// status: "success", "error", "skipped"
// reason: "oracle", "timeout", "panic", "guardrail", "disabled", etc.
func RecordOracleRequest(status, reason string) {
	if oracleRequestsTotal != nil {
		oracleRequestsTotal.WithLabelValues(status, reason).Inc()
	}
}

func RecordOracleDuration(duration time.Duration) {
	if oracleDuration != nil {
		oracleDuration.Observe(duration.Seconds())
	}
}

// RecordGuardrail records a guardrail activation
// guardType: "pre", "post"
// action: "skip", "cap", "downgrade"
func RecordGuardrail(guardType, action string) {
	if guardrailsTotal != nil {
		guardrailsTotal.WithLabelValues(guardType, action).Inc()
	}
}

// RecordUpstreamError records an HTTP client error by type
// errorType: "timeout", "auth", "rate_limit", "server_error", "connection", "parse", "circuit_open"
func RecordUpstreamError(client, errorType string) {
	if upstreamErrorsTotal != nil {
		upstreamErrorsTotal.WithLabelValues(client, errorType).Inc()
	}
}

// RecordFallback records that the algorithmic valuation replaced the oracle.
func RecordFallback(reason string) {
	if fallbacksTotal != nil {
		fallbacksTotal.WithLabelValues(reason).Inc()
	}
}

// RecordScores observes every sub-score and the value confidence of a result.
func RecordScores(s domain.DomainScores) {
	if subScores != nil {
		subScores.WithLabelValues("risk").Observe(s.Risk)
		subScores.WithLabelValues("rarity").Observe(s.Rarity)
		subScores.WithLabelValues("momentum").Observe(s.Momentum)
		subScores.WithLabelValues("forecast").Observe(s.Forecast)
	}
	if valueConfidence != nil {
		valueConfidence.Observe(s.ValueConfidence)
	}
}

// RecordCache records a cache lookup: "hit", "miss" or "error".
func RecordCache(result string) {
	if cacheRequestsTotal != nil {
		cacheRequestsTotal.WithLabelValues(result).Inc()
	}
}

// RecordSourceFetch records one registry source fetch and the number of domains it returned.
func RecordSourceFetch(source, status string, count int) {
	if sourceFetchTotal != nil {
		sourceFetchTotal.WithLabelValues(source, status).Inc()
	}
	if sourceDomainsFetched != nil && count > 0 {
		sourceDomainsFetched.WithLabelValues(source).Add(float64(count))
	}
}

// Timer is a helper for timing oracle calls
type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time since the timer started
func (t *Timer) ObserveDuration() {
	if t != nil {
		RecordOracleDuration(time.Since(t.start))
	}
}

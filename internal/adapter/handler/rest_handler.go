package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dometrics/dometrics/internal/adapter/exporter"
	"github.com/dometrics/dometrics/internal/core/domain"
	"github.com/dometrics/dometrics/internal/core/ports"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	maxBodyBytes        = 4 << 20
	maxBatchSize        = 1000
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// ScoreEngine is the scoring surface the handlers need; *service.Scorer satisfies it.
type ScoreEngine interface {
	ComputeScores(ctx context.Context, attrs domain.DomainAttributes) domain.DomainScores
	ComputeScoresSync(attrs domain.DomainAttributes) domain.DomainScores
	ComputeBatch(ctx context.Context, attrs []domain.DomainAttributes) []domain.DomainScores
	Weights() domain.ScoringWeights
	OracleEnabled() bool
}

type RestHandler struct {
	scorer       ScoreEngine
	repo         ports.ScoreRepository
	csvExporter  *exporter.CSVExporter
	jsonExporter *exporter.JSONExporter
	log          zerolog.Logger
}

// NewRestHandler wires the REST endpoints. repo may be nil, in which case the snapshot
// endpoints answer 503.
func NewRestHandler(scorer ScoreEngine, repo ports.ScoreRepository, log zerolog.Logger) *RestHandler {
	h := &RestHandler{
		scorer: scorer,
		repo:   repo,
		log:    log.With().Str("component", "rest").Logger(),
	}
	if repo != nil {
		h.csvExporter = exporter.NewCSVExporter(repo)
		h.jsonExporter = exporter.NewJSONExporter(repo)
	}
	return h
}

// Register mounts every endpoint on router.
func (h *RestHandler) Register(router *mux.Router) {
	router.HandleFunc("/api/v1/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/weights", h.GetWeights).Methods(http.MethodGet)

	router.HandleFunc("/api/v1/scores", h.ComputeScores).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/scores/batch", h.ComputeBatch).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/scores/feed", h.GetScoreFeed).Methods(http.MethodGet)

	router.HandleFunc("/api/v1/domains/{fqdn}/scores", h.GetLatest).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/domains/{fqdn}/history", h.GetHistory).Methods(http.MethodGet)
}

// Health check endpoint
func (h *RestHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":          "healthy",
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"service":         "dometrics-api",
		"weights_version": h.scorer.Weights().Version,
		"oracle_enabled":  h.scorer.OracleEnabled(),
		"storage_enabled": h.repo != nil,
	}
	writeJSON(w, h.log, http.StatusOK, response)
}

// GetWeights returns the active weight set
func (h *RestHandler) GetWeights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, http.StatusOK, h.scorer.Weights())
}

// ComputeScores scores one domain. mode=sync skips the valuation oracle.
func (h *RestHandler) ComputeScores(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	if mode != "" && mode != "sync" && mode != "async" {
		writeError(w, h.log, http.StatusBadRequest, "unsupported mode (use 'sync' or 'async')")
		return
	}

	var attrs domain.DomainAttributes
	if err := decodeBody(w, r, &attrs); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(attrs.Name) == "" {
		writeError(w, h.log, http.StatusBadRequest, "missing 'name'")
		return
	}

	if mode == "sync" {
		writeJSON(w, h.log, http.StatusOK, h.scorer.ComputeScoresSync(attrs))
		return
	}
	writeJSON(w, h.log, http.StatusOK, h.scorer.ComputeScores(r.Context(), attrs))
}

type batchRequest struct {
	Domains []domain.DomainAttributes `json:"domains"`
}

type batchResponse struct {
	Count  int                   `json:"count"`
	Scores []domain.DomainScores `json:"scores"`
}

// ComputeBatch scores many domains; the response order matches the request.
func (h *RestHandler) ComputeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.log, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if len(req.Domains) > maxBatchSize {
		writeError(w, h.log, http.StatusBadRequest, fmt.Sprintf("batch exceeds %d domains", maxBatchSize))
		return
	}
	for i, attrs := range req.Domains {
		if strings.TrimSpace(attrs.Name) == "" {
			writeError(w, h.log, http.StatusBadRequest, fmt.Sprintf("missing 'name' in domains[%d]", i))
			return
		}
	}

	scores := h.scorer.ComputeBatch(r.Context(), req.Domains)
	writeJSON(w, h.log, http.StatusOK, batchResponse{Count: len(scores), Scores: scores})
}

// GetLatest returns the newest persisted snapshot of a domain
func (h *RestHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, h.log, http.StatusServiceUnavailable, "snapshot storage not configured")
		return
	}

	name, tld, ok := parseFQDN(mux.Vars(r)["fqdn"])
	if !ok {
		writeError(w, h.log, http.StatusBadRequest, "domain must be of the form name.tld")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	snapshot, err := h.repo.FindLatest(ctx, name, tld)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			writeError(w, h.log, http.StatusNotFound, fmt.Sprintf("no scores for %s.%s", name, tld))
			return
		}
		h.log.Error().Err(err).Str("domain", name+"."+tld).Msg("failed to load latest snapshot")
		writeError(w, h.log, http.StatusInternalServerError, "failed to query snapshots")
		return
	}

	writeJSON(w, h.log, http.StatusOK, snapshot)
}

// GetHistory returns the snapshot history of a domain, newest first
func (h *RestHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, h.log, http.StatusServiceUnavailable, "snapshot storage not configured")
		return
	}

	name, tld, ok := parseFQDN(mux.Vars(r)["fqdn"])
	if !ok {
		writeError(w, h.log, http.StatusBadRequest, "domain must be of the form name.tld")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeError(w, h.log, http.StatusBadRequest, fmt.Sprintf("'limit' must be between 1 and %d", maxHistoryLimit))
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	snapshots, err := h.repo.FindHistory(ctx, name, tld, limit)
	if err != nil {
		h.log.Error().Err(err).Str("domain", name+"."+tld).Msg("failed to load snapshot history")
		writeError(w, h.log, http.StatusInternalServerError, "failed to query snapshots")
		return
	}
	if snapshots == nil {
		snapshots = []domain.ScoreSnapshot{}
	}

	response := map[string]interface{}{
		"domain":    name + "." + tld,
		"count":     len(snapshots),
		"snapshots": snapshots,
	}
	writeJSON(w, h.log, http.StatusOK, response)
}

// GetScoreFeed exports recent snapshots for downstream analytics
func (h *RestHandler) GetScoreFeed(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, h.log, http.StatusServiceUnavailable, "snapshot storage not configured")
		return
	}

	format := r.URL.Query().Get("format")

	var sinceTime time.Time
	if since := r.URL.Query().Get("since"); since != "" {
		duration, err := parseSince(since)
		if err != nil {
			writeError(w, h.log, http.StatusBadRequest, "invalid 'since' parameter (use format like '24h', '7d')")
			return
		}
		sinceTime = time.Now().Add(-duration)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	switch format {
	case "csv":
		data, err := h.csvExporter.Export(ctx, sinceTime)
		if err != nil {
			h.log.Error().Err(err).Msg("failed to export CSV feed")
			writeError(w, h.log, http.StatusInternalServerError, "failed to export CSV feed")
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(data)); err != nil {
			h.log.Warn().Err(err).Msg("error writing CSV feed response")
		}

	case "json", "":
		data, err := h.jsonExporter.Export(ctx, sinceTime)
		if err != nil {
			h.log.Error().Err(err).Msg("failed to export JSON feed")
			writeError(w, h.log, http.StatusInternalServerError, "failed to export JSON feed")
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(data)); err != nil {
			h.log.Warn().Err(err).Msg("error writing JSON feed response")
		}

	default:
		writeError(w, h.log, http.StatusBadRequest, "unsupported format (use 'csv' or 'json')")
	}
}

// Helper functions

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// parseFQDN accepts "name.tld" (or anything ParseDomainName understands) and
// requires both parts.
func parseFQDN(value string) (string, string, bool) {
	name, tld := domain.ParseDomainName(value)
	return name, tld, name != "" && tld != ""
}

// parseSince extends time.ParseDuration with a whole-day "d" unit.
func parseSince(value string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid day count %q", value)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", value)
	}
	return d, nil
}

func writeJSON(w http.ResponseWriter, logger zerolog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn().Err(err).Msg("error encoding JSON response")
	}
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, status int, message string) {
	writeJSON(w, logger, status, map[string]string{"error": message})
}

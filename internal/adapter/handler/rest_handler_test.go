package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dometrics/dometrics/internal/core/domain"
	"github.com/dometrics/dometrics/internal/core/ports"
	"github.com/dometrics/dometrics/internal/core/service"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// memRepo is an in-memory ScoreRepository keyed by "name.tld", newest last.
type memRepo struct {
	snapshots map[string][]domain.ScoreSnapshot
	err       error
	limit     int
}

func newMemRepo(snaps ...domain.ScoreSnapshot) *memRepo {
	r := &memRepo{snapshots: map[string][]domain.ScoreSnapshot{}}
	for _, s := range snaps {
		r.snapshots[s.FQDN()] = append(r.snapshots[s.FQDN()], s)
	}
	return r
}

func (r *memRepo) SaveBatch(context.Context, []domain.ScoreSnapshot) error { return r.err }

func (r *memRepo) FindLatest(_ context.Context, name, tld string) (*domain.ScoreSnapshot, error) {
	if r.err != nil {
		return nil, r.err
	}
	list := r.snapshots[name+"."+tld]
	if len(list) == 0 {
		return nil, fmt.Errorf("latest snapshot for %s.%s: %w", name, tld, ports.ErrNotFound)
	}
	latest := list[len(list)-1]
	return &latest, nil
}

func (r *memRepo) FindHistory(_ context.Context, name, tld string, limit int) ([]domain.ScoreSnapshot, error) {
	r.limit = limit
	if r.err != nil {
		return nil, r.err
	}
	list := r.snapshots[name+"."+tld]
	out := make([]domain.ScoreSnapshot, 0, len(list))
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

func (r *memRepo) FindSince(context.Context, time.Time, int) ([]domain.ScoreSnapshot, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []domain.ScoreSnapshot
	for _, list := range r.snapshots {
		out = append(out, list...)
	}
	return out, nil
}

func testSnapshot(name, tld string, risk float64) domain.ScoreSnapshot {
	return domain.ScoreSnapshot{
		ID:        uuid.New(),
		Name:      name,
		TLD:       tld,
		ExpiresAt: testNow.AddDate(1, 0, 0),
		Source:    "subgraph",
		Scores: domain.DomainScores{
			Risk:            risk,
			Rarity:          70,
			Momentum:        50,
			CurrentValue:    1200,
			ValuationSource: domain.SourceAlgorithmic,
			WeightsVersion:  "1.0.0",
			ComputedAt:      testNow,
		},
	}
}

func newTestRouter(repo ports.ScoreRepository) *mux.Router {
	scorer := service.NewScorer(domain.DefaultWeights(), service.WithClock(func() time.Time { return testNow }))
	router := mux.NewRouter()
	NewRestHandler(scorer, repo, zerolog.Nop()).Register(router)
	return router
}

func doRequest(t *testing.T, router http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, newTestRouter(nil), http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "1.0.0", body["weights_version"])
	assert.Equal(t, false, body["oracle_enabled"])
	assert.Equal(t, false, body["storage_enabled"])
}

func TestGetWeights(t *testing.T) {
	rec := doRequest(t, newTestRouter(nil), http.MethodGet, "/api/v1/weights", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var weights domain.ScoringWeights
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &weights))
	assert.Equal(t, domain.DefaultWeights(), weights)
}

func TestComputeScores(t *testing.T) {
	router := newTestRouter(nil)
	attrs := domain.DomainAttributes{
		Name:        "crypto",
		TLD:         "io",
		ExpiresAt:   testNow.AddDate(0, 0, 200),
		OfferCount:  4,
		Activity7d:  5,
		Activity30d: 12,
	}
	want := domain.ScoreDomain(attrs, domain.DefaultWeights(), testNow)

	for _, mode := range []string{"", "?mode=sync", "?mode=async"} {
		t.Run("mode"+mode, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/api/v1/scores"+mode, attrs)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var got domain.DomainScores
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.InDelta(t, want.Risk, got.Risk, 1e-9)
			assert.InDelta(t, want.Rarity, got.Rarity, 1e-9)
			assert.InDelta(t, want.CurrentValue, got.CurrentValue, 1e-6)
			assert.Equal(t, domain.SourceAlgorithmic, got.ValuationSource)
			assert.Equal(t, "1.0.0", got.WeightsVersion)
		})
	}
}

func TestComputeScoresBadRequests(t *testing.T) {
	router := newTestRouter(nil)

	tests := []struct {
		name   string
		target string
		body   interface{}
	}{
		{"invalid json", "/api/v1/scores", "{not json"},
		{"missing name", "/api/v1/scores", map[string]string{"tld": "io"}},
		{"bad mode", "/api/v1/scores?mode=later", map[string]string{"name": "a", "tld": "io"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestComputeBatch(t *testing.T) {
	router := newTestRouter(nil)
	req := batchRequest{Domains: []domain.DomainAttributes{
		{Name: "abc", TLD: "io", ExpiresAt: testNow.AddDate(1, 0, 0)},
		{Name: "longerdomainname", TLD: "com", ExpiresAt: testNow.AddDate(0, 0, 10)},
	}}

	rec := doRequest(t, router, http.MethodPost, "/api/v1/scores/batch", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	require.Len(t, resp.Scores, 2)

	// order follows the request
	assert.Greater(t, resp.Scores[0].Rarity, resp.Scores[1].Rarity)
	assert.Less(t, resp.Scores[0].Risk, resp.Scores[1].Risk)
}

func TestComputeBatchLimits(t *testing.T) {
	router := newTestRouter(nil)

	domains := make([]domain.DomainAttributes, maxBatchSize+1)
	for i := range domains {
		domains[i] = domain.DomainAttributes{Name: fmt.Sprintf("d%d", i), TLD: "com"}
	}
	rec := doRequest(t, router, http.MethodPost, "/api/v1/scores/batch", batchRequest{Domains: domains})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/v1/scores/batch",
		batchRequest{Domains: []domain.DomainAttributes{{Name: "ok", TLD: "io"}, {TLD: "io"}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "domains[1]")

	rec = doRequest(t, router, http.MethodPost, "/api/v1/scores/batch", batchRequest{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestGetLatest(t *testing.T) {
	older := testSnapshot("crypto", "io", 40)
	newer := testSnapshot("crypto", "io", 25)
	router := newTestRouter(newMemRepo(older, newer))

	rec := doRequest(t, router, http.MethodGet, "/api/v1/domains/crypto.io/scores", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.ScoreSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, newer.ID, got.ID)
	assert.Equal(t, 25.0, got.Scores.Risk)
}

func TestGetLatestErrors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		rec := doRequest(t, newTestRouter(newMemRepo()), http.MethodGet, "/api/v1/domains/missing.io/scores", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad domain", func(t *testing.T) {
		rec := doRequest(t, newTestRouter(newMemRepo()), http.MethodGet, "/api/v1/domains/nodot/scores", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("repository failure", func(t *testing.T) {
		repo := newMemRepo()
		repo.err = errors.New("connection refused")
		rec := doRequest(t, newTestRouter(repo), http.MethodGet, "/api/v1/domains/crypto.io/scores", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})

	t.Run("no storage", func(t *testing.T) {
		rec := doRequest(t, newTestRouter(nil), http.MethodGet, "/api/v1/domains/crypto.io/scores", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestGetHistory(t *testing.T) {
	repo := newMemRepo(
		testSnapshot("crypto", "io", 10),
		testSnapshot("crypto", "io", 20),
		testSnapshot("crypto", "io", 30),
	)
	router := newTestRouter(repo)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/domains/crypto.io/history?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, repo.limit)

	var body struct {
		Domain    string                 `json:"domain"`
		Count     int                    `json:"count"`
		Snapshots []domain.ScoreSnapshot `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "crypto.io", body.Domain)
	require.Equal(t, 2, body.Count)
	assert.Equal(t, 30.0, body.Snapshots[0].Scores.Risk)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/domains/crypto.io/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultHistoryLimit, repo.limit)

	for _, limit := range []string{"0", "abc", "501"} {
		rec = doRequest(t, router, http.MethodGet, "/api/v1/domains/crypto.io/history?limit="+limit, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/domains/unknown.io/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"snapshots":[]`)
}

func TestGetScoreFeed(t *testing.T) {
	router := newTestRouter(newMemRepo(testSnapshot("crypto", "io", 10)))

	rec := doRequest(t, router, http.MethodGet, "/api/v1/scores/feed?format=csv&since=7d", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "crypto")

	rec = doRequest(t, router, http.MethodGet, "/api/v1/scores/feed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bundle map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	assert.Equal(t, float64(1), bundle["count"])

	rec = doRequest(t, router, http.MethodGet, "/api/v1/scores/feed?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/scores/feed?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseSince(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"24h", 24 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"0d", 0, false},
		{"-1h", 0, true},
		{"-2d", 0, true},
		{"xd", 0, true},
		{"week", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseSince(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMiddleware(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs)

	router := newTestRouter(nil)
	router.Use(LoggingMiddleware(logger))
	router.Use(AuthMiddleware("secret", logger))

	rec := doRequest(t, router, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/weights", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/weights", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/weights", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[1], `"status":401`)
	assert.Contains(t, lines[1], `"path":"/api/v1/weights"`)
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	router := newTestRouter(nil)
	router.Use(AuthMiddleware("", zerolog.Nop()))

	rec := doRequest(t, router, http.MethodGet, "/api/v1/weights", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWriteJSONLogsEncodeErrors(t *testing.T) {
	var logs bytes.Buffer
	rec := httptest.NewRecorder()

	writeJSON(rec, zerolog.New(&logs), http.StatusOK, map[string]interface{}{"bad": make(chan int)})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), "error encoding JSON response")
}

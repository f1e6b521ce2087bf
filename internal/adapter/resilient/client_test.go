package resilient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		EnableCircuitBreaker: false,
		MaxFailures:          5,
		CircuitTimeout:       30 * time.Second,
		MaxRetries:           3,
		InitialInterval:      5 * time.Millisecond,
		MaxInterval:          20 * time.Millisecond,
	}
}

func TestNew(t *testing.T) {
	client := New("test", 5*time.Second, DefaultConfig(), zerolog.Nop())

	require.NotNil(t, client)
	assert.NotNil(t, client.client)
	assert.NotNil(t, client.breaker)
	assert.Equal(t, "closed", client.State())

	noBreaker := New("test", 5*time.Second, fastConfig(), zerolog.Nop())
	assert.Nil(t, noBreaker.breaker)
	assert.Equal(t, "disabled", noBreaker.State())
}

func TestClient_RetriesServerErrorsAndReplaysBody(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"q":1}`, string(body))
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New("test", 5*time.Second, fastConfig(), zerolog.Nop())
	req, err := http.NewRequest(http.MethodPost, server.URL, strings.NewReader(`{"q":1}`))
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestClient_NoRetryOn4xx(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := New("test", 5*time.Second, fastConfig(), zerolog.Nop())
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	_, err := client.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts), "4xx should not be retried")
}

func TestClient_SingleAttemptWhenRetriesDisabled(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := fastConfig()
	cfg.MaxRetries = 0
	client := New("test", 5*time.Second, cfg, zerolog.Nop())
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	_, err := client.Do(req)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestClient_CircuitBreakerOpensAfterFailures(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := fastConfig()
	cfg.EnableCircuitBreaker = true
	cfg.MaxFailures = 3
	cfg.MaxRetries = 0
	client := New("test", 5*time.Second, cfg, zerolog.Nop())

	var lastErr error
	for i := 0; i < 6; i++ {
		req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
		_, lastErr = client.Do(req)
	}

	require.Error(t, lastErr)
	assert.Contains(t, lastErr.Error(), "circuit breaker is open")
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts), "open breaker must short-circuit")
	assert.Equal(t, "open", client.State())
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := fastConfig()
	cfg.MaxRetries = 0
	client := New("test", 5*time.Second, cfg, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)

	start := time.Now()
	_, err := client.Do(req)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		want       bool
	}{
		{"deadline", context.DeadlineExceeded, 0, true},
		{"connection refused", io.ErrUnexpectedEOF, 0, true},
		{"other error", context.Canceled, 0, false},
		{"500", nil, http.StatusInternalServerError, true},
		{"429", nil, http.StatusTooManyRequests, true},
		{"503", nil, http.StatusServiceUnavailable, true},
		{"404", nil, http.StatusNotFound, false},
		{"200", nil, http.StatusOK, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *http.Response
			if tt.statusCode != 0 {
				resp = &http.Response{StatusCode: tt.statusCode}
			}
			assert.Equal(t, tt.want, shouldRetry(tt.err, resp))
		})
	}
}

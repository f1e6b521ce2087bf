package resilient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dometrics/dometrics/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Client wraps an HTTP client with circuit breaker and retry logic
type Client struct {
	name    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	config  Config
	log     zerolog.Logger
}

// Config holds configuration for the resilient client
type Config struct {
	// Circuit breaker settings
	EnableCircuitBreaker bool
	MaxFailures          uint32
	CircuitTimeout       time.Duration

	// Retry settings; MaxRetries 0 means a single attempt
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig returns the defaults used by registry sources.
func DefaultConfig() Config {
	return Config{
		EnableCircuitBreaker: true,
		MaxFailures:          5,
		CircuitTimeout:       30 * time.Second,
		MaxRetries:           3,
		InitialInterval:      500 * time.Millisecond,
		MaxInterval:          5 * time.Second,
	}
}

// New creates a resilient HTTP client. name labels the breaker, logs and metrics.
func New(name string, timeout time.Duration, config Config, log zerolog.Logger) *Client {
	c := &Client{
		name:   name,
		client: &http.Client{Timeout: timeout},
		config: config,
		log:    log.With().Str("client", name).Logger(),
	}

	if config.EnableCircuitBreaker {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    0, // counts are only reset by state changes
			Timeout:     config.CircuitTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.MaxFailures
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				c.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
				if to == gobreaker.StateOpen {
					metrics.RecordUpstreamError(name, "circuit_open")
				}
			},
		})
	}

	return c
}

// Do executes an HTTP request with circuit breaker and retry logic.
// Any status >= 400 is returned as an error with the body closed.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.doWithRetry(req)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doWithRetry(req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordUpstreamError(c.name, "circuit_open")
			return nil, fmt.Errorf("circuit breaker is open: %w", err)
		}
		return nil, err
	}

	return result.(*http.Response), nil
}

// State reports the breaker state, "disabled" when there is no breaker.
func (c *Client) State() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

func (c *Client) doWithRetry(req *http.Request) (*http.Response, error) {
	if c.config.MaxRetries == 0 {
		resp, err := c.client.Do(req)
		if err != nil {
			c.recordRequestError(err)
			return nil, err
		}
		if resp.StatusCode >= 400 {
			c.recordErrorFromResponse(resp)
			resp.Body.Close()
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		}
		return resp, nil
	}

	// Buffer the body once so every attempt can replay it
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body.Close()
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.config.InitialInterval
	expBackoff.MaxInterval = c.config.MaxInterval
	expBackoff.Multiplier = 2.0
	expBackoff.MaxElapsedTime = 0 // bounded by MaxRetries only

	retryBackoff := backoff.WithContext(
		backoff.WithMaxRetries(expBackoff, uint64(c.config.MaxRetries)),
		req.Context(),
	)

	var resp *http.Response
	var lastErr error
	attempt := 0

	operation := func() error {
		attempt++
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		var err error
		resp, err = c.client.Do(req)
		if err != nil {
			lastErr = err
			c.recordRequestError(err)
			if shouldRetry(err, nil) {
				c.log.Debug().Err(err).Int("attempt", attempt).Msg("retrying request")
				return err
			}
			return backoff.Permanent(err)
		}

		if shouldRetry(nil, resp) {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			c.recordErrorFromResponse(resp)
			resp.Body.Close()
			c.log.Debug().Int("status", resp.StatusCode).Int("attempt", attempt).Msg("retrying request")
			return lastErr
		}

		// 4xx is not retried
		if resp.StatusCode >= 400 {
			c.recordErrorFromResponse(resp)
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			return backoff.Permanent(lastErr)
		}

		return nil
	}

	if err := backoff.Retry(operation, retryBackoff); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return nil, fmt.Errorf("request failed after %d attempts: %w", attempt, lastErr)
	}

	return resp, nil
}

func shouldRetry(err error, resp *http.Response) bool {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		msg := err.Error()
		return strings.Contains(msg, "connection refused") ||
			strings.Contains(msg, "connection reset") ||
			strings.Contains(msg, "EOF")
	}

	if resp != nil {
		switch resp.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
			http.StatusBadGateway,
			http.StatusInternalServerError:
			return true
		}
	}

	return false
}

func (c *Client) recordRequestError(err error) {
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
		metrics.RecordUpstreamError(c.name, "timeout")
		return
	}
	metrics.RecordUpstreamError(c.name, "connection")
}

func (c *Client) recordErrorFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		metrics.RecordUpstreamError(c.name, "auth")
	case http.StatusTooManyRequests:
		metrics.RecordUpstreamError(c.name, "rate_limit")
	case http.StatusRequestTimeout:
		metrics.RecordUpstreamError(c.name, "timeout")
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		metrics.RecordUpstreamError(c.name, "server_error")
	default:
		metrics.RecordUpstreamError(c.name, "http_error")
	}
}

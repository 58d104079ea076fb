package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"
)

// HTTPBackend is the base implementation for HTTP-based backend adapters.
// It provides connection pooling, retry logic, timeout handling, and
// health bookkeeping.
//
// Concrete adapters (OpenAI, Anthropic, local) embed this struct and
// implement the Backend interface methods on top of DoRequest/DoJSONRequest.
type HTTPBackend struct {
	// config contains the backend configuration
	config Config

	// client is the HTTP client with connection pooling
	client *http.Client

	// health tracks the backend's request-level health
	health BackendHealth

	// healthMu protects concurrent access to health
	healthMu sync.RWMutex
}

// NewHTTPBackend creates a new base HTTP backend with connection pooling.
func NewHTTPBackend(config Config) *HTTPBackend {
	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		DisableCompression:  false,
		ForceAttemptHTTP2:   true,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}

	return &HTTPBackend{
		config: config,
		client: client,
		health: BackendHealth{
			Healthy:     true, // start optimistic
			LastCheck:   time.Now(),
			LastSuccess: time.Now(),
		},
	}
}

// Name returns the backend's configured name.
func (b *HTTPBackend) Name() string {
	return b.config.Name
}

// Kind returns the backend family.
func (b *HTTPBackend) Kind() Kind {
	return b.config.Kind
}

// Config returns the backend's configuration.
func (b *HTTPBackend) Config() Config {
	return b.config
}

// Health returns the backend's request-level health bookkeeping.
func (b *HTTPBackend) Health() BackendHealth {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()
	return b.health
}

// updateHealth updates the backend's health after a request outcome.
func (b *HTTPBackend) updateHealth(success bool, err error) {
	b.healthMu.Lock()
	defer b.healthMu.Unlock()

	b.health.LastCheck = time.Now()

	if success {
		b.health.Healthy = true
		b.health.ConsecutiveFailures = 0
		b.health.LastError = nil
		b.health.LastSuccess = time.Now()
	} else {
		b.health.ConsecutiveFailures++
		b.health.LastError = err

		// Mark unhealthy after 3 consecutive failures
		if b.health.ConsecutiveFailures >= 3 {
			b.health.Healthy = false
			slog.Warn("backend marked unhealthy",
				"backend", b.config.Name,
				"consecutive_failures", b.health.ConsecutiveFailures,
				"error", err,
			)
		}
	}
}

// recordRequest records request totals.
func (b *HTTPBackend) recordRequest(success bool) {
	b.healthMu.Lock()
	defer b.healthMu.Unlock()

	b.health.TotalRequests++
	if !success {
		b.health.FailedRequests++
	}
}

// DoRequest performs an HTTP request with retry logic and timeout
// handling. Transient errors (network failures, 5xx) are retried with
// exponential backoff; auth errors, rate limits, and 4xx are not.
func (b *HTTPBackend) DoRequest(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= b.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			slog.Debug("retrying request",
				"backend", b.config.Name,
				"attempt", attempt,
				"max_retries", b.config.MaxRetries,
				"backoff", backoff,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		for key, value := range headers {
			req.Header.Set(key, value)
		}
		if req.Header.Get("Content-Type") == "" && body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := b.client.Do(req)
		if err != nil {
			lastErr = err
			b.recordRequest(false)

			if ctx.Err() != nil {
				// Don't retry either way, but only a deadline becomes a
				// TimeoutError; a caller hanging up is not a backend fault.
				if errors.Is(ctx.Err(), context.Canceled) {
					return nil, ctx.Err()
				}
				return nil, &TimeoutError{
					Backend: b.config.Name,
					Timeout: b.config.Timeout,
				}
			}

			slog.Warn("request failed, will retry",
				"backend", b.config.Name,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			b.recordRequest(true)
			b.updateHealth(true, nil)
			return resp, nil
		}

		errorBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			// Credential problem - don't retry, don't trip the breaker
			b.recordRequest(false)
			return nil, &AuthError{
				Backend: b.config.Name,
				Message: string(errorBody),
			}

		case http.StatusTooManyRequests:
			b.recordRequest(false)
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			return nil, &RateLimitError{
				Backend:    b.config.Name,
				RetryAfter: retryAfter,
				Message:    string(errorBody),
			}

		case http.StatusBadRequest:
			b.recordRequest(false)
			return nil, &CallError{
				Backend:    b.config.Name,
				StatusCode: resp.StatusCode,
				Message:    string(errorBody),
			}

		default:
			// Server error (5xx) - retry
			lastErr = &CallError{
				Backend:    b.config.Name,
				StatusCode: resp.StatusCode,
				Message:    string(errorBody),
			}
			b.recordRequest(false)

			slog.Warn("request returned error status, will retry",
				"backend", b.config.Name,
				"status", resp.StatusCode,
				"attempt", attempt+1,
			)
		}
	}

	b.updateHealth(false, lastErr)
	return nil, lastErr
}

// DoJSONRequest performs a JSON request and decodes the response body.
func (b *HTTPBackend) DoJSONRequest(ctx context.Context, method, url string, reqBody, respBody interface{}, headers map[string]string) error {
	var bodyBytes []byte
	var err error
	if reqBody != nil {
		bodyBytes, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	resp, err := b.DoRequest(ctx, method, url, bodyBytes, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ParseError{
			Backend: b.config.Name,
			Cause:   fmt.Errorf("failed to read response: %w", err),
		}
	}

	if respBody != nil && len(responseBytes) > 0 {
		if err := json.Unmarshal(responseBytes, respBody); err != nil {
			return &ParseError{
				Backend:     b.config.Name,
				RawResponse: string(responseBytes),
				Cause:       fmt.Errorf("failed to unmarshal response: %w", err),
			}
		}
	}

	return nil
}

// Close closes idle HTTP connections.
func (b *HTTPBackend) Close() error {
	b.client.CloseIdleConnections()
	slog.Info("backend closed", "backend", b.config.Name)
	return nil
}

// parseRetryAfter parses the Retry-After header value.
// It supports both delay-seconds and HTTP-date formats.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	var seconds int
	if _, err := fmt.Sscanf(header, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}

	return 0
}

package backends

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrEmbeddingsUnsupported is returned by backends that do not implement
// the embedding operation.
var ErrEmbeddingsUnsupported = errors.New("backend does not support embeddings")

// CallError represents a failed backend call (network failure, 4xx/5xx
// response). It is the error category the circuit breaker counts toward
// opening.
type CallError struct {
	// Backend is the name of the backend that returned the error
	Backend string

	// StatusCode is the HTTP status code (0 if not applicable)
	StatusCode int

	// Message is the error message
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("backend %q call failed (status %d): %s", e.Backend, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend %q call failed: %s", e.Backend, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *CallError) Unwrap() error {
	return e.Cause
}

// AuthError represents an authentication failure (HTTP 401 or 403).
// Auth errors indicate misconfiguration, not backend unhealthiness, and
// are never counted by the circuit breaker.
type AuthError struct {
	// Backend is the name of the backend that rejected authentication
	Backend string

	// Message is the error message from the backend
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("backend %q authentication failed: %s", e.Backend, e.Message)
}

// RateLimitError represents a rate limit exceeded error (HTTP 429).
// It includes the retry-after duration if reported by the backend.
type RateLimitError struct {
	// Backend is the name of the backend that rate limited the request
	Backend string

	// RetryAfter is the duration to wait before retrying (if provided)
	RetryAfter time.Duration

	// Message is the error message from the backend
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("backend %q rate limit exceeded (retry after %s): %s",
			e.Backend, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("backend %q rate limit exceeded: %s", e.Backend, e.Message)
}

// TimeoutError represents a request that exceeded the configured timeout.
// Timeouts count as breaker failures.
type TimeoutError struct {
	// Backend is the name of the backend where the timeout occurred
	Backend string

	// Timeout is the configured timeout duration
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("backend %q request timeout after %s", e.Backend, e.Timeout)
}

// ParseError represents a malformed backend response.
type ParseError struct {
	// Backend is the name of the backend that returned the malformed
	// response
	Backend string

	// RawResponse is the raw response body that failed to parse
	RawResponse string

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("backend %q response parse error: %v", e.Backend, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ModelNotFoundError is returned when a backend is asked to serve a model
// outside its catalog.
type ModelNotFoundError struct {
	// Backend is the name of the backend
	Backend string

	// Model is the requested model identifier
	Model string
}

// Error implements the error interface.
func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("backend %q does not support model %q", e.Backend, e.Model)
}

// ValidationError represents a request validation failure detected before
// any backend call. Validation errors indicate a caller bug and never
// count as breaker failures.
type ValidationError struct {
	// Field is the name of the invalid field
	Field string

	// Message describes what is invalid about the field
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s", e.Field, e.Message)
}

// StreamError represents an error that occurred mid-stream. It is
// delivered through the chunk channel rather than as a return value.
type StreamError struct {
	// Backend is the name of the backend where the error occurred
	Backend string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("backend %q stream error: %s: %v", e.Backend, e.Message, e.Cause)
	}
	return fmt.Sprintf("backend %q stream error: %s", e.Backend, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *StreamError) Unwrap() error {
	return e.Cause
}

// ConfigError represents an invalid backend configuration.
type ConfigError struct {
	// Backend is the name of the backend with invalid configuration
	Backend string

	// Field is the configuration field that is invalid
	Field string

	// Message describes the configuration error
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("backend %q configuration error for field %q: %s",
		e.Backend, e.Field, e.Message)
}

// IsBackendFault reports whether err represents a backend-side failure
// that should count toward opening the circuit breaker. Caller bugs
// (validation, configuration) and credential problems do not qualify;
// they propagate without affecting breaker state.
func IsBackendFault(err error) bool {
	if err == nil {
		return false
	}

	var (
		validationErr *ValidationError
		configErr     *ConfigError
		authErr       *AuthError
		modelErr      *ModelNotFoundError
	)
	switch {
	case errors.As(err, &validationErr),
		errors.As(err, &configErr),
		errors.As(err, &authErr),
		errors.As(err, &modelErr):
		return false
	}

	// A caller abandoning the request says nothing about the backend.
	if errors.Is(err, context.Canceled) {
		return false
	}

	return true
}

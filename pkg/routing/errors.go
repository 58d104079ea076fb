package routing

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoBackends is returned when the router has no registered routes.
var ErrNoBackends = errors.New("no backends registered")

// ModelUnsupportedError is returned when no registered backend can
// serve the requested model, natively or through equivalence remapping.
type ModelUnsupportedError struct {
	// Model is the requested model identifier
	Model string
}

// Error implements the error interface.
func (e *ModelUnsupportedError) Error() string {
	return fmt.Sprintf("no backend supports model %q or an equivalent", e.Model)
}

// ErrNoEmbeddingBackend is returned when no registered backend serves
// embedding traffic.
var ErrNoEmbeddingBackend = errors.New("no backend supports embeddings")

// Attempt records one failed try during a fallback walk.
type Attempt struct {
	// Backend is the backend name that was tried
	Backend string

	// Model is the model the backend would have served
	Model string

	// Err is what went wrong; breaker.ErrOpen when the call was skipped
	Err error
}

// ExhaustedError is returned when every eligible candidate was tried or
// skipped and none succeeded.
type ExhaustedError struct {
	// Model is the originally requested model
	Model string

	// Attempts lists every candidate in the order it was tried
	Attempts []Attempt
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %v", a.Backend, a.Err)
	}
	return fmt.Sprintf("all backends exhausted for model %q: %s",
		e.Model, strings.Join(parts, "; "))
}

// Unwrap returns the final attempt's error so callers can inspect the
// last failure with errors.As and errors.Is.
func (e *ExhaustedError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

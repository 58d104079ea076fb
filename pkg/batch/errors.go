package batch

import (
	"errors"
	"fmt"
)

// ErrNotRunning is returned by Submit when the scheduler has not been
// started or has been stopped. Items pending at shutdown receive a
// failure Result wrapping it.
var ErrNotRunning = errors.New("batch scheduler is not running")

// ErrNilPayload is returned by Submit for an item without a payload.
var ErrNilPayload = errors.New("batch item has no payload")

// ErrBatchPanicked is set on every Result of a batch whose execution
// panicked.
var ErrBatchPanicked = errors.New("batch execution panicked")

// ErrSubmitTimeout is set on the Result handed to a synchronous caller
// whose wait exceeded the submit ceiling. The item itself stays queued.
var ErrSubmitTimeout = errors.New("request timed out")

// ExecutionError reports that a batch failed as a whole. Each item in the
// batch receives a Result whose Err is an ExecutionError wrapping the
// underlying cause.
type ExecutionError struct {
	BatchID string
	Kind    Kind
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("batch %s (%s) failed: %v", e.BatchID, e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

package backends

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsBackendFault(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fault bool
	}{
		{
			name:  "nil error",
			err:   nil,
			fault: false,
		},
		{
			name:  "call error",
			err:   &CallError{Backend: "openai", StatusCode: 500, Message: "boom"},
			fault: true,
		},
		{
			name:  "timeout error",
			err:   &TimeoutError{Backend: "openai", Timeout: time.Second},
			fault: true,
		},
		{
			name:  "rate limit error",
			err:   &RateLimitError{Backend: "openai", Message: "slow down"},
			fault: true,
		},
		{
			name:  "parse error",
			err:   &ParseError{Backend: "openai", Cause: errors.New("bad json")},
			fault: true,
		},
		{
			name:  "validation error",
			err:   &ValidationError{Field: "messages", Message: "empty"},
			fault: false,
		},
		{
			name:  "config error",
			err:   &ConfigError{Backend: "openai", Field: "api_key", Message: "missing"},
			fault: false,
		},
		{
			name:  "auth error",
			err:   &AuthError{Backend: "openai", Message: "bad key"},
			fault: false,
		},
		{
			name:  "model not found error",
			err:   &ModelNotFoundError{Backend: "openai", Model: "gpt-9"},
			fault: false,
		},
		{
			name:  "wrapped validation error",
			err:   fmt.Errorf("request rejected: %w", &ValidationError{Field: "model", Message: "unknown"}),
			fault: false,
		},
		{
			name:  "wrapped call error",
			err:   fmt.Errorf("completion failed: %w", &CallError{Backend: "local", Message: "refused"}),
			fault: true,
		},
		{
			name:  "plain error",
			err:   errors.New("connection reset"),
			fault: true,
		},
		{
			name:  "caller cancellation",
			err:   context.Canceled,
			fault: false,
		},
		{
			name:  "wrapped caller cancellation",
			err:   fmt.Errorf("request aborted: %w", context.Canceled),
			fault: false,
		},
		{
			name:  "deadline exceeded",
			err:   context.DeadlineExceeded,
			fault: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBackendFault(tt.err); got != tt.fault {
				t.Errorf("IsBackendFault(%v) = %v, want %v", tt.err, got, tt.fault)
			}
		})
	}
}

func TestCallErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &CallError{Backend: "local", Message: "request failed", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause through Unwrap")
	}
}

func TestStreamErrorMessage(t *testing.T) {
	err := &StreamError{Backend: "anthropic", Message: "read failed", Cause: errors.New("eof")}
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected non-empty message")
	}

	withoutCause := &StreamError{Backend: "anthropic", Message: "read failed"}
	if withoutCause.Error() == msg {
		t.Error("expected different message without cause")
	}
}

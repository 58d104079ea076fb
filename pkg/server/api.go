package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"helioshq/meridian/pkg/backends"
	"helioshq/meridian/pkg/breaker"
	"helioshq/meridian/pkg/routing"
)

// ErrorResponse is the wire shape for all error conditions, compatible
// with OpenAI SDK error parsing.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error body.
type ErrorDetail struct {
	// Message is a human-readable description.
	Message string `json:"message"`

	// Type categorizes the error (invalid_request_error, rate_limit_exceeded,
	// server_error, bad_gateway, service_unavailable, gateway_timeout, ...).
	Type string `json:"type"`

	// Param names the offending request field, when known.
	Param string `json:"param,omitempty"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`
}

// Error type constants matching the OpenAI API error taxonomy.
const (
	errorTypeInvalidRequest     = "invalid_request_error"
	errorTypeAuthentication     = "authentication_error"
	errorTypeNotFound           = "not_found"
	errorTypeRateLimitExceeded  = "rate_limit_exceeded"
	errorTypeServerError        = "server_error"
	errorTypeBadGateway         = "bad_gateway"
	errorTypeServiceUnavailable = "service_unavailable"
	errorTypeGatewayTimeout     = "gateway_timeout"
)

func newErrorResponse(message, errType, param, code string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{
		Message: message,
		Type:    errType,
		Param:   param,
		Code:    code,
	}}
}

// httpStatus maps an error type to its HTTP status code.
func (d *ErrorDetail) httpStatus() int {
	switch d.Type {
	case errorTypeInvalidRequest:
		return http.StatusBadRequest
	case errorTypeAuthentication:
		return http.StatusUnauthorized
	case errorTypeNotFound:
		return http.StatusNotFound
	case errorTypeRateLimitExceeded:
		return http.StatusTooManyRequests
	case errorTypeBadGateway:
		return http.StatusBadGateway
	case errorTypeServiceUnavailable:
		return http.StatusServiceUnavailable
	case errorTypeGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// classifyError converts a router or backend error into a client-facing
// error response. The mapping follows the backend error taxonomy; an
// exhausted fallback walk is reported through its final attempt.
func classifyError(err error) *ErrorResponse {
	var exhausted *routing.ExhaustedError
	if errors.As(err, &exhausted) {
		if last := errors.Unwrap(exhausted); last != nil {
			inner := classifyError(last)
			inner.Error.Message = exhausted.Error()
			if inner.Error.Type == errorTypeServerError {
				inner.Error.Type = errorTypeServiceUnavailable
				inner.Error.Code = "backend_unavailable"
			}
			return inner
		}
		return newErrorResponse(exhausted.Error(), errorTypeServiceUnavailable, "", "backend_unavailable")
	}

	var (
		validation *backends.ValidationError
		notFound   *backends.ModelNotFoundError
		unsupp     *routing.ModelUnsupportedError
		auth       *backends.AuthError
		rateLimit  *backends.RateLimitError
		timeout    *backends.TimeoutError
		parse      *backends.ParseError
	)
	switch {
	case errors.As(err, &validation):
		return newErrorResponse(validation.Error(), errorTypeInvalidRequest, validation.Field, "invalid_value")
	case errors.As(err, &unsupp):
		return newErrorResponse(unsupp.Error(), errorTypeNotFound, "model", "model_not_found")
	case errors.As(err, &notFound):
		return newErrorResponse(notFound.Error(), errorTypeNotFound, "model", "model_not_found")
	case errors.As(err, &auth):
		return newErrorResponse(auth.Error(), errorTypeAuthentication, "", "backend_auth_failed")
	case errors.As(err, &rateLimit):
		return newErrorResponse(rateLimit.Error(), errorTypeRateLimitExceeded, "", "backend_rate_limited")
	case errors.As(err, &timeout):
		return newErrorResponse(timeout.Error(), errorTypeGatewayTimeout, "", "backend_timeout")
	case errors.Is(err, context.DeadlineExceeded):
		return newErrorResponse("request timed out", errorTypeGatewayTimeout, "", "request_timeout")
	case errors.As(err, &parse):
		return newErrorResponse(parse.Error(), errorTypeBadGateway, "", "backend_error")
	case errors.Is(err, breaker.ErrOpen),
		errors.Is(err, routing.ErrNoBackends),
		errors.Is(err, routing.ErrNoEmbeddingBackend):
		return newErrorResponse(err.Error(), errorTypeServiceUnavailable, "", "backend_unavailable")
	default:
		return newErrorResponse(err.Error(), errorTypeServerError, "", "internal_error")
	}
}

// errorType names an error category for the metrics collector.
func errorType(err error) string {
	return classifyError(err).Error.Code
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, errResp *ErrorResponse) error {
	return writeJSON(w, errResp.Error.httpStatus(), errResp)
}

// setSSEHeaders prepares the response for Server-Sent Events streaming.
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// writeSSEEvent writes one "data: <json>\n\n" event and flushes it.
func writeSSEEvent(w http.ResponseWriter, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal SSE event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write SSE event: %w", err)
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// writeSSEDone writes the terminal [DONE] sentinel.
func writeSSEDone(w http.ResponseWriter) error {
	if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("write SSE done marker: %w", err)
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

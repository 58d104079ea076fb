package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"helioshq/meridian/pkg/backends"
)

// streamReader reads Server-Sent Events from the chat completions stream.
type streamReader struct {
	backend *backends.HTTPBackend
	body    io.ReadCloser
	scanner *bufio.Scanner
	closed  bool
}

// newStreamReader opens the SSE stream for a chat request.
func newStreamReader(ctx context.Context, backend *backends.HTTPBackend, url string, req *chatRequest, headers map[string]string) (*streamReader, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := backend.DoRequest(ctx, "POST", url, bodyBytes, headers)
	if err != nil {
		return nil, err
	}

	return &streamReader{
		backend: backend,
		body:    resp.Body,
		scanner: bufio.NewScanner(resp.Body),
	}, nil
}

// Read reads the next chunk from the stream.
// Returns nil, io.EOF when the stream ends normally.
func (s *streamReader) Read(ctx context.Context) (*backends.StreamChunk, error) {
	if s.closed {
		return nil, io.EOF
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, &backends.StreamError{
					Backend: s.backend.Name(),
					Message: "failed to read stream",
					Cause:   err,
				}
			}
			return nil, io.EOF
		}

		line := s.scanner.Text()
		if line == "" {
			continue
		}

		// Skip non-data lines (comments, event types)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		if data == "[DONE]" {
			return nil, io.EOF
		}

		var wire streamResponse
		if err := json.Unmarshal([]byte(data), &wire); err != nil {
			return nil, &backends.ParseError{
				Backend:     s.backend.Name(),
				RawResponse: data,
				Cause:       fmt.Errorf("failed to parse stream chunk: %w", err),
			}
		}

		chunk, err := transformStreamChunk(&wire)
		if err != nil {
			return nil, &backends.ParseError{
				Backend: s.backend.Name(),
				Cause:   err,
			}
		}

		return chunk, nil
	}
}

// Close closes the stream and releases resources.
func (s *streamReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

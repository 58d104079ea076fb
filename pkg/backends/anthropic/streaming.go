package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"helioshq/meridian/pkg/backends"
)

// streamReader reads Server-Sent Events from the Messages API stream.
type streamReader struct {
	backend *backends.HTTPBackend
	body    io.ReadCloser
	scanner *bufio.Scanner
	state   *streamState
	closed  bool
}

// newStreamReader opens the streaming request and wraps the response body.
func newStreamReader(ctx context.Context, backend *backends.HTTPBackend, url string, req *messagesRequest, headers map[string]string) (*streamReader, error) {
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
		state:   &streamState{},
	}, nil
}

// Read returns the next chunk from the stream, or io.EOF when the stream
// ends normally.
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

		event, err := s.readEvent()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, &backends.StreamError{
				Backend: s.backend.Name(),
				Message: "failed to read stream",
				Cause:   err,
			}
		}

		if event.Type == "message_stop" {
			return nil, io.EOF
		}

		chunk, err := transformStreamChunk(event, s.state)
		if err != nil {
			return nil, &backends.ParseError{
				Backend: s.backend.Name(),
				Cause:   err,
			}
		}
		if chunk == nil {
			continue
		}

		return chunk, nil
	}
}

// readEvent reads one complete SSE event (event + data lines up to the
// blank separator).
func (s *streamReader) readEvent() (*streamEvent, error) {
	var eventType string
	var dataLines []string

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if line == "" {
			if eventType != "" || len(dataLines) > 0 {
				break
			}
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			eventType = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		}
		// Other SSE fields (id, retry) are ignored
	}

	if err := s.scanner.Err(); err != nil {
		return nil, err
	}

	if eventType == "" && len(dataLines) == 0 {
		return nil, io.EOF
	}

	var event streamEvent
	if len(dataLines) > 0 {
		data := strings.Join(dataLines, "\n")
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return nil, &backends.ParseError{
				Backend:     s.backend.Name(),
				RawResponse: data,
				Cause:       fmt.Errorf("failed to parse stream event: %w", err),
			}
		}
	}

	if eventType != "" && event.Type == "" {
		event.Type = eventType
	}

	return &event, nil
}

// Close closes the stream and releases the connection.
func (s *streamReader) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

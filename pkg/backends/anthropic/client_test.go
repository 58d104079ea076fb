package anthropic

import (
	"context"
	"errors"
	"testing"

	testhelpers "helioshq/meridian/internal/backends"
	"helioshq/meridian/pkg/backends"
)

func TestComplete(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/messages", testhelpers.MockResponse{
		StatusCode: 200,
		Body:       testhelpers.MessagesResponse("Hello from Claude", backends.ModelClaudeSonnet),
	})

	backend, err := New(testhelpers.TestConfigWithURL("anthropic", backends.KindAnthropic, mock.URL()))
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	defer backend.Close()

	req := testhelpers.TestCompletionRequest(backends.ModelClaudeSonnet,
		backends.Message{Role: backends.RoleUser, Content: "Hello"},
	)

	resp, err := backend.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Content != "Hello from Claude" {
		t.Errorf("expected content %q, got %q", "Hello from Claude", resp.Content)
	}
	if resp.Backend != backends.KindAnthropic {
		t.Errorf("expected backend kind anthropic, got %s", resp.Backend)
	}
	if resp.FinishReason != backends.FinishReasonStop {
		t.Errorf("expected finish reason stop, got %q", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 30 {
		t.Errorf("expected total tokens 30, got %d", resp.Usage.TotalTokens)
	}

	if key := mock.LastHeader("x-api-key"); key != "test-key" {
		t.Errorf("expected x-api-key header, got %q", key)
	}
	if version := mock.LastHeader("anthropic-version"); version != DefaultAPIVersion {
		t.Errorf("expected anthropic-version %q, got %q", DefaultAPIVersion, version)
	}
}

func TestCompleteExtractsSystemPrompt(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/messages", testhelpers.MockResponse{
		StatusCode: 200,
		Body:       testhelpers.MessagesResponse("ok", backends.ModelClaudeSonnet),
	})

	backend, err := New(testhelpers.TestConfigWithURL("anthropic", backends.KindAnthropic, mock.URL()))
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	defer backend.Close()

	req := testhelpers.TestCompletionRequest(backends.ModelClaudeSonnet,
		backends.Message{Role: backends.RoleSystem, Content: "You are terse."},
		backends.Message{Role: backends.RoleUser, Content: "Hello"},
	)

	if _, err := backend.Complete(context.Background(), req); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
}

func TestTransformRequestRejectsNonAlternating(t *testing.T) {
	req := &backends.CompletionRequest{
		Messages: []backends.Message{
			{Role: backends.RoleUser, Content: "one"},
			{Role: backends.RoleUser, Content: "two"},
		},
	}

	_, err := transformRequest(req, backends.ModelClaudeSonnet)

	var validationErr *backends.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
}

func TestTransformRequestRejectsAssistantFirst(t *testing.T) {
	req := &backends.CompletionRequest{
		Messages: []backends.Message{
			{Role: backends.RoleAssistant, Content: "hi"},
		},
	}

	_, err := transformRequest(req, backends.ModelClaudeSonnet)

	var validationErr *backends.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
}

func TestTransformRequestDefaultsMaxTokens(t *testing.T) {
	req := &backends.CompletionRequest{
		Messages: []backends.Message{
			{Role: backends.RoleUser, Content: "hi"},
		},
	}

	wire, err := transformRequest(req, backends.ModelClaudeSonnet)
	if err != nil {
		t.Fatalf("transformRequest failed: %v", err)
	}
	if wire.MaxTokens != 4096 {
		t.Errorf("expected default max_tokens 4096, got %d", wire.MaxTokens)
	}
}

func TestStreamCompletion(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/messages", testhelpers.MockResponse{
		StatusCode: 200,
		StreamEvents: []string{
			testhelpers.MessagesStreamEvent("message_start", map[string]interface{}{
				"type": "message_start",
				"message": map[string]interface{}{
					"id":    "msg_123",
					"model": backends.ModelClaudeSonnet,
					"usage": map[string]interface{}{"input_tokens": 10},
				},
			}),
			testhelpers.MessagesStreamEvent("content_block_delta", map[string]interface{}{
				"type":  "content_block_delta",
				"index": 0,
				"delta": map[string]interface{}{"type": "text_delta", "text": "Hello"},
			}),
			testhelpers.MessagesStreamEvent("content_block_delta", map[string]interface{}{
				"type":  "content_block_delta",
				"index": 0,
				"delta": map[string]interface{}{"type": "text_delta", "text": " world"},
			}),
			testhelpers.MessagesStreamEvent("message_delta", map[string]interface{}{
				"type":  "message_delta",
				"delta": map[string]interface{}{"stop_reason": "end_turn"},
				"usage": map[string]interface{}{"output_tokens": 2},
			}),
			testhelpers.MessagesStreamEvent("message_stop", map[string]interface{}{
				"type": "message_stop",
			}),
		},
	})

	backend, err := New(testhelpers.TestConfigWithURL("anthropic", backends.KindAnthropic, mock.URL()))
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	defer backend.Close()

	req := testhelpers.TestCompletionRequest(backends.ModelClaudeSonnet,
		backends.Message{Role: backends.RoleUser, Content: "Hello"},
	)

	chunks, err := backend.StreamCompletion(context.Background(), req)
	if err != nil {
		t.Fatalf("StreamCompletion failed: %v", err)
	}

	received, err := testhelpers.CollectStreamChunks(t, chunks)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}

	if got := testhelpers.ConcatenateChunks(received); got != "Hello world" {
		t.Errorf("expected content %q, got %q", "Hello world", got)
	}

	last := received[len(received)-1]
	if last.FinishReason != backends.FinishReasonStop {
		t.Errorf("expected finish reason stop, got %q", last.FinishReason)
	}
	if last.Usage == nil || last.Usage.TotalTokens != 12 {
		t.Errorf("expected usage on final chunk, got %+v", last.Usage)
	}
}

func TestEmbedUnsupported(t *testing.T) {
	backend, err := New(testhelpers.TestConfig("anthropic", backends.KindAnthropic))
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	defer backend.Close()

	if backend.SupportsEmbeddings() {
		t.Error("expected SupportsEmbeddings to be false")
	}

	_, err = backend.Embed(context.Background(), &backends.EmbeddingRequest{Texts: []string{"x"}})
	if !errors.Is(err, backends.ErrEmbeddingsUnsupported) {
		t.Fatalf("expected ErrEmbeddingsUnsupported, got %v", err)
	}
}

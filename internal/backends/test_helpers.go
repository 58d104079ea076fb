package backends

import (
	"testing"
	"time"

	"helioshq/meridian/pkg/backends"
)

// TestConfig returns a backend configuration for tests.
func TestConfig(name string, kind backends.Kind) backends.Config {
	return backends.Config{
		Name:                name,
		Kind:                kind,
		BaseURL:             "http://localhost:8080",
		APIKey:              "test-key",
		Timeout:             5 * time.Second,
		MaxRetries:          2,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     30 * time.Second,
	}
}

// TestConfigWithURL returns a test config pointing at a specific base URL.
func TestConfigWithURL(name string, kind backends.Kind, baseURL string) backends.Config {
	config := TestConfig(name, kind)
	config.BaseURL = baseURL
	return config
}

// TestCompletionRequest creates a completion request for tests.
func TestCompletionRequest(model string, messages ...backends.Message) *backends.CompletionRequest {
	return &backends.CompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   100,
	}
}

// CollectStreamChunks drains a stream channel, stopping at the first
// error chunk.
func CollectStreamChunks(t *testing.T, chunks <-chan *backends.StreamChunk) ([]*backends.StreamChunk, error) {
	t.Helper()

	var collected []*backends.StreamChunk
	for chunk := range chunks {
		if chunk.Error != nil {
			return collected, chunk.Error
		}
		collected = append(collected, chunk)
	}
	return collected, nil
}

// ConcatenateChunks joins the delta content from all chunks.
func ConcatenateChunks(chunks []*backends.StreamChunk) string {
	var result string
	for _, chunk := range chunks {
		result += chunk.Delta
	}
	return result
}

// WaitForCondition polls until the condition holds or the timeout expires.
func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s: %s", timeout, message)
		}
		<-ticker.C
	}
}

package local

import (
	"context"
	"testing"

	testhelpers "helioshq/meridian/internal/backends"
	"helioshq/meridian/pkg/backends"
)

func TestNewDefaults(t *testing.T) {
	backend, err := New(backends.Config{})
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	defer backend.Close()

	if backend.Name() != "local" {
		t.Errorf("expected name local, got %s", backend.Name())
	}
	if backend.Kind() != backends.KindLocal {
		t.Errorf("expected kind local, got %s", backend.Kind())
	}
	if backend.DefaultModel() != backends.ModelLlama3_70B {
		t.Errorf("expected default model %s, got %s", backends.ModelLlama3_70B, backend.DefaultModel())
	}
	if !backend.SupportsEmbeddings() {
		t.Error("expected local backend to support embeddings")
	}
}

func TestLocalModelsAreZeroCost(t *testing.T) {
	backend, err := New(backends.Config{})
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	defer backend.Close()

	for _, model := range []string{backends.ModelLlama3_70B, backends.ModelLlama3_8B} {
		info, ok := backend.ModelInfo(model)
		if !ok {
			t.Fatalf("expected model %s in catalog", model)
		}
		if cost := info.Cost(backends.TokenUsage{PromptTokens: 1000, CompletionTokens: 1000}); cost != 0 {
			t.Errorf("expected zero cost for %s, got %f", model, cost)
		}
	}
}

func TestCompleteAgainstLocalServer(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StatusCode: 200,
		Body:       testhelpers.ChatResponse("local says hi", backends.ModelLlama3_8B),
	})

	backend, err := New(backends.Config{Name: "local", BaseURL: mock.URL()})
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	defer backend.Close()

	resp, err := backend.Complete(context.Background(), &backends.CompletionRequest{
		Model: backends.ModelLlama3_8B,
		Messages: []backends.Message{
			{Role: backends.RoleUser, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Backend != backends.KindLocal {
		t.Errorf("expected backend kind local, got %s", resp.Backend)
	}
	if resp.Content != "local says hi" {
		t.Errorf("unexpected content %q", resp.Content)
	}
}

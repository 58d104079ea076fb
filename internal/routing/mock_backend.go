package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"helioshq/meridian/pkg/backends"
)

// MockBackend is a configurable in-memory implementation of the
// backends.Backend interface for testing.
type MockBackend struct {
	mu sync.Mutex

	name           string
	kind           backends.Kind
	catalog        backends.ModelCatalog
	embeddings     bool
	embeddingDims  int
	delay          time.Duration
	failuresLeft   int
	failWith       error
	completions    int
	embedCalls     int
	lastRequest    *backends.CompletionRequest
	responseText   string
	responseTokens backends.TokenUsage
	health         backends.BackendHealth
}

// NewMockBackend creates a healthy mock serving the given models. The
// first model in the list is the default.
func NewMockBackend(name string, kind backends.Kind, models ...string) *MockBackend {
	infos := make(map[string]backends.ModelInfo, len(models))
	for _, m := range models {
		infos[m] = backends.ModelInfo{
			InputCostPer1K:  0.001,
			OutputCostPer1K: 0.002,
			ContextWindow:   8192,
		}
	}
	defaultModel := ""
	if len(models) > 0 {
		defaultModel = models[0]
	}
	return &MockBackend{
		name:         name,
		kind:         kind,
		catalog:      backends.NewModelCatalog(infos, defaultModel),
		responseText: "mock response",
		responseTokens: backends.TokenUsage{
			PromptTokens:     10,
			CompletionTokens: 20,
			TotalTokens:      30,
		},
		health: backends.BackendHealth{Healthy: true},
	}
}

// FailNext makes the next n calls fail with err.
func (m *MockBackend) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failuresLeft = n
	m.failWith = err
}

// SetDelay makes every call sleep before responding.
func (m *MockBackend) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetResponse overrides the completion text and token usage.
func (m *MockBackend) SetResponse(text string, usage backends.TokenUsage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responseText = text
	m.responseTokens = usage
}

// EnableEmbeddings makes the mock serve Embed calls with vectors of the
// given dimensionality.
func (m *MockBackend) EnableEmbeddings(dims int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings = true
	m.embeddingDims = dims
}

// Completions returns the number of Complete calls served so far,
// including failed ones.
func (m *MockBackend) Completions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completions
}

// EmbedCalls returns the number of Embed calls served so far.
func (m *MockBackend) EmbedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls
}

// LastRequest returns the most recent completion request.
func (m *MockBackend) LastRequest() *backends.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

func (m *MockBackend) takeFailure() error {
	if m.failuresLeft > 0 {
		m.failuresLeft--
		if m.failWith != nil {
			return m.failWith
		}
		return fmt.Errorf("backend %s failed", m.name)
	}
	return nil
}

// Complete serves a canned completion response.
func (m *MockBackend) Complete(ctx context.Context, req *backends.CompletionRequest) (*backends.CompletionResponse, error) {
	m.mu.Lock()
	m.completions++
	m.lastRequest = req
	delay := m.delay
	err := m.takeFailure()
	text := m.responseText
	usage := m.responseTokens
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = m.catalog.DefaultModel()
	}

	return &backends.CompletionResponse{
		ID:           fmt.Sprintf("mock-%s-%d", m.name, time.Now().UnixNano()),
		Model:        model,
		Backend:      m.kind,
		Content:      text,
		FinishReason: backends.FinishReasonStop,
		Usage:        usage,
		Created:      time.Now().Unix(),
	}, nil
}

// StreamCompletion yields the canned response as a short chunk stream.
func (m *MockBackend) StreamCompletion(ctx context.Context, req *backends.CompletionRequest) (<-chan *backends.StreamChunk, error) {
	m.mu.Lock()
	m.completions++
	m.lastRequest = req
	err := m.takeFailure()
	text := m.responseText
	usage := m.responseTokens
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = m.catalog.DefaultModel()
	}

	chunks := make(chan *backends.StreamChunk, 2)
	chunks <- &backends.StreamChunk{
		ID:    "mock-stream",
		Model: model,
		Delta: text,
	}
	chunks <- &backends.StreamChunk{
		ID:           "mock-stream",
		Model:        model,
		FinishReason: backends.FinishReasonStop,
		Usage:        &usage,
	}
	close(chunks)

	return chunks, nil
}

// Embed serves deterministic vectors, one per input text.
func (m *MockBackend) Embed(ctx context.Context, req *backends.EmbeddingRequest) (*backends.EmbeddingResponse, error) {
	m.mu.Lock()
	m.embedCalls++
	supported := m.embeddings
	dims := m.embeddingDims
	err := m.takeFailure()
	m.mu.Unlock()

	if !supported {
		return nil, backends.ErrEmbeddingsUnsupported
	}
	if err != nil {
		return nil, err
	}
	if dims == 0 {
		dims = 4
	}

	vectors := make([][]float64, len(req.Texts))
	for i := range req.Texts {
		vec := make([]float64, dims)
		for j := range vec {
			vec[j] = float64(i) + float64(j)/float64(dims)
		}
		vectors[i] = vec
	}

	return &backends.EmbeddingResponse{
		Embeddings: vectors,
		Model:      req.Model,
		Backend:    m.kind,
		Usage: backends.TokenUsage{
			PromptTokens: len(req.Texts) * 5,
			TotalTokens:  len(req.Texts) * 5,
		},
	}, nil
}

// SupportsModel reports whether the model is in the catalog.
func (m *MockBackend) SupportsModel(model string) bool {
	return m.catalog.SupportsModel(model)
}

// ModelInfo returns the cost profile for a model.
func (m *MockBackend) ModelInfo(model string) (backends.ModelInfo, bool) {
	return m.catalog.ModelInfo(model)
}

// DefaultModel returns the default model.
func (m *MockBackend) DefaultModel() string {
	return m.catalog.DefaultModel()
}

// SupportsEmbeddings reports whether embeddings were enabled.
func (m *MockBackend) SupportsEmbeddings() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embeddings
}

// Name returns the backend name.
func (m *MockBackend) Name() string {
	return m.name
}

// Kind returns the backend kind.
func (m *MockBackend) Kind() backends.Kind {
	return m.kind
}

// Health returns the mock health record.
func (m *MockBackend) Health() backends.BackendHealth {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.health
}

// SetHealthy overrides the health record.
func (m *MockBackend) SetHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health.Healthy = healthy
}

// Close is a no-op.
func (m *MockBackend) Close() error {
	return nil
}

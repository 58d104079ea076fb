package openai

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"helioshq/meridian/pkg/backends"
)

// Backend is the OpenAI backend adapter. It implements backends.Backend
// for the chat completions and embeddings endpoints. Through NewCompatible
// it also serves any OpenAI-compatible API surface, such as vLLM, Ollama
// or llama.cpp servers.
type Backend struct {
	*backends.HTTPBackend
	catalog        backends.ModelCatalog
	embeddingModel string
}

// New creates a new OpenAI backend instance.
func New(config backends.Config) (*Backend, error) {
	if config.Name == "" {
		config.Name = "openai"
	}
	config.Kind = backends.KindOpenAI

	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com"
	}
	if config.APIKey == "" {
		return nil, &backends.ConfigError{
			Backend: config.Name,
			Field:   "api_key",
			Message: "API key is required for OpenAI",
		}
	}

	return newBackend(config, backends.NewModelCatalog(catalog, backends.ModelGPT4o), DefaultEmbeddingModel)
}

// NewCompatible creates a backend for an OpenAI-compatible API with its
// own model catalog. An API key is optional; local servers usually run
// without one.
func NewCompatible(config backends.Config, models map[string]backends.ModelInfo, defaultModel, embeddingModel string) (*Backend, error) {
	if config.Name == "" {
		return nil, &backends.ConfigError{
			Backend: "openai-compatible",
			Field:   "name",
			Message: "backend name is required",
		}
	}
	if config.BaseURL == "" {
		return nil, &backends.ConfigError{
			Backend: config.Name,
			Field:   "base_url",
			Message: "base URL is required for OpenAI-compatible backends",
		}
	}
	if config.APIKey == "" {
		config.APIKey = "not-required"
	}

	return newBackend(config, backends.NewModelCatalog(models, defaultModel), embeddingModel)
}

func newBackend(config backends.Config, cat backends.ModelCatalog, embeddingModel string) (*Backend, error) {
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}

	b := &Backend{
		HTTPBackend:    backends.NewHTTPBackend(config),
		catalog:        cat,
		embeddingModel: embeddingModel,
	}

	slog.Info("backend initialized",
		"backend", config.Name,
		"kind", config.Kind,
		"base_url", config.BaseURL,
	)

	return b, nil
}

// SupportsModel reports whether the model is in the catalog.
func (b *Backend) SupportsModel(model string) bool {
	return b.catalog.SupportsModel(model)
}

// ModelInfo returns the cost profile for a model.
func (b *Backend) ModelInfo(model string) (backends.ModelInfo, bool) {
	return b.catalog.ModelInfo(model)
}

// DefaultModel returns the default chat model.
func (b *Backend) DefaultModel() string {
	return b.catalog.DefaultModel()
}

// SupportsEmbeddings reports whether an embedding model is configured.
func (b *Backend) SupportsEmbeddings() bool {
	return b.embeddingModel != ""
}

// Complete sends a chat completion request.
func (b *Backend) Complete(ctx context.Context, req *backends.CompletionRequest) (*backends.CompletionResponse, error) {
	model, err := b.resolveModel(req)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/chat/completions", b.Config().BaseURL)

	var wire chatResponse
	if err := b.DoJSONRequest(ctx, "POST", url, transformRequest(req, model), &wire, b.headers()); err != nil {
		return nil, err
	}

	resp, err := transformResponse(&wire)
	if err != nil {
		return nil, &backends.ParseError{
			Backend: b.Name(),
			Cause:   err,
		}
	}
	resp.Backend = b.Kind()

	slog.Debug("completion request succeeded",
		"backend", b.Name(),
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
	)

	return resp, nil
}

// StreamCompletion sends a streaming chat completion request.
func (b *Backend) StreamCompletion(ctx context.Context, req *backends.CompletionRequest) (<-chan *backends.StreamChunk, error) {
	model, err := b.resolveModel(req)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	wireReq := transformRequest(req, model)
	wireReq.Stream = true

	url := fmt.Sprintf("%s/v1/chat/completions", b.Config().BaseURL)
	stream, err := newStreamReader(ctx, b.HTTPBackend, url, wireReq, b.headers())
	if err != nil {
		return nil, err
	}

	chunks := make(chan *backends.StreamChunk, 100)

	go func() {
		defer close(chunks)
		defer stream.Close()

		for {
			chunk, err := stream.Read(ctx)
			if err != nil {
				if err != io.EOF {
					chunks <- &backends.StreamChunk{Error: err}
				}
				return
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}

			if chunk.FinishReason != "" {
				return
			}
		}
	}()

	return chunks, nil
}

// Embed generates one vector per input text.
func (b *Backend) Embed(ctx context.Context, req *backends.EmbeddingRequest) (*backends.EmbeddingResponse, error) {
	if len(req.Texts) == 0 {
		return nil, &backends.ValidationError{
			Field:   "texts",
			Message: "at least one text is required",
		}
	}

	model := req.Model
	if model == "" {
		model = b.embeddingModel
	}
	if model == "" {
		return nil, &backends.ValidationError{
			Field:   "model",
			Message: "backend has no embedding model",
		}
	}

	url := fmt.Sprintf("%s/v1/embeddings", b.Config().BaseURL)
	wireReq := &embeddingsRequest{
		Model: model,
		Input: req.Texts,
		User:  req.User,
	}

	var wire embeddingsResponse
	if err := b.DoJSONRequest(ctx, "POST", url, wireReq, &wire, b.headers()); err != nil {
		return nil, err
	}

	if len(wire.Data) != len(req.Texts) {
		return nil, &backends.ParseError{
			Backend: b.Name(),
			Cause:   fmt.Errorf("expected %d embeddings, got %d", len(req.Texts), len(wire.Data)),
		}
	}

	// The API returns vectors with explicit indices; restore input order.
	embeddings := make([][]float64, len(wire.Data))
	for _, d := range wire.Data {
		if d.Index < 0 || d.Index >= len(embeddings) {
			return nil, &backends.ParseError{
				Backend: b.Name(),
				Cause:   fmt.Errorf("embedding index %d out of range", d.Index),
			}
		}
		embeddings[d.Index] = d.Embedding
	}

	return &backends.EmbeddingResponse{
		Embeddings: embeddings,
		Model:      wire.Model,
		Backend:    b.Kind(),
		Usage: backends.TokenUsage{
			PromptTokens: wire.Usage.PromptTokens,
			TotalTokens:  wire.Usage.TotalTokens,
		},
	}, nil
}

// resolveModel picks the request model or the default, rejecting models
// outside the catalog.
func (b *Backend) resolveModel(req *backends.CompletionRequest) (string, error) {
	if req == nil {
		return "", &backends.ValidationError{
			Field:   "request",
			Message: "request cannot be nil",
		}
	}
	if req.Model == "" {
		return b.catalog.DefaultModel(), nil
	}
	if !b.catalog.SupportsModel(req.Model) {
		return "", &backends.ModelNotFoundError{
			Backend: b.Name(),
			Model:   req.Model,
		}
	}
	return req.Model, nil
}

// headers returns the authenticated request headers.
func (b *Backend) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + b.Config().APIKey,
		"Content-Type":  "application/json",
	}
}

// validateRequest validates the completion request.
func validateRequest(req *backends.CompletionRequest) error {
	if len(req.Messages) == 0 {
		return &backends.ValidationError{
			Field:   "messages",
			Message: "at least one message is required",
		}
	}
	return nil
}

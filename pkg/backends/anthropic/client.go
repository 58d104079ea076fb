package anthropic

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"helioshq/meridian/pkg/backends"
)

// DefaultAPIVersion is the Messages API version sent with every request.
const DefaultAPIVersion = "2023-06-01"

// Backend is the Anthropic backend adapter. It implements backends.Backend
// for the Messages API. Anthropic serves no embeddings endpoint; Embed
// always fails with backends.ErrEmbeddingsUnsupported.
type Backend struct {
	*backends.HTTPBackend
	catalog backends.ModelCatalog
}

// New creates a new Anthropic backend instance.
func New(config backends.Config) (*Backend, error) {
	if config.Name == "" {
		config.Name = "anthropic"
	}
	config.Kind = backends.KindAnthropic

	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com"
	}
	if config.APIKey == "" {
		return nil, &backends.ConfigError{
			Backend: config.Name,
			Field:   "api_key",
			Message: "API key is required for Anthropic",
		}
	}
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
		HTTPBackend: backends.NewHTTPBackend(config),
		catalog:     backends.NewModelCatalog(catalog, backends.ModelClaudeSonnet),
	}

	slog.Info("anthropic backend initialized",
		"backend", config.Name,
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

// SupportsEmbeddings reports that this backend serves no embedding traffic.
func (b *Backend) SupportsEmbeddings() bool {
	return false
}

// Complete sends a messages request.
func (b *Backend) Complete(ctx context.Context, req *backends.CompletionRequest) (*backends.CompletionResponse, error) {
	model, err := b.resolveModel(req)
	if err != nil {
		return nil, err
	}

	wireReq, err := transformRequest(req, model)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/messages", b.Config().BaseURL)

	var wire messagesResponse
	if err := b.DoJSONRequest(ctx, "POST", url, wireReq, &wire, b.headers()); err != nil {
		return nil, err
	}

	resp, err := transformResponse(&wire)
	if err != nil {
		return nil, &backends.ParseError{
			Backend: b.Name(),
			Cause:   err,
		}
	}

	slog.Debug("completion request succeeded",
		"backend", b.Name(),
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
	)

	return resp, nil
}

// StreamCompletion sends a streaming messages request.
func (b *Backend) StreamCompletion(ctx context.Context, req *backends.CompletionRequest) (<-chan *backends.StreamChunk, error) {
	model, err := b.resolveModel(req)
	if err != nil {
		return nil, err
	}

	wireReq, err := transformRequest(req, model)
	if err != nil {
		return nil, err
	}
	wireReq.Stream = true

	headers := b.headers()
	headers["Accept"] = "text/event-stream"

	url := fmt.Sprintf("%s/v1/messages", b.Config().BaseURL)
	stream, err := newStreamReader(ctx, b.HTTPBackend, url, wireReq, headers)
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

// Embed always fails: the Messages API has no embeddings endpoint.
func (b *Backend) Embed(ctx context.Context, req *backends.EmbeddingRequest) (*backends.EmbeddingResponse, error) {
	return nil, backends.ErrEmbeddingsUnsupported
}

func (b *Backend) resolveModel(req *backends.CompletionRequest) (string, error) {
	if req == nil {
		return "", &backends.ValidationError{
			Field:   "request",
			Message: "request cannot be nil",
		}
	}
	if len(req.Messages) == 0 {
		return "", &backends.ValidationError{
			Field:   "messages",
			Message: "at least one message is required",
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

func (b *Backend) headers() map[string]string {
	return map[string]string{
		"x-api-key":         b.Config().APIKey,
		"anthropic-version": DefaultAPIVersion,
		"Content-Type":      "application/json",
	}
}

package backends

import "context"

// Backend is the core interface that all LLM backend adapters must
// implement. It provides a unified abstraction over the configured
// services (cloud APIs and the local inference engine).
//
// All methods accept a context.Context for cancellation and timeout
// control. Implementations must respect context cancellation and return
// promptly when the context is cancelled.
//
// Example usage:
//
//	backend, err := openai.New(cfg)
//	if err != nil {
//	    return err
//	}
//
//	req := &backends.CompletionRequest{
//	    Model: "gpt-4o",
//	    Messages: []backends.Message{
//	        {Role: backends.RoleUser, Content: "Hello!"},
//	    },
//	}
//
//	resp, err := backend.Complete(ctx, req)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(resp.Content)
type Backend interface {
	// Complete sends a completion request and returns the normalized
	// response. The request is transformed to the backend-specific wire
	// format; the response is normalized back.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// StreamCompletion sends a streaming completion request. It returns a
	// channel that yields incremental fragments as they arrive.
	//
	// The caller must read from the channel until it closes. If an error
	// occurs mid-stream it is delivered as the final chunk's Error field.
	// Cancelling the context closes the stream.
	StreamCompletion(ctx context.Context, req *CompletionRequest) (<-chan *StreamChunk, error)

	// Embed generates one vector per input text, in input order.
	// Backends that do not support embeddings return ErrEmbeddingsUnsupported.
	Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)

	// SupportsModel reports whether the backend can serve the given
	// abstract model identifier.
	SupportsModel(model string) bool

	// ModelInfo returns the cost/latency profile for a model.
	// The second return value is false if the model is not in the
	// backend's catalog.
	ModelInfo(model string) (ModelInfo, bool)

	// DefaultModel returns the model used when a request does not name one.
	DefaultModel() string

	// SupportsEmbeddings reports whether the backend advertises embedding
	// support. The router restricts embedding traffic to these backends.
	SupportsEmbeddings() bool

	// Name returns the backend's configured name (e.g. "openai").
	Name() string

	// Kind returns the backend family.
	Kind() Kind

	// Health returns the backend's request-level health bookkeeping.
	Health() BackendHealth

	// Close releases resources (HTTP connections, etc.). The backend must
	// not be used after Close.
	Close() error
}

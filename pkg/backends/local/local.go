// Package local adapts an on-box OpenAI-compatible inference server
// (vLLM, Ollama, llama.cpp and the like) as a backend. Local models cost
// nothing to run per token, which makes this backend the terminal
// fallback for cost-aware routing.
package local

import (
	"log/slog"

	"helioshq/meridian/pkg/backends"
	"helioshq/meridian/pkg/backends/openai"
)

// catalog lists the models the bundled inference server loads. All local
// models are zero-cost.
var catalog = map[string]backends.ModelInfo{
	backends.ModelLlama3_70B: {
		ContextWindow: 8192,
	},
	backends.ModelLlama3_8B: {
		ContextWindow: 8192,
	},
	backends.ModelEmbeddingLocal: {
		ContextWindow: 512,
		Embeddings:    true,
	},
}

// Backend serves completions and embeddings from a local inference
// server speaking the OpenAI wire format.
type Backend struct {
	*openai.Backend
}

// New creates a new local backend instance.
func New(config backends.Config) (*Backend, error) {
	if config.Name == "" {
		config.Name = "local"
	}
	config.Kind = backends.KindLocal

	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080"
	}
	// Local servers rarely benefit from retries or large pools.
	if config.MaxRetries == 0 {
		config.MaxRetries = 1
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 10
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 5
	}

	inner, err := openai.NewCompatible(config, catalog, backends.ModelLlama3_70B, backends.ModelEmbeddingLocal)
	if err != nil {
		return nil, err
	}

	slog.Info("local backend initialized",
		"backend", config.Name,
		"base_url", config.BaseURL,
	)

	return &Backend{Backend: inner}, nil
}

package openai

import "helioshq/meridian/pkg/backends"

// catalog lists the models served through the OpenAI-compatible API with
// their USD-per-1K-token pricing.
var catalog = map[string]backends.ModelInfo{
	backends.ModelGPT4o: {
		InputCostPer1K:  0.005,
		OutputCostPer1K: 0.015,
		ContextWindow:   128000,
	},
	backends.ModelGPT4Turbo: {
		InputCostPer1K:  0.01,
		OutputCostPer1K: 0.03,
		ContextWindow:   128000,
	},
	backends.ModelGPT35Turbo: {
		InputCostPer1K:  0.0005,
		OutputCostPer1K: 0.0015,
		ContextWindow:   16385,
	},
	backends.ModelEmbedding3Small: {
		InputCostPer1K: 0.00002,
		ContextWindow:  8191,
		Embeddings:     true,
	},
	backends.ModelEmbedding3Large: {
		InputCostPer1K: 0.00013,
		ContextWindow:  8191,
		Embeddings:     true,
	},
}

// DefaultEmbeddingModel is used when an embedding request does not name a
// model.
const DefaultEmbeddingModel = backends.ModelEmbedding3Small

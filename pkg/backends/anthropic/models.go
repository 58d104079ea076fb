package anthropic

import "helioshq/meridian/pkg/backends"

// catalog holds the models served by the Anthropic Messages API.
// Anthropic has no embeddings endpoint, so no embedding models appear here.
var catalog = map[string]backends.ModelInfo{
	backends.ModelClaudeOpus: {
		InputCostPer1K:  0.015,
		OutputCostPer1K: 0.075,
		ContextWindow:   200000,
	},
	backends.ModelClaudeSonnet: {
		InputCostPer1K:  0.003,
		OutputCostPer1K: 0.015,
		ContextWindow:   200000,
	},
	backends.ModelClaudeHaiku: {
		InputCostPer1K:  0.00025,
		OutputCostPer1K: 0.00125,
		ContextWindow:   200000,
	},
}

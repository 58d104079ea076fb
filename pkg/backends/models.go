package backends

// ModelInfo is the cost/latency profile of one model on one backend.
// Costs are USD per 1,000 tokens. Local models carry zero cost.
type ModelInfo struct {
	// InputCostPer1K is the prompt-side cost per 1K tokens (USD)
	InputCostPer1K float64

	// OutputCostPer1K is the completion-side cost per 1K tokens (USD)
	OutputCostPer1K float64

	// ContextWindow is the model's maximum context length in tokens
	ContextWindow int

	// Embeddings indicates the model produces vectors rather than text
	Embeddings bool
}

// Cost computes the USD cost of a request given its token usage.
func (m ModelInfo) Cost(usage TokenUsage) float64 {
	return m.InputCostPer1K*float64(usage.PromptTokens)/1000 +
		m.OutputCostPer1K*float64(usage.CompletionTokens)/1000
}

// AverageCostPer1K is the mean of input and output cost, used by the
// least-cost candidate ordering.
func (m ModelInfo) AverageCostPer1K() float64 {
	return (m.InputCostPer1K + m.OutputCostPer1K) / 2
}

// Abstract model identifiers known to the gateway. Adapters publish the
// subset they serve in their catalogs.
const (
	ModelGPT4o        = "gpt-4o"
	ModelGPT4Turbo    = "gpt-4-turbo"
	ModelGPT35Turbo   = "gpt-3.5-turbo"
	ModelClaudeOpus   = "claude-3-opus"
	ModelClaudeSonnet = "claude-3-sonnet"
	ModelClaudeHaiku  = "claude-3-haiku"
	ModelLlama3_70B   = "llama-3-70b"
	ModelLlama3_8B    = "llama-3-8b"

	ModelEmbedding3Small = "text-embedding-3-small"
	ModelEmbedding3Large = "text-embedding-3-large"
	ModelEmbeddingLocal  = "all-minilm-l6"
)

// equivalents is the fixed cross-backend model equivalence table. When a
// candidate backend does not serve the requested model, the router
// substitutes the nearest-capability model from this table; candidates
// with no entry are skipped.
var equivalents = map[Kind]map[string]string{
	KindAnthropic: {
		ModelGPT4o:      ModelClaudeOpus,
		ModelGPT4Turbo:  ModelClaudeOpus,
		ModelGPT35Turbo: ModelClaudeHaiku,
	},
	KindOpenAI: {
		ModelClaudeOpus:   ModelGPT4o,
		ModelClaudeSonnet: ModelGPT4Turbo,
		ModelClaudeHaiku:  ModelGPT35Turbo,
	},
	KindLocal: {
		ModelGPT4o:        ModelLlama3_70B,
		ModelGPT4Turbo:    ModelLlama3_70B,
		ModelClaudeOpus:   ModelLlama3_70B,
		ModelGPT35Turbo:   ModelLlama3_8B,
		ModelClaudeSonnet: ModelLlama3_8B,
		ModelClaudeHaiku:  ModelLlama3_8B,
	},
}

// EquivalentModel returns the nearest-capability substitute for model on
// the given backend family. The second return value is false when no
// mapping exists.
func EquivalentModel(model string, kind Kind) (string, bool) {
	table, ok := equivalents[kind]
	if !ok {
		return "", false
	}
	mapped, ok := table[model]
	return mapped, ok
}

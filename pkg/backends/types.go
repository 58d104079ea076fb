package backends

import "time"

// Kind identifies a backend family. Backends are configured at startup and
// the set never changes for the life of the process.
type Kind string

const (
	// KindOpenAI is the OpenAI-compatible cloud API family.
	KindOpenAI Kind = "openai"

	// KindAnthropic is the Anthropic Messages API family.
	KindAnthropic Kind = "anthropic"

	// KindLocal is the on-box inference engine family.
	KindLocal Kind = "local"
)

// Message represents a single message in a conversation.
// It is backend-agnostic and transformed to backend-specific formats
// by each adapter.
type Message struct {
	// Role identifies the message sender (system, user, assistant)
	Role string `json:"role"`

	// Content is the message text content
	Content string `json:"content"`
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	// PromptTokens is the number of tokens in the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens used (prompt + completion)
	TotalTokens int `json:"total_tokens"`
}

// CompletionRequest represents a backend-agnostic completion request.
// Requests are immutable once submitted; adapters must not modify them.
type CompletionRequest struct {
	// Model is the abstract model identifier (e.g. "gpt-4o",
	// "claude-3-opus"). Empty means the backend's default model.
	Model string `json:"model"`

	// Messages is the conversation history
	Messages []Message `json:"messages"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `json:"max_tokens,omitempty"`

	// TopP controls nucleus sampling (0.0 to 1.0)
	TopP float64 `json:"top_p,omitempty"`

	// PresencePenalty reduces repetition (-2.0 to 2.0)
	PresencePenalty float64 `json:"presence_penalty,omitempty"`

	// FrequencyPenalty reduces repetition based on frequency (-2.0 to 2.0)
	FrequencyPenalty float64 `json:"frequency_penalty,omitempty"`

	// Stop sequences that will halt generation
	Stop []string `json:"stop,omitempty"`

	// User is the caller identifier used for cost attribution
	User string `json:"user,omitempty"`

	// Preferred is an optional ordered backend preference list. When set,
	// the router restricts its candidate set to these backends before
	// applying the selection strategy.
	Preferred []Kind `json:"-"`
}

// CompletionResponse represents a backend-agnostic completion response.
type CompletionResponse struct {
	// ID is the unique response identifier
	ID string `json:"id"`

	// Model is the model that actually generated the response, which may
	// differ from the requested model after cross-backend remapping
	Model string `json:"model"`

	// Backend is the backend that served the request
	Backend Kind `json:"backend"`

	// Content is the generated text content
	Content string `json:"content"`

	// FinishReason indicates why generation stopped (stop, length,
	// content_filter)
	FinishReason string `json:"finish_reason"`

	// Usage contains token consumption information
	Usage TokenUsage `json:"usage"`

	// Cost is the estimated cost in USD, derived from the serving
	// backend's ModelInfo for the actually-used model
	Cost float64 `json:"cost"`

	// Created is the Unix timestamp when the response was created
	Created int64 `json:"created"`
}

// StreamChunk represents a single fragment in a streaming response.
type StreamChunk struct {
	// ID is the response identifier (same across all chunks)
	ID string `json:"id"`

	// Model is the model generating the response
	Model string `json:"model"`

	// Delta is the incremental content in this chunk
	Delta string `json:"delta"`

	// FinishReason is set in the final chunk to indicate why generation
	// stopped
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage is included in the final chunk (if the backend reports it)
	Usage *TokenUsage `json:"usage,omitempty"`

	// Error is set if an error occurred during streaming. A chunk with a
	// non-nil Error is always the last chunk on the channel.
	Error error `json:"-"`
}

// EmbeddingRequest represents a backend-agnostic embedding request.
type EmbeddingRequest struct {
	// Texts are the inputs to embed, one vector per text
	Texts []string `json:"texts"`

	// Model is the embedding model identifier. Empty means the backend's
	// default embedding model.
	Model string `json:"model,omitempty"`

	// User is the caller identifier used for cost attribution
	User string `json:"user,omitempty"`
}

// EmbeddingResponse represents a backend-agnostic embedding response.
type EmbeddingResponse struct {
	// Embeddings holds one vector per input text, in input order
	Embeddings [][]float64 `json:"embeddings"`

	// Model is the embedding model that produced the vectors
	Model string `json:"model"`

	// Backend is the backend that served the request
	Backend Kind `json:"backend"`

	// Usage contains token consumption (completion tokens are always zero)
	Usage TokenUsage `json:"usage"`

	// Cost is the estimated cost in USD, derived from the serving
	// model's cost profile
	Cost float64 `json:"cost"`
}

// BackendHealth tracks the request-level health bookkeeping of a backend.
type BackendHealth struct {
	// Healthy indicates whether the backend is currently considered healthy
	Healthy bool

	// LastCheck is the timestamp of the last health update
	LastCheck time.Time

	// LastError is the most recent error encountered (nil if healthy)
	LastError error

	// ConsecutiveFailures counts sequential request failures
	ConsecutiveFailures int

	// LastSuccess is the timestamp of the last successful request
	LastSuccess time.Time

	// TotalRequests is the total number of requests sent to this backend
	TotalRequests int64

	// FailedRequests is the total number of failed requests
	FailedRequests int64
}

// Config contains configuration for a single backend instance.
type Config struct {
	// Name is the backend identifier used in logs and stats
	Name string

	// Kind is the backend family
	Kind Kind

	// BaseURL is the API endpoint base URL
	BaseURL string

	// APIKey is the authentication key (unused for local backends)
	APIKey string

	// Timeout is the per-request timeout
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts for transient
	// failures
	MaxRetries int

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum idle connections per host
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle connection remains in the pool
	IdleConnTimeout time.Duration
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Finish reason constants
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonContentFilter = "content_filter"
)

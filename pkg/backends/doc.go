// Package backends defines the adapter layer between the gateway and
// concrete LLM services.
//
// Every backend family (OpenAI-style cloud API, Anthropic Messages API,
// local on-box inference engine) implements the Backend interface, which
// normalizes completion, streaming, and embedding calls into
// provider-agnostic request/response types. Adapters also publish a model
// catalog (ModelInfo) with per-model cost and context-window metadata that
// the router uses for candidate ordering and cost accounting.
//
// HTTP-based adapters embed HTTPBackend, which supplies connection
// pooling, retry with exponential backoff, timeout handling, and health
// bookkeeping. The local adapter speaks the OpenAI-compatible protocol of
// on-box inference servers and reports zero-cost models.
//
// Error types in this package form the taxonomy that the circuit breaker
// uses to distinguish backend failures (which count toward opening the
// breaker) from caller errors (which do not).
package backends

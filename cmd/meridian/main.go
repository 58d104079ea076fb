// Meridian is an LLM gateway that fronts multiple inference backends
// behind one OpenAI-compatible API.
//
// It provides:
//   - Multi-backend routing (OpenAI, Anthropic, local engines) with
//     pluggable selection strategies and automatic fallback
//   - Per-backend circuit breakers
//   - Priority-aware request batching with cost-optimized admission
//   - Usage accounting with durable SQLite storage
//   - Prometheus metrics and structured logging
//
// Usage:
//
//	# Start the gateway with default configuration
//	meridian run
//
//	# Start with a custom configuration file
//	meridian run --config /etc/meridian/config.yaml
//
//	# Show version information
//	meridian version
package main

func main() {
	Execute()
}

// Package server exposes the gateway over HTTP. It wires the router,
// batch scheduler, usage ledger, and telemetry behind an
// OpenAI-compatible JSON surface with SSE streaming, plus operational
// endpoints for stats, health, and metrics.
package server

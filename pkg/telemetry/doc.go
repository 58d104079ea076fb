// Package telemetry groups the gateway's observability concerns:
// structured logging (telemetry/logging), Prometheus metrics
// (telemetry/metrics), and health checks (telemetry/health).
package telemetry

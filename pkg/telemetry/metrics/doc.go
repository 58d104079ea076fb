// Package metrics implements Prometheus instrumentation for the gateway.
//
// The Collector owns a private registry and three metric groups: backend
// call metrics (requests, latency, errors, health, breaker state), batch
// scheduler metrics (batch sizes, queue depth), and cost metrics. A
// cardinality limiter caps the number of distinct label sets so a
// misbehaving client cannot blow up scrape size.
package metrics

// Package routing selects which backend serves each request and walks
// the fallback chain when backends fail.
//
// The router owns a set of routes, each pairing a backend adapter with
// its circuit breaker. A pluggable strategy orders the eligible
// candidates; the router then tries them in order, skipping backends
// whose breakers reject the call and remapping the requested model to
// each backend's nearest equivalent. The first success wins. Embedding
// traffic bypasses the strategy: it goes to the primary
// embedding-capable backend with the local engine as the only fallback.
package routing

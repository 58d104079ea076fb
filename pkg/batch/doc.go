// Package batch implements a priority-aware request batching scheduler.
//
// Callers submit items carrying a completion, embedding, or generation
// payload. Items are queued per request kind and priority, and a ticker
// loop decides when a queue is worth turning into a batch according to a
// configurable admission strategy. Embedding batches are merged into a
// single upstream call and split back per item; completion and generation
// batches fan out per item with bounded concurrency.
//
// Every submitted item receives exactly one Result on its channel, whether
// the batch succeeded, failed as a whole, or the scheduler shut down.
package batch

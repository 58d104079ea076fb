// Package usage tracks token consumption and cost across users, models,
// and backends.
//
// The Ledger keeps cumulative totals and rolling hourly and daily cost
// windows in memory, and asynchronously persists raw records to a Store
// every Nth append. A cron-driven Flusher adds periodic full flushes for
// deployments where the append rate is low.
package usage

// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Committed events by type
//   - Operation outcomes by error code, and operation latency
//   - Active and stale listing counts, owner index problems (from the auditor)
//   - Journal queue depth and write errors
//   - Live feed subscribers
package metrics

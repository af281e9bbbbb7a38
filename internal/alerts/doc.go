// Package alerts implements best-effort, multi-channel delivery of merchant
// security alerts.
//
// Delivery is decoupled from the verification critical path: Send enqueues
// and returns immediately, a background worker routes by priority, and failed
// deliveries are redelivered a bounded number of times. A bounded per-merchant
// history is retained for audit.
//
// Routing:
//
//   - CRITICAL — all channels concurrently; succeeds if any channel succeeds.
//   - HIGH     — webhook first, durable store as fallback.
//   - NORMAL   — webhook only.
//   - LOW      — durable store only.
package alerts

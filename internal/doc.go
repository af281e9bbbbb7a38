// Package internal groups the implementation subpackages that are
// intentionally private to factorgate. The public Engine API re-exports
// the types callers need as aliases.
//
// # Sub-packages
//
//   - alerts — async merchant alert dispatch with channel fallback
//   - audit — async audit event dispatch (Dispatcher + Sink implementations)
//   - digest — constant-time digest comparison and integrity checks
//   - failover — primary/fallback execution behind a circuit breaker
//   - policy — threat indicator evaluation and action overrides
//   - ratelimit — per-identity attempt budgets and escalating cooldowns
//
// # What this package must NOT do
//
//   - Export types that appear in the public factorgate API directly.
//   - Be imported by any package outside the factorgate module.
package internal

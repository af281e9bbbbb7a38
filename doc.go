// Package factorgate provides a multi-factor verification core: it proves
// that a caller controls a previously enrolled set of authentication factors
// without ever storing raw factor material, while resisting timing attacks,
// brute force, and compromised devices.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// factorgate is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (SessionInfo, SubmitResult, SecurityReport, etc.). All
// internal coordination — constant-time comparison, rate limiting, policy
// evaluation, alert dispatch, failover — lives under internal/ and is never
// exported directly.
//
// # What this package must NOT do
//
//   - Hold raw factor material anywhere; only fixed-size digests cross its
//     boundary, and comparison inputs are wiped after use.
//   - Collapse security-relevant errors into a generic failure: callers can
//     always distinguish a wrong factor from a blocked device from a rate
//     limit through errors.Is/As.
//   - Let alert or audit delivery delay or fail a verification result.
//
// # Performance contract
//
// SubmitFactor is the hot path. Digest comparison is constant-time per call
// with no shared accumulator across calls, and the submit-and-evaluate unit
// holds only the per-session lock, never the session-table or rate-limiter
// lock, across remote I/O.
package factorgate

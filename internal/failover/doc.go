// Package failover implements the two-stage primary/fallback call strategy
// used for remote capabilities.
//
// The primary path runs under a bounded timeout behind a circuit breaker:
// after repeated primary failures the breaker opens and calls route straight
// to the fallback for a cooldown window instead of retrying a failing
// dependency under load. Failure handling is configured once here so it can
// be tested independently of the orchestrators that use it.
package failover

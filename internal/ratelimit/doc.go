// Package ratelimit tracks per-identity verification attempts and failure
// streaks, mapping them to tiered cooldowns.
//
// The limiter owns all of its state behind a single RWMutex: status reads run
// concurrently, mutations are exclusive. Entries are keyed by identity hash,
// never by raw identity, and idle entries are evicted once the tracked count
// crosses a high-water mark.
package ratelimit

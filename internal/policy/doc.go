// Package policy maps device threat reports to graded access decisions.
//
// Evaluate is a pure function: it reads an externally supplied ThreatReport
// and a Config, and derives a Decision without touching any shared state.
// The overall action is the most severe action among all detected indicators.
package policy

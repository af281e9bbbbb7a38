package internaldefs

import (
	factorgate "github.com/factorgate/factorgate"
)

// CounterDef maps one engine counter to its stable exported name.
type CounterDef struct {
	ID   factorgate.MetricID
	Name string
	Help string
}

// HistogramDef maps one engine histogram to its stable exported name.
type HistogramDef struct {
	ID   factorgate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter. Names are append-only: dashboards
// key off them.
var CounterDefs = []CounterDef{
	{ID: factorgate.MetricEnrollSuccess, Name: "factorgate_enroll_success_total", Help: "Committed enrollments."},
	{ID: factorgate.MetricEnrollRejected, Name: "factorgate_enroll_rejected_total", Help: "Enrollments refused by validation."},
	{ID: factorgate.MetricEnrollRollback, Name: "factorgate_enroll_rollback_total", Help: "Enrollments rolled back after a durable-store failure."},
	{ID: factorgate.MetricEnrollCacheMirrorFailure, Name: "factorgate_enroll_cache_mirror_failure_total", Help: "Non-fatal cache mirror failures during enrollment."},
	{ID: factorgate.MetricSessionCreated, Name: "factorgate_session_created_total", Help: "Created verification sessions."},
	{ID: factorgate.MetricSessionBlocked, Name: "factorgate_session_blocked_total", Help: "Sessions vetoed by threat policy."},
	{ID: factorgate.MetricSessionDegraded, Name: "factorgate_session_degraded_total", Help: "Sessions created in degraded mode."},
	{ID: factorgate.MetricSessionRateLimited, Name: "factorgate_session_rate_limited_total", Help: "Sessions vetoed by the rate limiter."},
	{ID: factorgate.MetricSessionFraudVeto, Name: "factorgate_session_fraud_veto_total", Help: "Sessions vetoed by the fraud heuristic."},
	{ID: factorgate.MetricSessionNotEnrolled, Name: "factorgate_session_not_enrolled_total", Help: "Session attempts for unenrolled identities."},
	{ID: factorgate.MetricFactorAccepted, Name: "factorgate_factor_accepted_total", Help: "Accepted factor submissions."},
	{ID: factorgate.MetricFactorRejected, Name: "factorgate_factor_rejected_total", Help: "Rejected factor submissions."},
	{ID: factorgate.MetricVerifySuccess, Name: "factorgate_verify_success_total", Help: "Sessions that evaluated to success."},
	{ID: factorgate.MetricVerifyRetryable, Name: "factorgate_verify_retryable_total", Help: "Failed evaluations that left the session open."},
	{ID: factorgate.MetricVerifyTerminal, Name: "factorgate_verify_terminal_total", Help: "Sessions evicted at the attempt cap."},
	{ID: factorgate.MetricVerifyExpired, Name: "factorgate_verify_expired_total", Help: "Expired sessions."},
	{ID: factorgate.MetricSessionCancelled, Name: "factorgate_session_cancelled_total", Help: "Explicit session cancellations."},
	{ID: factorgate.MetricRemotePrimaryUsed, Name: "factorgate_remote_primary_used_total", Help: "Operations served by the remote primary."},
	{ID: factorgate.MetricRemoteFallback, Name: "factorgate_remote_fallback_total", Help: "Operations served by the local fallback."},
	{ID: factorgate.MetricProofGenerated, Name: "factorgate_proof_generated_total", Help: "Successful proof generations."},
	{ID: factorgate.MetricProofFailed, Name: "factorgate_proof_failed_total", Help: "Non-fatal proof generation failures."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: factorgate.MetricVerifyLatency, Name: "factorgate_verify_latency_seconds", Help: "Submit-and-evaluate latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, matching the
// engine's fixed millisecond buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are metric-name-safe renderings of HistogramBounds.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form both
// exposition formats require.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

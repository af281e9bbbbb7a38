package factorgate

// Audit event names emitted by the engine. One constant per
// security-relevant transition; sinks key dashboards off these strings, so
// they are append-only.
const (
	auditEventEnrollCommitted     = "enroll.committed"
	auditEventEnrollRejected      = "enroll.rejected"
	auditEventEnrollRollback      = "enroll.rollback"
	auditEventEnrollCacheFailure  = "enroll.cache_mirror_failed"
	auditEventEnrollDeleted       = "enroll.deleted"
	auditEventSessionCreated      = "session.created"
	auditEventSessionBlocked      = "session.blocked_by_policy"
	auditEventSessionDegraded     = "session.degraded"
	auditEventSessionRateLimited  = "session.rate_limited"
	auditEventSessionFraudVeto    = "session.fraud_veto"
	auditEventSessionNotEnrolled  = "session.not_enrolled"
	auditEventSessionCancelled    = "session.cancelled"
	auditEventSessionExpired      = "session.expired"
	auditEventFactorRejected      = "factor.rejected"
	auditEventVerifySuccess       = "verify.success"
	auditEventVerifyRetryable     = "verify.retryable_failure"
	auditEventVerifyTerminal      = "verify.terminal_failure"
	auditEventProofFailed         = "verify.proof_failed"
	auditEventRemoteFallback      = "remote.fallback"
	auditEventThreatDetectorError = "threat.detector_error"
)

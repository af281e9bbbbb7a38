package factorgate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/factorgate/factorgate/internal/digest"
	"github.com/factorgate/factorgate/internal/failover"
	"github.com/factorgate/factorgate/internal/policy"
	"github.com/factorgate/factorgate/internal/ratelimit"
)

// sessionSeed is the outcome of the primary/fallback session-creation paths:
// either a remote session id plus its required set, or a locally built seed
// carrying the persisted digests.
type sessionSeed struct {
	remoteID  string
	required  []FactorType
	persisted map[FactorType][]byte
}

// CreateSession opens a verification session for an identity. Gates run in
// order: threat policy (absent report and detector default to ALLOW), rate
// limiter plus fraud heuristic, then the primary remote-session capability
// with a local fallback seeded from the persisted enrollment record.
func (e *Engine) CreateSession(ctx context.Context, identity Identity, merchantID string, amount int64, report *ThreatReport) (*SessionInfo, error) {
	if e == nil || e.durable == nil {
		return nil, ErrEngineNotReady
	}

	report = e.resolveThreatReport(ctx, report, identity)

	decision := policy.Evaluate(report, string(identity), merchantID, e.config.Policy, e.now())
	if decision.Action >= ActionBlockTemporary {
		// Best-effort merchant alert before the refusal surfaces.
		e.dispatchMerchantAlert(decision.Alert, alertPriorityFor(decision.Action))
		e.metricInc(MetricSessionBlocked)
		e.emitAudit(ctx, auditEventSessionBlocked, false, identity, merchantID, "", ErrSecurityViolation, map[string]string{
			"action": decision.Action.String(),
		})
		return nil, &SecurityViolationError{
			Action:     decision.Action,
			Guidance:   decision.Guidance,
			CanRetry:   decision.CanRetry,
			RetryAfter: decision.RetryAfter,
		}
	}

	degraded := decision.Action == ActionDegrade
	if degraded {
		e.dispatchMerchantAlert(decision.Alert, alertPriorityFor(decision.Action))
		e.metricInc(MetricSessionDegraded)
		e.emitAudit(ctx, auditEventSessionDegraded, true, identity, merchantID, "", nil, nil)
	}

	key := e.limiterKey(identity)
	if status := e.limiter.Check(key); status != ratelimit.StatusOK {
		e.metricInc(MetricSessionRateLimited)
		e.emitAudit(ctx, auditEventSessionRateLimited, false, identity, merchantID, "", ErrRateLimited, map[string]string{
			"status": status.String(),
		})
		return nil, &RateLimitError{
			Status:     status,
			RetryAfter: e.limiter.RemainingCooldown(key),
			Indefinite: status == ratelimit.StatusFrozenFraud,
		}
	}
	e.limiter.RecordAttempt(key)

	if e.fraud != nil {
		if err := e.fraud.Assess(ctx, identity, merchantID, amount); err != nil {
			e.metricInc(MetricSessionFraudVeto)
			e.emitAudit(ctx, auditEventSessionFraudVeto, false, identity, merchantID, "", err, nil)
			return nil, fmt.Errorf("%w: %v", ErrFraudSuspected, err)
		}
	}

	seed, primaryUsed, err := e.buildSeed(ctx, identity, merchantID, amount)
	if err != nil {
		if errors.Is(err, ErrNotEnrolled) {
			e.metricInc(MetricSessionNotEnrolled)
			e.emitAudit(ctx, auditEventSessionNotEnrolled, false, identity, merchantID, "", err, nil)
			return nil, ErrNotEnrolled
		}
		return nil, err
	}
	if primaryUsed {
		e.metricInc(MetricRemotePrimaryUsed)
	} else if e.remote != nil {
		e.metricInc(MetricRemoteFallback)
		e.emitAudit(ctx, auditEventRemoteFallback, true, identity, merchantID, "", nil, map[string]string{
			"operation": "create_session",
		})
	}

	now := e.now()
	s := &verificationSession{
		id:           newID(),
		identity:     identity,
		merchantID:   merchantID,
		amount:       amount,
		required:     make(map[FactorType]struct{}, len(seed.required)),
		requiredList: append([]FactorType(nil), seed.required...),
		submitted:    make(map[FactorType][]byte, len(seed.required)),
		maxAttempts:  e.config.Verification.MaxAttempts,
		createdAt:    now,
		expiresAt:    now.Add(e.config.Verification.SessionTTL),
		state:        SessionCreated,
		degraded:     degraded,
		remoteID:     seed.remoteID,
		persisted:    seed.persisted,
	}
	for _, t := range seed.required {
		s.required[t] = struct{}{}
	}
	e.sessions.put(s)

	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionCreated, true, identity, merchantID, s.id, nil, map[string]string{
		"degraded": fmt.Sprintf("%t", degraded),
		"remote":   fmt.Sprintf("%t", seed.remoteID != ""),
	})

	return &SessionInfo{
		ID:         s.id,
		Identity:   identity,
		MerchantID: merchantID,
		Amount:     amount,
		Required:   append([]FactorType(nil), seed.required...),
		ExpiresAt:  s.expiresAt,
		Degraded:   degraded,
		Remote:     seed.remoteID != "",
	}, nil
}

// resolveThreatReport pulls a snapshot from the optional detector when the
// caller supplied none. A detector failure is audited and treated as an
// absent report, which defaults to ALLOW.
func (e *Engine) resolveThreatReport(ctx context.Context, report *ThreatReport, identity Identity) *ThreatReport {
	if report != nil || e.threats == nil {
		return report
	}
	snapshot, err := e.threats.Snapshot(ctx)
	if err != nil {
		e.emitAudit(ctx, auditEventThreatDetectorError, false, identity, "", "", err, nil)
		return nil
	}
	return snapshot
}

// buildSeed runs the two-stage session-creation strategy: remote primary
// behind the breaker, local fallback from the enrollment record with the
// minimum-factor invariant re-validated against the fallback data.
func (e *Engine) buildSeed(ctx context.Context, identity Identity, merchantID string, amount int64) (*sessionSeed, bool, error) {
	var primary func(context.Context) (*sessionSeed, error)
	if e.remote != nil {
		primary = func(pctx context.Context) (*sessionSeed, error) {
			rs, err := e.remote.CreateRemoteSession(pctx, identity, merchantID, amount)
			if err != nil {
				return nil, err
			}
			if rs == nil || rs.ID == "" || len(rs.Required) == 0 {
				return nil, fmt.Errorf("%w: empty remote session", ErrRemoteUnavailable)
			}
			return &sessionSeed{remoteID: rs.ID, required: rs.Required}, nil
		}
	}

	fallback := func(fctx context.Context) (*sessionSeed, error) {
		record, err := e.retrieveEnrollment(fctx, identity)
		if err != nil {
			return nil, err
		}
		if len(record) < e.config.Enrollment.MinFactors {
			return nil, ErrNotEnrolled
		}
		return &sessionSeed{required: sortedTypes(record), persisted: record}, nil
	}

	return failover.Do(ctx, e.strategy, primary, fallback)
}

// SubmitFactor adds one digest to a session. Factor types outside the
// session's required set are a protocol violation, not silently ignored.
// Once the required set is fully covered, evaluation runs synchronously in
// this same call; there is no separate finalize step.
func (e *Engine) SubmitFactor(ctx context.Context, sessionID string, factorType FactorType, d []byte) (*SubmitResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	s := e.sessions.get(sessionID)
	if s == nil {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.evicted {
		return nil, ErrSessionNotFound
	}
	if e.now().After(s.expiresAt) {
		e.expireLocked(ctx, s)
		return nil, ErrSessionExpired
	}

	if _, ok := s.required[factorType]; !ok {
		e.metricInc(MetricFactorRejected)
		e.emitAudit(ctx, auditEventFactorRejected, false, s.identity, s.merchantID, s.id, ErrFactorNotRequested, map[string]string{
			"factor_type": factorType.String(),
		})
		return nil, fmt.Errorf("%w: %s", ErrFactorNotRequested, factorType)
	}

	if err := checkDigest(d); err != nil {
		e.metricInc(MetricFactorRejected)
		return nil, err
	}

	// Resubmission of a type replaces the previous digest.
	if prev, ok := s.submitted[factorType]; ok {
		digest.Wipe(prev)
	}
	s.submitted[factorType] = digest.Clone(d)
	s.state = SessionAccumulating
	e.metricInc(MetricFactorAccepted)

	if len(s.submitted) < len(s.required) {
		return &SubmitResult{State: SessionAccumulating, Pending: s.pendingLocked()}, nil
	}

	return e.evaluateLocked(ctx, s)
}

// evaluateLocked runs the full-set comparison. Caller holds the session
// lock, so submit-and-evaluate is one atomic unit per session. The attempt
// counter moves first so even a later-erroring attempt is counted, and
// expiry is re-checked so a stalled evaluation cannot extend the attack
// window.
func (e *Engine) evaluateLocked(ctx context.Context, s *verificationSession) (*SubmitResult, error) {
	wallStart := time.Now()
	defer func() {
		e.metricObserve(MetricVerifyLatency, time.Since(wallStart))
	}()

	s.attempts++
	if e.now().After(s.expiresAt) {
		e.expireLocked(ctx, s)
		return nil, ErrSessionExpired
	}
	s.state = SessionEvaluating

	verdict, primaryUsed, err := e.verifySeed(ctx, s)
	if err != nil {
		// Both verification paths failed; the attempt is spent but the
		// session stays open for the remaining budget.
		s.state = SessionAccumulating
		return nil, err
	}
	if !primaryUsed && s.remoteID != "" {
		e.metricInc(MetricRemoteFallback)
		e.emitAudit(ctx, auditEventRemoteFallback, true, s.identity, s.merchantID, s.id, nil, map[string]string{
			"operation": "verify",
		})
	}

	key := e.limiterKey(s.identity)

	if !verdict.Verified {
		e.limiter.RecordFailure(key)
		remaining := s.maxAttempts - s.attempts
		if remaining <= 0 {
			s.state = SessionTerminalFailure
			e.evictLocked(s)
			e.metricInc(MetricVerifyTerminal)
			e.emitAudit(ctx, auditEventVerifyTerminal, false, s.identity, s.merchantID, s.id, ErrAttemptsExhausted, nil)
			return nil, ErrAttemptsExhausted
		}
		s.state = SessionRetryableFailure
		e.metricInc(MetricVerifyRetryable)
		e.emitAudit(ctx, auditEventVerifyRetryable, false, s.identity, s.merchantID, s.id, ErrDigestMismatch, map[string]string{
			"attempts_remaining": fmt.Sprintf("%d", remaining),
		})
		return nil, &DigestMismatchError{AttemptsRemaining: remaining}
	}

	proof := verdict.Proof
	if proof == nil && e.proofs != nil {
		generated, perr := e.proofs.GenerateProof(ctx, s.identity, s.id)
		if perr != nil {
			// Proof generation is optional; success is still reported.
			e.metricInc(MetricProofFailed)
			e.emitAudit(ctx, auditEventProofFailed, false, s.identity, s.merchantID, s.id, perr, nil)
		} else {
			proof = generated
			e.metricInc(MetricProofGenerated)
		}
	}

	e.limiter.Reset(key)
	s.state = SessionSucceeded
	e.evictLocked(s)
	e.metricInc(MetricVerifySuccess)
	e.emitAudit(ctx, auditEventVerifySuccess, true, s.identity, s.merchantID, s.id, nil, map[string]string{
		"degraded": fmt.Sprintf("%t", s.degraded),
	})

	return &SubmitResult{State: SessionSucceeded, Verified: true, Proof: proof}, nil
}

// verifySeed runs the two-stage verification strategy: remote primary when
// the session was remotely created, local constant-time batch comparison as
// fallback. Comparator inputs are always fresh copies because Compare wipes
// whatever it touches.
func (e *Engine) verifySeed(ctx context.Context, s *verificationSession) (*RemoteVerdict, bool, error) {
	var primary func(context.Context) (*RemoteVerdict, error)
	if e.remote != nil && s.remoteID != "" {
		primary = func(pctx context.Context) (*RemoteVerdict, error) {
			return e.remote.VerifyRemote(pctx, s.remoteID, s.identity, cloneDigestMap(s.submitted))
		}
	}

	fallback := func(fctx context.Context) (*RemoteVerdict, error) {
		persisted := s.persisted
		if persisted == nil {
			record, err := e.retrieveEnrollment(fctx, s.identity)
			if err != nil {
				return nil, err
			}
			s.persisted = record
			persisted = record
		}

		ok := digest.BatchCompare(s.requiredList, cloneDigestMap(s.submitted), cloneDigestMap(persisted))
		return &RemoteVerdict{Verified: ok}, nil
	}

	return failover.Do(ctx, e.strategy, primary, fallback)
}

// Session reports the caller-visible view of a live session. Terminal and
// expired sessions are absent.
func (e *Engine) Session(sessionID string) (*SessionInfo, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	s := e.sessions.get(sessionID)
	if s == nil {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evicted {
		return nil, ErrSessionNotFound
	}

	return &SessionInfo{
		ID:         s.id,
		Identity:   s.identity,
		MerchantID: s.merchantID,
		Amount:     s.amount,
		Required:   append([]FactorType(nil), s.requiredList...),
		ExpiresAt:  s.expiresAt,
		Degraded:   s.degraded,
		Remote:     s.remoteID != "",
	}, nil
}

// CancelSession evicts a session by id. No state from a cancelled session is
// consulted afterward.
func (e *Engine) CancelSession(ctx context.Context, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	s := e.sessions.remove(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evicted {
		return ErrSessionNotFound
	}
	s.evicted = true
	s.wipeLocked()

	e.metricInc(MetricSessionCancelled)
	e.emitAudit(ctx, auditEventSessionCancelled, true, s.identity, s.merchantID, s.id, nil, nil)
	return nil
}

// CleanupExpiredSessions sweeps every session past its deadline regardless
// of completion state and reports how many were removed. Hosts run this on a
// periodic ticker.
func (e *Engine) CleanupExpiredSessions(ctx context.Context) int {
	if e == nil {
		return 0
	}

	expired := e.sessions.expired(e.now())
	for _, s := range expired {
		s.mu.Lock()
		if !s.evicted {
			s.evicted = true
			s.state = SessionExpired
			s.wipeLocked()
			e.metricInc(MetricVerifyExpired)
			e.emitAudit(ctx, auditEventSessionExpired, false, s.identity, s.merchantID, s.id, ErrSessionExpired, nil)
		}
		s.mu.Unlock()
	}
	return len(expired)
}

// expireLocked evicts an expired session discovered inline. Caller holds the
// session lock.
func (e *Engine) expireLocked(ctx context.Context, s *verificationSession) {
	s.state = SessionExpired
	e.evictLocked(s)
	e.metricInc(MetricVerifyExpired)
	e.emitAudit(ctx, auditEventSessionExpired, false, s.identity, s.merchantID, s.id, ErrSessionExpired, nil)
}

// evictLocked wipes retained digests and drops the session from the table.
// Caller holds the session lock; the table lock nests inside safely because
// no table method takes a session lock.
func (e *Engine) evictLocked(s *verificationSession) {
	s.evicted = true
	s.wipeLocked()
	e.sessions.remove(s.id)
}

func cloneDigestMap(in map[FactorType][]byte) map[FactorType][]byte {
	out := make(map[FactorType][]byte, len(in))
	for t, d := range in {
		out[t] = digest.Clone(d)
	}
	return out
}

func sortedTypes(record map[FactorType][]byte) []FactorType {
	out := make([]FactorType, 0, len(record))
	for t := range record {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

package factorgate

import (
	"context"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/factorgate/factorgate/internal/alerts"
	"github.com/factorgate/factorgate/internal/audit"
	"github.com/factorgate/factorgate/internal/failover"
	"github.com/factorgate/factorgate/internal/ratelimit"
)

// Engine is the verification and enrollment orchestrator. Instances are
// built through [Builder.Build], own all session and rate-limit state
// explicitly, and are safe for concurrent use.
type Engine struct {
	config Config

	durable DurableStore
	cache   CacheStore
	remote  RemoteVerifier
	threats ThreatDetector
	proofs  ProofGenerator
	fraud   FraudChecker

	digestProviders map[FactorType]FactorDigestProvider

	limiter  *ratelimit.Limiter
	sessions *sessionTable
	strategy *failover.Strategy
	alerts   *alerts.Dispatcher
	audit    *audit.Dispatcher
	metrics  *Metrics

	now func() time.Time
}

// Close tears down the audit and alert dispatchers, draining buffered
// events. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.alerts != nil {
		e.alerts.Close()
	}
}

// AuditDropped reports audit events lost to dispatcher backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AlertsDropped reports alerts lost to queue overflow or redelivery
// exhaustion.
func (e *Engine) AlertsDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.alerts.Dropped()
}

// AlertHistory returns the retained alert history for one merchant, oldest
// first.
func (e *Engine) AlertHistory(merchantID string) []Alert {
	if e == nil {
		return nil
	}
	return e.alerts.History(merchantID)
}

// MetricsSnapshot deep-copies the engine's metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// SecurityReport returns a read-only snapshot of the engine's security
// posture.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	return SecurityReport{
		MinFactors:               e.config.Enrollment.MinFactors,
		MaxFactors:               e.config.Enrollment.MaxFactors,
		RequiredCategories:       e.config.Enrollment.RequiredCategories,
		SessionTTL:               e.config.Verification.SessionTTL,
		MaxAttempts:              e.config.Verification.MaxAttempts,
		DailyAttemptLimit:        e.config.RateLimit.DailyAttemptLimit,
		FreezeThreshold:          e.config.RateLimit.FreezeThreshold,
		ThreatPolicyActive:       e.threats != nil,
		RemoteVerificationActive: e.remote != nil,
		BreakerState:             e.strategy.State(),
		CacheActive:              e.cache != nil,
		ProofGenerationActive:    e.proofs != nil,
		FraudCheckActive:         e.fraud != nil,
		AlertChannels:            e.alerts.ChannelNames(),
		AuditActive:              e.audit != nil,
		MetricsActive:            e.metrics.Enabled(),
	}
}

// RateLimitStatusFor reports the limiter's current verdict for an identity
// without consuming attempt budget.
func (e *Engine) RateLimitStatusFor(identity Identity) RateLimitStatus {
	if e == nil || e.limiter == nil {
		return RateLimitOK
	}
	return e.limiter.Check(e.limiterKey(identity))
}

// RemainingCooldown reports how long until the identity may retry; zero
// means no timed cooldown is active.
func (e *Engine) RemainingCooldown(identity Identity) time.Duration {
	if e == nil || e.limiter == nil {
		return 0
	}
	return e.limiter.RemainingCooldown(e.limiterKey(identity))
}

// ResetRateLimit lifts cooldowns and a fraud freeze for an identity. Exposed
// for operator tooling; verified successes call it internally.
func (e *Engine) ResetRateLimit(identity Identity) {
	if e == nil || e.limiter == nil {
		return
	}
	e.limiter.Reset(e.limiterKey(identity))
}

// DigestFactor routes a raw factor input to the provider registered for its
// type and validates the produced digest. The sealed input union guarantees
// the payload matches the provider's factor kind.
func (e *Engine) DigestFactor(input FactorInput) ([]byte, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	provider, ok := e.digestProviders[input.FactorType()]
	if !ok {
		return nil, ErrNoDigestProvider
	}
	d, err := provider.Digest(input)
	if err != nil {
		return nil, err
	}
	if err := checkDigest(d); err != nil {
		return nil, err
	}
	return d, nil
}

// limiterKey hashes the identity so rate-limit state never carries a raw
// principal id.
func (e *Engine) limiterKey(identity Identity) string {
	sum := blake2b.Sum256([]byte("factorgate/limiter:" + identity))
	return hex.EncodeToString(sum[:16])
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, identity Identity, merchantID, sessionID string, opErr error, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	event := audit.Event{
		Timestamp:  e.now(),
		EventType:  eventType,
		Identity:   string(identity),
		MerchantID: merchantID,
		SessionID:  sessionID,
		Success:    success,
		Metadata:   metadata,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	e.audit.Emit(ctx, event)
}

// dispatchMerchantAlert hands a policy alert to the dispatcher. Fire and
// forget: a slow or failed alert never delays a verification result.
func (e *Engine) dispatchMerchantAlert(ma *MerchantAlert, priority AlertPriority) {
	if e == nil || e.alerts == nil || ma == nil {
		return
	}

	indicators := make([]string, 0, len(ma.Indicators))
	for _, c := range ma.Indicators {
		indicators = append(indicators, c.String())
	}

	e.alerts.Send(Alert{
		ID:             newID(),
		MerchantID:     ma.MerchantID,
		Identity:       ma.Identity,
		Severity:       ma.Severity.String(),
		Indicators:     indicators,
		RequiresAction: ma.RequiresAction,
		Message:        ma.Message,
		CreatedAt:      ma.CreatedAt,
	}, priority)
}

// alertPriorityFor maps a policy action to a delivery priority.
func alertPriorityFor(action PolicyAction) AlertPriority {
	switch {
	case action >= ActionBlockPermanent:
		return PriorityCritical
	case action >= ActionBlockTemporary:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

package factorgate

import (
	"fmt"
	"time"

	"github.com/factorgate/factorgate/internal/alerts"
	"github.com/factorgate/factorgate/internal/audit"
	"github.com/factorgate/factorgate/internal/failover"
	"github.com/factorgate/factorgate/internal/ratelimit"
)

// Builder assembles an [Engine]. The durable store is the only mandatory
// capability; everything else degrades gracefully when absent.
//
//	engine, err := factorgate.NewBuilder().
//		WithDurableStore(store).
//		WithRemoteVerifier(remote).
//		Build()
type Builder struct {
	config    Config
	hasConfig bool

	durable DurableStore
	cache   CacheStore
	remote  RemoteVerifier
	threats ThreatDetector
	proofs  ProofGenerator
	fraud   FraudChecker

	channels  []AlertChannel
	auditSink AuditSink

	digestProviders map[FactorType]FactorDigestProvider

	now func() time.Time
}

// NewBuilder creates a Builder with the default configuration.
func NewBuilder() *Builder {
	return &Builder{
		digestProviders: make(map[FactorType]FactorDigestProvider),
	}
}

// WithConfig replaces the default configuration. The config is cloned at
// Build time, so later mutation by the caller has no effect.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	b.hasConfig = true
	return b
}

// WithDurableStore sets the authoritative enrollment store. Required.
func (b *Builder) WithDurableStore(store DurableStore) *Builder {
	b.durable = store
	return b
}

// WithCacheStore sets the advisory enrollment cache.
func (b *Builder) WithCacheStore(store CacheStore) *Builder {
	b.cache = store
	return b
}

// WithRemoteVerifier sets the primary remote verification capability. Calls
// run behind the configured timeout and circuit breaker.
func (b *Builder) WithRemoteVerifier(remote RemoteVerifier) *Builder {
	b.remote = remote
	return b
}

// WithThreatDetector sets the device tamper probe consulted when a session
// is created without an explicit threat report.
func (b *Builder) WithThreatDetector(detector ThreatDetector) *Builder {
	b.threats = detector
	return b
}

// WithProofGenerator sets the optional verification-proof capability.
func (b *Builder) WithProofGenerator(proofs ProofGenerator) *Builder {
	b.proofs = proofs
	return b
}

// WithFraudChecker sets the external fraud heuristic consulted before
// session creation.
func (b *Builder) WithFraudChecker(fraud FraudChecker) *Builder {
	b.fraud = fraud
	return b
}

// WithAlertChannels registers merchant alert delivery channels. Call order
// defines routing preference within a kind.
func (b *Builder) WithAlertChannels(channels ...AlertChannel) *Builder {
	b.channels = append(b.channels, channels...)
	return b
}

// WithAuditSink sets the audit event destination.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithDigestProvider registers the digest provider for one factor type,
// replacing any previous registration for that type.
func (b *Builder) WithDigestProvider(factorType FactorType, provider FactorDigestProvider) *Builder {
	b.digestProviders[factorType] = provider
	return b
}

// WithClock overrides the engine's time source. Tests use this; production
// callers should not.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the engine. The Builder may
// be reused afterwards; the engine shares nothing mutable with it.
func (b *Builder) Build() (*Engine, error) {
	cfg := defaultConfig()
	if b.hasConfig {
		cfg = cloneConfig(b.config)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if b.durable == nil {
		return nil, fmt.Errorf("%w: durable store is required", ErrEngineNotReady)
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	providers := make(map[FactorType]FactorDigestProvider, len(b.digestProviders))
	for t, p := range b.digestProviders {
		providers[t] = p
	}

	var strategy *failover.Strategy
	if b.remote != nil {
		strategy = failover.New(failover.Config{
			Name:             "remote-verifier",
			Timeout:          cfg.Verification.RemoteTimeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
			Cooldown:         cfg.Breaker.Cooldown,
		})
	}

	return &Engine{
		config:          cfg,
		durable:         b.durable,
		cache:           b.cache,
		remote:          b.remote,
		threats:         b.threats,
		proofs:          b.proofs,
		fraud:           b.fraud,
		digestProviders: providers,
		limiter: ratelimit.New(ratelimit.Config{
			DailyAttemptLimit:      cfg.RateLimit.DailyAttemptLimit,
			ShortCooldownThreshold: cfg.RateLimit.ShortCooldownThreshold,
			ShortCooldown:          cfg.RateLimit.ShortCooldown,
			LongCooldownThreshold:  cfg.RateLimit.LongCooldownThreshold,
			LongCooldown:           cfg.RateLimit.LongCooldown,
			FreezeThreshold:        cfg.RateLimit.FreezeThreshold,
			EvictionIdle:           cfg.RateLimit.EvictionIdle,
			EvictionHighWater:      cfg.RateLimit.EvictionHighWater,
		}, now),
		sessions: newSessionTable(),
		strategy: strategy,
		alerts: alerts.NewDispatcher(alerts.Config{
			Enabled:         cfg.Alerts.Enabled,
			QueueSize:       cfg.Alerts.QueueSize,
			HistorySize:     cfg.Alerts.HistorySize,
			MaxRedeliveries: cfg.Alerts.MaxRedeliveries,
			RetryInterval:   cfg.Alerts.RetryInterval,
			DeliverTimeout:  cfg.Alerts.DeliverTimeout,
		}, b.channels),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		now:     now,
	}, nil
}

package factorgate

import (
	"errors"
	"time"
)

// Config defines all engine tuning. Instances are cloned at Build time and
// treated as immutable afterwards.
type Config struct {
	Enrollment   EnrollmentConfig
	Verification VerificationConfig
	RateLimit    RateLimitConfig
	Policy       PolicyConfig
	Alerts       AlertsConfig
	Breaker      BreakerConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
	Cache        CacheConfig
}

// EnrollmentConfig bounds the factor selection. The count bounds are
// independent of the factor catalogue size, capping enrollment-time work.
type EnrollmentConfig struct {
	MinFactors         int
	MaxFactors         int
	RequiredCategories int
}

// VerificationConfig tunes session lifetime and the attempt cap.
type VerificationConfig struct {
	SessionTTL    time.Duration
	MaxAttempts   int
	RemoteTimeout time.Duration
}

// RateLimitConfig tunes the per-identity limiter tiers.
type RateLimitConfig struct {
	DailyAttemptLimit      int
	ShortCooldownThreshold int
	ShortCooldown          time.Duration
	LongCooldownThreshold  int
	LongCooldown           time.Duration
	FreezeThreshold        int
	EvictionIdle           time.Duration
	EvictionHighWater      int
}

// AlertsConfig tunes the alert dispatcher.
type AlertsConfig struct {
	Enabled         bool
	QueueSize       int
	HistorySize     int
	MaxRedeliveries int
	RetryInterval   time.Duration
	DeliverTimeout  time.Duration
}

// BreakerConfig tunes the circuit breaker guarding the remote verification
// capability.
type BreakerConfig struct {
	FailureThreshold uint32
	Cooldown         time.Duration
}

// AuditConfig tunes the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig tunes the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// CacheConfig tunes the advisory cache mirror.
type CacheConfig struct {
	TTL time.Duration
}

func defaultConfig() Config {
	return Config{
		Enrollment: EnrollmentConfig{
			MinFactors:         2,
			MaxFactors:         4,
			RequiredCategories: 2,
		},
		Verification: VerificationConfig{
			SessionTTL:    5 * time.Minute,
			MaxAttempts:   5,
			RemoteTimeout: 3 * time.Second,
		},
		RateLimit: RateLimitConfig{
			DailyAttemptLimit:      20,
			ShortCooldownThreshold: 5,
			ShortCooldown:          15 * time.Minute,
			LongCooldownThreshold:  8,
			LongCooldown:           4 * time.Hour,
			FreezeThreshold:        10,
			EvictionIdle:           24 * time.Hour,
			EvictionHighWater:      10_000,
		},
		Policy: PolicyConfig{
			BlockRetryAfter: time.Hour,
		},
		Alerts: AlertsConfig{
			Enabled:         true,
			QueueSize:       64,
			HistorySize:     32,
			MaxRedeliveries: 3,
			RetryInterval:   30 * time.Second,
			DeliverTimeout:  10 * time.Second,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 3,
			Cooldown:         30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Policy.Overrides != nil {
		out.Policy.Overrides = make(map[IndicatorClass]PolicyAction, len(cfg.Policy.Overrides))
		for k, v := range cfg.Policy.Overrides {
			out.Policy.Overrides[k] = v
		}
	}
	return out
}

// Validate rejects configurations that would weaken the security posture or
// cannot work at all.
func (c Config) Validate() error {
	if c.Enrollment.MinFactors < 2 {
		return errors.New("Enrollment.MinFactors must be at least 2")
	}
	if c.Enrollment.MaxFactors < c.Enrollment.MinFactors {
		return errors.New("Enrollment.MaxFactors must be >= MinFactors")
	}
	if c.Enrollment.RequiredCategories < 1 {
		return errors.New("Enrollment.RequiredCategories must be at least 1")
	}
	if c.Verification.SessionTTL <= 0 {
		return errors.New("Verification.SessionTTL must be positive")
	}
	if c.Verification.MaxAttempts < 1 {
		return errors.New("Verification.MaxAttempts must be at least 1")
	}
	if c.RateLimit.DailyAttemptLimit < 1 {
		return errors.New("RateLimit.DailyAttemptLimit must be at least 1")
	}
	if c.RateLimit.ShortCooldownThreshold < 1 || c.RateLimit.LongCooldownThreshold <= c.RateLimit.ShortCooldownThreshold {
		return errors.New("RateLimit cooldown thresholds must satisfy 1 <= short < long")
	}
	if c.RateLimit.FreezeThreshold <= c.RateLimit.LongCooldownThreshold {
		return errors.New("RateLimit.FreezeThreshold must exceed LongCooldownThreshold")
	}
	if c.RateLimit.ShortCooldown <= 0 || c.RateLimit.LongCooldown <= 0 {
		return errors.New("RateLimit cooldown durations must be positive")
	}
	if c.Cache.TTL < 0 {
		return errors.New("Cache.TTL must not be negative")
	}
	return nil
}

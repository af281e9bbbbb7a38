package factorgate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBuildRequiresDurableStore(t *testing.T) {
	_, err := NewBuilder().Build()
	if !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("got %v, want ErrEngineNotReady", err)
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.Enrollment.MinFactors = 1 // below the security floor

	_, err := NewBuilder().
		WithDurableStore(newMemStore()).
		WithConfig(cfg).
		Build()
	if err == nil {
		t.Fatal("expected config validation error")
	}
}

func TestBuildClonesConfig(t *testing.T) {
	cfg := defaultConfig()
	cfg.Policy.Overrides = map[IndicatorClass]PolicyAction{
		IndicatorProxyVPN: ActionDegrade,
	}

	engine, err := NewBuilder().
		WithDurableStore(newMemStore()).
		WithConfig(cfg).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	// Mutating the caller's map after Build must not reach the engine.
	cfg.Policy.Overrides[IndicatorProxyVPN] = ActionBlockPermanent

	if got := engine.config.Policy.Overrides[IndicatorProxyVPN]; got != ActionDegrade {
		t.Fatalf("got %v, want the cloned DEGRADE override", got)
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"min factors below floor", func(c *Config) { c.Enrollment.MinFactors = 1 }},
		{"max below min", func(c *Config) { c.Enrollment.MaxFactors = 1 }},
		{"zero categories", func(c *Config) { c.Enrollment.RequiredCategories = 0 }},
		{"zero ttl", func(c *Config) { c.Verification.SessionTTL = 0 }},
		{"zero attempts", func(c *Config) { c.Verification.MaxAttempts = 0 }},
		{"zero daily limit", func(c *Config) { c.RateLimit.DailyAttemptLimit = 0 }},
		{"long below short", func(c *Config) { c.RateLimit.LongCooldownThreshold = 4 }},
		{"freeze below long", func(c *Config) { c.RateLimit.FreezeThreshold = 8 }},
		{"negative cache ttl", func(c *Config) { c.Cache.TTL = -time.Second }},
	}

	for _, tc := range cases {
		cfg := defaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}

	if err := defaultConfig().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestNilEngineMethodsAreSafe(t *testing.T) {
	var e *Engine

	e.Close()
	if e.AuditDropped() != 0 || e.AlertsDropped() != 0 {
		t.Fatal("nil engine must report zero drops")
	}
	if e.AlertHistory("m") != nil {
		t.Fatal("nil engine must report no history")
	}
	if got := e.RateLimitStatusFor("id"); got != RateLimitOK {
		t.Fatalf("got %v, want OK from nil engine", got)
	}
	if e.RemainingCooldown("id") != 0 {
		t.Fatal("nil engine must report zero cooldown")
	}
	if snapshot := e.MetricsSnapshot(); len(snapshot.Counters) != 0 {
		t.Fatal("nil engine must report an empty snapshot")
	}
}

func TestMetricsCountVerificationOutcomes(t *testing.T) {
	f := newFixture(t)
	identity := f.enroll(t)
	info := createSession(t, f, identity)

	if _, err := f.engine.SubmitFactor(context.Background(), info.ID, FactorPIN, testDigest(1)); err != nil {
		t.Fatalf("submit pin: %v", err)
	}
	if _, err := f.engine.SubmitFactor(context.Background(), info.ID, FactorDeviceKey, testDigest(2)); err != nil {
		t.Fatalf("submit device key: %v", err)
	}

	snapshot := f.engine.MetricsSnapshot()
	if snapshot.Counters[MetricEnrollSuccess] != 1 {
		t.Fatalf("enroll counter: got %d, want 1", snapshot.Counters[MetricEnrollSuccess])
	}
	if snapshot.Counters[MetricSessionCreated] != 1 {
		t.Fatalf("session counter: got %d, want 1", snapshot.Counters[MetricSessionCreated])
	}
	if snapshot.Counters[MetricVerifySuccess] != 1 {
		t.Fatalf("verify counter: got %d, want 1", snapshot.Counters[MetricVerifySuccess])
	}
	if snapshot.Counters[MetricFactorAccepted] != 2 {
		t.Fatalf("factor counter: got %d, want 2", snapshot.Counters[MetricFactorAccepted])
	}
}

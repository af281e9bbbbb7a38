package policy

import (
	"testing"
	"time"
)

var evalTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestNilReportAllows(t *testing.T) {
	d := Evaluate(nil, "id", "m", Config{}, evalTime)
	if d.Action != ActionAllow {
		t.Fatalf("nil report: got %v, want ALLOW", d.Action)
	}
	if d.Alert != nil {
		t.Fatal("nil report must not synthesize an alert")
	}
}

func TestEmptyReportAllows(t *testing.T) {
	d := Evaluate(&ThreatReport{CapturedAt: evalTime}, "id", "m", Config{}, evalTime)
	if d.Action != ActionAllow {
		t.Fatalf("empty report: got %v, want ALLOW", d.Action)
	}
}

func TestDefaultActions(t *testing.T) {
	cases := []struct {
		class IndicatorClass
		want  Action
	}{
		{IndicatorRootedDevice, ActionBlockPermanent},
		{IndicatorDeveloperMode, ActionBlockTemporary},
		{IndicatorEmulator, ActionBlockPermanent},
		{IndicatorHookingFramework, ActionBlockPermanent},
		{IndicatorProxyVPN, ActionWarn},
		{IndicatorPackageTampering, ActionBlockPermanent},
	}

	for _, tc := range cases {
		report := &ThreatReport{Indicators: []Indicator{{Class: tc.class}}}
		d := Evaluate(report, "id", "m", Config{}, evalTime)
		if d.Action != tc.want {
			t.Fatalf("%v: got %v, want %v", tc.class, d.Action, tc.want)
		}
	}
}

func TestWorstIndicatorWins(t *testing.T) {
	report := &ThreatReport{Indicators: []Indicator{
		{Class: IndicatorProxyVPN},
		{Class: IndicatorRootedDevice},
		{Class: IndicatorDeveloperMode},
	}}

	d := Evaluate(report, "id", "m", Config{}, evalTime)
	if d.Action != ActionBlockPermanent {
		t.Fatalf("got %v, want BLOCK_PERMANENT", d.Action)
	}
	// Guidance belongs to the most severe contributor, not the first.
	if d.Guidance != guidance[IndicatorRootedDevice] {
		t.Fatalf("got guidance %q, want rooted-device guidance", d.Guidance)
	}
}

func TestOverrideReplacesDefault(t *testing.T) {
	cfg := Config{Overrides: map[IndicatorClass]Action{
		IndicatorEmulator: ActionDegrade,
	}}
	report := &ThreatReport{Indicators: []Indicator{{Class: IndicatorEmulator}}}

	d := Evaluate(report, "id", "m", cfg, evalTime)
	if d.Action != ActionDegrade {
		t.Fatalf("got %v, want DEGRADE from override", d.Action)
	}
}

func TestBlockTemporaryCarriesRetry(t *testing.T) {
	cfg := Config{BlockRetryAfter: time.Hour}
	report := &ThreatReport{Indicators: []Indicator{{Class: IndicatorDeveloperMode}}}

	d := Evaluate(report, "id", "m", cfg, evalTime)
	if d.Action != ActionBlockTemporary {
		t.Fatalf("got %v, want BLOCK_TEMPORARY", d.Action)
	}
	if !d.CanRetry || d.RetryAfter != time.Hour {
		t.Fatalf("got CanRetry=%v RetryAfter=%v, want true/1h", d.CanRetry, d.RetryAfter)
	}
}

func TestBlockPermanentHasNoRetry(t *testing.T) {
	report := &ThreatReport{Indicators: []Indicator{{Class: IndicatorRootedDevice}}}
	d := Evaluate(report, "id", "m", Config{BlockRetryAfter: time.Hour}, evalTime)

	if d.CanRetry || d.RetryAfter != 0 {
		t.Fatalf("got CanRetry=%v RetryAfter=%v, want false/0", d.CanRetry, d.RetryAfter)
	}
}

func TestAlertSynthesizedAtDegradeOrWorse(t *testing.T) {
	warn := Evaluate(&ThreatReport{Indicators: []Indicator{{Class: IndicatorProxyVPN}}}, "id", "m", Config{}, evalTime)
	if warn.Alert != nil {
		t.Fatal("WARN must not synthesize an alert")
	}

	cfg := Config{Overrides: map[IndicatorClass]Action{IndicatorProxyVPN: ActionDegrade}}
	degrade := Evaluate(&ThreatReport{Indicators: []Indicator{{Class: IndicatorProxyVPN}}}, "id", "m", cfg, evalTime)
	if degrade.Alert == nil {
		t.Fatal("DEGRADE must synthesize an alert")
	}
	if degrade.Alert.RequiresAction {
		t.Fatal("DEGRADE alert must not require merchant action")
	}

	block := Evaluate(&ThreatReport{Indicators: []Indicator{{Class: IndicatorRootedDevice}}}, "id", "m", Config{}, evalTime)
	if block.Alert == nil || !block.Alert.RequiresAction {
		t.Fatal("BLOCK alert must require merchant action")
	}
	if block.Alert.MerchantID != "m" || block.Alert.Identity != "id" {
		t.Fatalf("alert routing fields wrong: %+v", block.Alert)
	}
	if !block.Alert.CreatedAt.Equal(evalTime) {
		t.Fatalf("alert CreatedAt: got %v, want %v", block.Alert.CreatedAt, evalTime)
	}
}

func TestAlertListsAllIndicators(t *testing.T) {
	report := &ThreatReport{Indicators: []Indicator{
		{Class: IndicatorProxyVPN},
		{Class: IndicatorRootedDevice},
	}}
	d := Evaluate(report, "id", "m", Config{}, evalTime)

	if d.Alert == nil || len(d.Alert.Indicators) != 2 {
		t.Fatalf("expected all indicators on the alert, got %+v", d.Alert)
	}
}

func TestOverrideToAllowSuppressesEverything(t *testing.T) {
	cfg := Config{Overrides: map[IndicatorClass]Action{
		IndicatorRootedDevice: ActionAllow,
	}}
	report := &ThreatReport{Indicators: []Indicator{{Class: IndicatorRootedDevice}}}

	d := Evaluate(report, "id", "m", cfg, evalTime)
	if d.Action != ActionAllow {
		t.Fatalf("got %v, want ALLOW from override", d.Action)
	}
	if d.Alert != nil {
		t.Fatal("ALLOW override must not synthesize an alert")
	}
}

package policy

import "time"

// IndicatorClass identifies one kind of device compromise signal.
type IndicatorClass uint8

const (
	// IndicatorRootedDevice means the device has root or jailbreak access.
	IndicatorRootedDevice IndicatorClass = iota
	// IndicatorDeveloperMode means developer mode or an ADB bridge is active.
	IndicatorDeveloperMode
	// IndicatorEmulator means the app runs inside an emulator.
	IndicatorEmulator
	// IndicatorHookingFramework means an instrumentation framework is attached.
	IndicatorHookingFramework
	// IndicatorProxyVPN means traffic is routed through a proxy or VPN.
	IndicatorProxyVPN
	// IndicatorPackageTampering means the installed package fails integrity checks.
	IndicatorPackageTampering

	indicatorClassCount
)

// String returns the canonical indicator name.
func (c IndicatorClass) String() string {
	switch c {
	case IndicatorRootedDevice:
		return "rooted_device"
	case IndicatorDeveloperMode:
		return "developer_mode"
	case IndicatorEmulator:
		return "emulator"
	case IndicatorHookingFramework:
		return "hooking_framework"
	case IndicatorProxyVPN:
		return "proxy_vpn"
	case IndicatorPackageTampering:
		return "package_tampering"
	}
	return "unknown"
}

// Indicator is one detected signal inside a ThreatReport.
type Indicator struct {
	Class  IndicatorClass
	Detail string
}

// ThreatReport is the externally supplied snapshot of detected indicators.
// It is read-only to the evaluator.
type ThreatReport struct {
	Indicators []Indicator
	CapturedAt time.Time
}

// Action is a graded response, ordered by severity.
type Action uint8

const (
	// ActionAllow permits the operation.
	ActionAllow Action = iota
	// ActionWarn permits the operation and surfaces guidance to the user.
	ActionWarn
	// ActionDegrade permits the operation but flags the session for audit.
	ActionDegrade
	// ActionBlockTemporary refuses the operation; retry is possible.
	ActionBlockTemporary
	// ActionBlockPermanent refuses the operation with no retry path.
	ActionBlockPermanent
)

// String returns the canonical action name.
func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "ALLOW"
	case ActionWarn:
		return "WARN"
	case ActionDegrade:
		return "DEGRADE"
	case ActionBlockTemporary:
		return "BLOCK_TEMPORARY"
	case ActionBlockPermanent:
		return "BLOCK_PERMANENT"
	}
	return "UNKNOWN"
}

// Config carries per-indicator action overrides and the retry window handed
// to temporarily blocked callers.
type Config struct {
	// Overrides replaces the default action for an indicator class.
	Overrides map[IndicatorClass]Action
	// BlockRetryAfter is reported on BLOCK_TEMPORARY decisions.
	BlockRetryAfter time.Duration
}

// Decision is the evaluator's verdict. Alert is non-nil whenever the action
// is DEGRADE or worse.
type Decision struct {
	Action     Action
	Guidance   string
	CanRetry   bool
	RetryAfter time.Duration
	Alert      *MerchantAlert
}

// MerchantAlert is synthesized for decisions that merchants must see.
type MerchantAlert struct {
	Severity       Action
	Indicators     []IndicatorClass
	Identity       string
	MerchantID     string
	RequiresAction bool
	Message        string
	CreatedAt      time.Time
}

// defaultActions is the indicator table applied when Config carries no
// override for a class.
var defaultActions = [indicatorClassCount]Action{
	IndicatorRootedDevice:     ActionBlockPermanent,
	IndicatorDeveloperMode:    ActionBlockTemporary,
	IndicatorEmulator:         ActionBlockPermanent,
	IndicatorHookingFramework: ActionBlockPermanent,
	IndicatorProxyVPN:         ActionWarn,
	IndicatorPackageTampering: ActionBlockPermanent,
}

var guidance = [indicatorClassCount]string{
	IndicatorRootedDevice:     "this device has been modified and cannot be used for payment authentication",
	IndicatorDeveloperMode:    "disable developer mode and USB debugging, then try again",
	IndicatorEmulator:         "payment authentication is not available inside an emulator",
	IndicatorHookingFramework: "a tampering framework was detected on this device",
	IndicatorProxyVPN:         "your connection is routed through a proxy or VPN; authentication will proceed with extra checks",
	IndicatorPackageTampering: "the application failed integrity verification; reinstall from the official store",
}

// ActionFor resolves the configured action for one indicator class.
func ActionFor(class IndicatorClass, cfg Config) Action {
	if a, ok := cfg.Overrides[class]; ok {
		return a
	}
	if int(class) < len(defaultActions) {
		return defaultActions[class]
	}
	return ActionAllow
}

// Evaluate derives a Decision from a threat report. A nil or empty report
// yields ALLOW. The decision action is the most severe action among detected
// indicators, and the guidance text belongs to the most severe contributor.
func Evaluate(report *ThreatReport, identity, merchantID string, cfg Config, now time.Time) Decision {
	if report == nil || len(report.Indicators) == 0 {
		return Decision{Action: ActionAllow}
	}

	worst := ActionAllow
	var worstClass IndicatorClass
	first := true
	classes := make([]IndicatorClass, 0, len(report.Indicators))

	for _, ind := range report.Indicators {
		classes = append(classes, ind.Class)
		if a := ActionFor(ind.Class, cfg); first || a > worst {
			worst = a
			worstClass = ind.Class
			first = false
		}
	}

	d := Decision{
		Action:   worst,
		Guidance: guidanceFor(worstClass),
	}
	if worst == ActionBlockTemporary {
		d.CanRetry = true
		d.RetryAfter = cfg.BlockRetryAfter
	}

	if worst >= ActionDegrade {
		d.Alert = &MerchantAlert{
			Severity:       worst,
			Indicators:     classes,
			Identity:       identity,
			MerchantID:     merchantID,
			RequiresAction: worst >= ActionBlockTemporary,
			Message:        d.Guidance,
			CreatedAt:      now,
		}
	}

	return d
}

func guidanceFor(class IndicatorClass) string {
	if int(class) < len(guidance) {
		return guidance[class]
	}
	return ""
}

package factorgate

import (
	"context"
	"io"
	"time"

	internalalerts "github.com/factorgate/factorgate/internal/alerts"
	internalaudit "github.com/factorgate/factorgate/internal/audit"
	"github.com/factorgate/factorgate/internal/policy"
	"github.com/factorgate/factorgate/internal/ratelimit"
)

// Identity is the opaque stable principal id an enrollment is keyed by. It
// never holds raw factor material and is generated by the engine at
// enrollment time.
type Identity string

// FactorType identifies one unit of authentication evidence.
type FactorType uint8

const (
	// FactorPIN is a numeric knowledge factor.
	FactorPIN FactorType = iota
	// FactorPassword is a free-form knowledge factor.
	FactorPassword
	// FactorPattern is a grid-pattern knowledge factor.
	FactorPattern
	// FactorMouseDynamics is a pointer-trajectory behavioral factor.
	FactorMouseDynamics
	// FactorStylusDynamics is a stylus-trajectory behavioral factor.
	FactorStylusDynamics
	// FactorVoice is a voiceprint behavioral factor.
	FactorVoice
	// FactorDeviceKey is a device-bound key possession factor.
	FactorDeviceKey
	// FactorSecurityKey is an external hardware-key possession factor.
	FactorSecurityKey

	factorTypeCount
)

// String returns the canonical factor name.
func (t FactorType) String() string {
	switch t {
	case FactorPIN:
		return "pin"
	case FactorPassword:
		return "password"
	case FactorPattern:
		return "pattern"
	case FactorMouseDynamics:
		return "mouse_dynamics"
	case FactorStylusDynamics:
		return "stylus_dynamics"
	case FactorVoice:
		return "voice"
	case FactorDeviceKey:
		return "device_key"
	case FactorSecurityKey:
		return "security_key"
	}
	return "unknown"
}

// FactorCategory groups factor types for the enrollment diversity rule.
type FactorCategory uint8

const (
	// CategoryKnowledge covers something the user knows.
	CategoryKnowledge FactorCategory = iota
	// CategoryPossession covers something the user has.
	CategoryPossession
	// CategoryInherence covers something the user is or does.
	CategoryInherence
)

// Category returns the factor's category.
func (t FactorType) Category() FactorCategory {
	switch t {
	case FactorPIN, FactorPassword, FactorPattern:
		return CategoryKnowledge
	case FactorDeviceKey, FactorSecurityKey:
		return CategoryPossession
	default:
		return CategoryInherence
	}
}

// DigestSize is the fixed digest length every factor digest provider must
// produce.
const DigestSize = 32

// FactorDigest pairs a factor type with its fixed-size digest. The digest is
// a one-way hash standing in for the factor's secret; the engine rejects
// degenerate digests (all-zero, all-same-byte) on every input path.
type FactorDigest struct {
	Type      FactorType
	Digest    []byte
	CreatedAt time.Time
	Metadata  map[string]string
}

// EnrollmentResult is returned by [Engine.Enroll].
type EnrollmentResult struct {
	Identity    Identity
	Alias       string
	FactorCount int
	Types       []FactorType
}

// EnrollmentSummary is returned by [Engine.GetEnrollmentSummary]. It exposes
// factor types only, never digests.
type EnrollmentSummary struct {
	Identity Identity
	Types    []FactorType
}

// SessionState is the lifecycle state of a verification session.
type SessionState uint8

const (
	// SessionCreated means the session exists but holds no submissions yet.
	SessionCreated SessionState = iota
	// SessionAccumulating means at least one required factor has arrived.
	SessionAccumulating
	// SessionEvaluating means the full required set is being compared.
	SessionEvaluating
	// SessionSucceeded is terminal: every required factor matched.
	SessionSucceeded
	// SessionRetryableFailure means a mismatch occurred with attempts left.
	SessionRetryableFailure
	// SessionTerminalFailure is terminal: the attempt cap was reached.
	SessionTerminalFailure
	// SessionExpired is terminal: the session outlived its TTL.
	SessionExpired
)

// String returns the canonical state name.
func (s SessionState) String() string {
	switch s {
	case SessionCreated:
		return "created"
	case SessionAccumulating:
		return "accumulating"
	case SessionEvaluating:
		return "evaluating"
	case SessionSucceeded:
		return "succeeded"
	case SessionRetryableFailure:
		return "retryable_failure"
	case SessionTerminalFailure:
		return "terminal_failure"
	case SessionExpired:
		return "expired"
	}
	return "unknown"
}

// SessionInfo is the caller-visible view of a created session.
type SessionInfo struct {
	ID         string
	Identity   Identity
	MerchantID string
	Amount     int64
	Required   []FactorType
	ExpiresAt  time.Time
	Degraded   bool
	Remote     bool
}

// SubmitResult is returned by [Engine.SubmitFactor]. While the required set
// is incomplete, State is SessionAccumulating and Pending lists the missing
// types. Once the set completes, evaluation runs synchronously in the same
// call and State is SessionSucceeded with the optional proof attached.
type SubmitResult struct {
	State    SessionState
	Pending  []FactorType
	Verified bool
	Proof    []byte
}

// DurableStore is the authoritative persistence capability for enrollment
// records. Implementations must make writes visible to Retrieve immediately.
type DurableStore interface {
	Store(ctx context.Context, identity Identity, factorType FactorType, digest []byte) error
	Retrieve(ctx context.Context, identity Identity) (map[FactorType][]byte, error)
	Delete(ctx context.Context, identity Identity, types ...FactorType) error
}

// CacheStore mirrors enrollment records for fast retrieval. It is advisory
// only: failures never block the primary flow, and entries carry a bounded
// TTL.
type CacheStore interface {
	Store(ctx context.Context, identity Identity, factorType FactorType, digest []byte) error
	Retrieve(ctx context.Context, identity Identity) (map[FactorType][]byte, error)
	Delete(ctx context.Context, identity Identity, types ...FactorType) error
}

// RemoteSession is returned by [RemoteVerifier.CreateRemoteSession].
type RemoteSession struct {
	ID       string
	Required []FactorType
}

// RemoteVerdict is returned by [RemoteVerifier.VerifyRemote].
type RemoteVerdict struct {
	Verified bool
	Proof    []byte
}

// RemoteVerifier is the optional primary verification capability. Calls run
// behind a bounded timeout and a circuit breaker; any failure routes to the
// local fallback path.
type RemoteVerifier interface {
	CreateRemoteSession(ctx context.Context, identity Identity, merchantID string, amount int64) (*RemoteSession, error)
	VerifyRemote(ctx context.Context, sessionID string, identity Identity, digests map[FactorType][]byte) (*RemoteVerdict, error)
}

// ThreatDetector is the optional device tamper probe. Absence defaults every
// decision to ALLOW.
type ThreatDetector interface {
	Snapshot(ctx context.Context) (*ThreatReport, error)
}

// ProofGenerator is the optional zero-knowledge proof capability. Failure is
// non-fatal: verification success is reported with the proof omitted.
type ProofGenerator interface {
	GenerateProof(ctx context.Context, identity Identity, sessionID string) ([]byte, error)
}

// FraudChecker is the external fraud heuristic consulted before session
// creation. A non-nil error vetoes the session.
type FraudChecker interface {
	Assess(ctx context.Context, identity Identity, merchantID string, amount int64) error
}

// FactorDigestProvider turns one kind of raw factor input into a
// deterministic fixed-size digest.
type FactorDigestProvider interface {
	Digest(input FactorInput) ([]byte, error)
}

// ThreatReport is the externally supplied device threat snapshot.
type ThreatReport = policy.ThreatReport

// ThreatIndicator is one detected signal inside a [ThreatReport].
type ThreatIndicator = policy.Indicator

// IndicatorClass identifies one kind of device compromise signal.
type IndicatorClass = policy.IndicatorClass

const (
	// IndicatorRootedDevice means the device has root or jailbreak access.
	IndicatorRootedDevice = policy.IndicatorRootedDevice
	// IndicatorDeveloperMode means developer mode or an ADB bridge is active.
	IndicatorDeveloperMode = policy.IndicatorDeveloperMode
	// IndicatorEmulator means the app runs inside an emulator.
	IndicatorEmulator = policy.IndicatorEmulator
	// IndicatorHookingFramework means an instrumentation framework is attached.
	IndicatorHookingFramework = policy.IndicatorHookingFramework
	// IndicatorProxyVPN means traffic is routed through a proxy or VPN.
	IndicatorProxyVPN = policy.IndicatorProxyVPN
	// IndicatorPackageTampering means the package fails integrity checks.
	IndicatorPackageTampering = policy.IndicatorPackageTampering
)

// PolicyAction is a graded response, ordered
// ALLOW < WARN < DEGRADE < BLOCK_TEMPORARY < BLOCK_PERMANENT.
type PolicyAction = policy.Action

const (
	// ActionAllow permits the operation.
	ActionAllow = policy.ActionAllow
	// ActionWarn permits the operation and surfaces guidance.
	ActionWarn = policy.ActionWarn
	// ActionDegrade permits the operation but flags the session for audit.
	ActionDegrade = policy.ActionDegrade
	// ActionBlockTemporary refuses the operation; retry is possible.
	ActionBlockTemporary = policy.ActionBlockTemporary
	// ActionBlockPermanent refuses the operation with no retry path.
	ActionBlockPermanent = policy.ActionBlockPermanent
)

// SecurityDecision is the policy evaluator's verdict for a threat report.
type SecurityDecision = policy.Decision

// MerchantAlert is synthesized for DEGRADE-or-worse decisions.
type MerchantAlert = policy.MerchantAlert

// PolicyConfig carries per-indicator action overrides.
type PolicyConfig = policy.Config

// EvaluatePolicy derives a [SecurityDecision] from a threat report without
// touching engine state. Exposed so merchant backends can pre-screen.
func EvaluatePolicy(report *ThreatReport, identity Identity, merchantID string, cfg PolicyConfig) SecurityDecision {
	return policy.Evaluate(report, string(identity), merchantID, cfg, time.Now())
}

// RateLimitStatus is the limiter's verdict for one identity.
type RateLimitStatus = ratelimit.Status

const (
	// RateLimitOK means the identity may attempt verification.
	RateLimitOK = ratelimit.StatusOK
	// RateLimitCooldown15M means the short cooldown tier is active.
	RateLimitCooldown15M = ratelimit.StatusCooldown15M
	// RateLimitCooldown4H means the long cooldown tier is active.
	RateLimitCooldown4H = ratelimit.StatusCooldown4H
	// RateLimitFrozenFraud means the identity is frozen until explicit reset.
	RateLimitFrozenFraud = ratelimit.StatusFrozenFraud
	// RateLimitBlocked24H means the rolling-day attempt budget is spent.
	RateLimitBlocked24H = ratelimit.StatusBlocked24H
)

// Alert is the wire-neutral alert record handed to delivery channels.
type Alert = internalalerts.Alert

// AlertChannel delivers merchant alerts over one transport.
type AlertChannel = internalalerts.Channel

// AlertChannelKind classifies a delivery channel for routing.
type AlertChannelKind = internalalerts.ChannelKind

const (
	// ChannelWebhook is merchant-backend HTTP delivery.
	ChannelWebhook = internalalerts.KindWebhook
	// ChannelRealtime is push delivery to a live merchant connection.
	ChannelRealtime = internalalerts.KindRealtime
	// ChannelDurable persists the alert for later retrieval.
	ChannelDurable = internalalerts.KindDurable
)

// AlertPriority selects the delivery route for one alert.
type AlertPriority = internalalerts.Priority

const (
	// PriorityLow is durable-store-only delivery.
	PriorityLow = internalalerts.PriorityLow
	// PriorityNormal is webhook-only delivery.
	PriorityNormal = internalalerts.PriorityNormal
	// PriorityHigh is webhook with durable-store fallback.
	PriorityHigh = internalalerts.PriorityHigh
	// PriorityCritical fans out to every channel concurrently.
	PriorityCritical = internalalerts.PriorityCritical
)

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport].
type SecurityReport struct {
	MinFactors               int
	MaxFactors               int
	RequiredCategories       int
	SessionTTL               time.Duration
	MaxAttempts              int
	DailyAttemptLimit        int
	FreezeThreshold          int
	ThreatPolicyActive       bool
	RemoteVerificationActive bool
	BreakerState             string
	CacheActive              bool
	ProofGenerationActive    bool
	FraudCheckActive         bool
	AlertChannels            []string
	AuditActive              bool
	MetricsActive            bool
}

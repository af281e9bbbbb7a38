package factorgate

import (
	"errors"
	"fmt"
	"time"

	"github.com/factorgate/factorgate/internal/digest"
)

var (
	// ErrEngineNotReady means the engine was not initialized through Builder.Build.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrNotEnrolled means no usable enrollment record exists for the identity.
	ErrNotEnrolled = errors.New("identity not enrolled or enrollment expired")
	// ErrSessionNotFound means the session id matches no live session.
	ErrSessionNotFound = errors.New("verification session not found")
	// ErrSessionExpired means the session outlived its TTL.
	ErrSessionExpired = errors.New("verification session expired")
	// ErrFactorNotRequested means a submitted factor type is outside the session's required set.
	ErrFactorNotRequested = errors.New("factor type not requested by session")
	// ErrDigestMismatch means at least one required factor failed comparison.
	ErrDigestMismatch = errors.New("factor digest mismatch")
	// ErrAttemptsExhausted means the session reached its attempt cap and was evicted.
	ErrAttemptsExhausted = errors.New("verification attempts exhausted")
	// ErrRateLimited means the identity is inside a cooldown or attempt block.
	ErrRateLimited = errors.New("verification rate limited")
	// ErrSecurityViolation means device threat policy refused the operation.
	ErrSecurityViolation = errors.New("security policy violation")
	// ErrFraudSuspected means the external fraud heuristic vetoed the session.
	ErrFraudSuspected = errors.New("fraud heuristic veto")
	// ErrFactorCountInvalid means the factor selection is outside the allowed bounds.
	ErrFactorCountInvalid = errors.New("factor count outside allowed range")
	// ErrDuplicateFactor means the same factor type appears twice in one enrollment.
	ErrDuplicateFactor = errors.New("duplicate factor type")
	// ErrCategoryCoverage means the selection spans too few factor categories.
	ErrCategoryCoverage = errors.New("factor selection spans too few categories")
	// ErrExclusiveFactors means the selection combines mutually exclusive near-duplicate factors.
	ErrExclusiveFactors = errors.New("mutually exclusive factor types selected")
	// ErrNoDigestProvider means no provider is registered for the input's factor type.
	ErrNoDigestProvider = errors.New("no digest provider for factor type")
	// ErrStoreUnavailable wraps durable-store failures that exhausted their fallbacks.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrRemoteUnavailable wraps remote-capability failures that exhausted their fallbacks.
	ErrRemoteUnavailable = errors.New("remote capability unavailable")

	// ErrDigestLength means a digest is not exactly DigestSize bytes.
	ErrDigestLength = digest.ErrLength
	// ErrDigestDegenerate means a digest is all-same-byte and cannot be real.
	ErrDigestDegenerate = digest.ErrDegenerate
)

// RateLimitError reports a rate-limit veto with its machine-checkable
// retry-after signal. RetryAfter is zero and Indefinite true for a fraud
// freeze, which only an explicit reset lifts.
type RateLimitError struct {
	Status     RateLimitStatus
	RetryAfter time.Duration
	Indefinite bool
}

func (e *RateLimitError) Error() string {
	if e.Indefinite {
		return fmt.Sprintf("verification rate limited: %s", e.Status)
	}
	return fmt.Sprintf("verification rate limited: %s, retry after %s", e.Status, e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// SecurityViolationError reports a BLOCK_* policy decision. CanRetry and
// RetryAfter are set only for BLOCK_TEMPORARY; a permanent block carries no
// retry signal.
type SecurityViolationError struct {
	Action     PolicyAction
	Guidance   string
	CanRetry   bool
	RetryAfter time.Duration
}

func (e *SecurityViolationError) Error() string {
	return fmt.Sprintf("security policy violation: %s", e.Action)
}

func (e *SecurityViolationError) Is(target error) bool { return target == ErrSecurityViolation }

// DigestMismatchError reports a failed evaluation that left the session open.
// AttemptsRemaining is how many further evaluations the session will accept.
type DigestMismatchError struct {
	AttemptsRemaining int
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("factor digest mismatch, %d attempts remaining", e.AttemptsRemaining)
}

func (e *DigestMismatchError) Is(target error) bool { return target == ErrDigestMismatch }

package factorgate

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/factorgate/factorgate/internal/digest"
)

// exclusivePairs lists near-duplicate behavioral variants that must not be
// enrolled together: their digests derive from the same trajectory features,
// so the pair adds no real second factor.
var exclusivePairs = [][2]FactorType{
	{FactorMouseDynamics, FactorStylusDynamics},
}

// Enroll validates and commits a factor set, generating a fresh opaque
// identity and derived alias. Digests are written to the durable store
// sequentially and then mirrored into the cache; a cache failure is audited
// and non-fatal. Any durable write failure rolls back everything already
// written for this identity from both stores, so a partial enrollment is
// never visible to verification.
func (e *Engine) Enroll(ctx context.Context, factors []FactorDigest) (*EnrollmentResult, error) {
	if e == nil || e.durable == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.validateFactorSet(factors); err != nil {
		e.metricInc(MetricEnrollRejected)
		e.emitAudit(ctx, auditEventEnrollRejected, false, "", "", "", err, nil)
		return nil, err
	}

	identity := Identity(newID())
	alias := deriveAlias(identity)

	for i, f := range factors {
		if err := e.durable.Store(ctx, identity, f.Type, f.Digest); err != nil {
			e.rollbackEnrollment(ctx, identity)
			e.metricInc(MetricEnrollRollback)
			e.emitAudit(ctx, auditEventEnrollRollback, false, identity, "", "", err, map[string]string{
				"failed_item": fmt.Sprintf("%d/%d", i+1, len(factors)),
			})
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if e.cache != nil {
		for _, f := range factors {
			if err := e.cache.Store(ctx, identity, f.Type, f.Digest); err != nil {
				// Durable store is authoritative; the mirror is advisory.
				e.metricInc(MetricEnrollCacheMirrorFailure)
				e.emitAudit(ctx, auditEventEnrollCacheFailure, false, identity, "", "", err, nil)
				break
			}
		}
	}

	types := make([]FactorType, 0, len(factors))
	for _, f := range factors {
		types = append(types, f.Type)
	}

	e.metricInc(MetricEnrollSuccess)
	e.emitAudit(ctx, auditEventEnrollCommitted, true, identity, "", "", nil, map[string]string{
		"factor_count": fmt.Sprintf("%d", len(factors)),
	})

	return &EnrollmentResult{
		Identity:    identity,
		Alias:       alias,
		FactorCount: len(factors),
		Types:       types,
	}, nil
}

// DeleteEnrollment removes every persisted digest for the identity from both
// stores. Re-enrollment is delete followed by a fresh Enroll.
func (e *Engine) DeleteEnrollment(ctx context.Context, identity Identity) error {
	if e == nil || e.durable == nil {
		return ErrEngineNotReady
	}

	if err := e.durable.Delete(ctx, identity); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if e.cache != nil {
		// Best effort; the durable delete already made the record unusable.
		_ = e.cache.Delete(ctx, identity)
	}

	e.emitAudit(ctx, auditEventEnrollDeleted, true, identity, "", "", nil, nil)
	return nil
}

// GetEnrollmentSummary reports the enrolled factor types for an identity
// without exposing digests.
func (e *Engine) GetEnrollmentSummary(ctx context.Context, identity Identity) (*EnrollmentSummary, error) {
	if e == nil || e.durable == nil {
		return nil, ErrEngineNotReady
	}

	record, err := e.retrieveEnrollment(ctx, identity)
	if err != nil {
		return nil, err
	}
	if len(record) == 0 {
		return nil, ErrNotEnrolled
	}

	types := make([]FactorType, 0, len(record))
	for t, d := range record {
		types = append(types, t)
		digest.Wipe(d)
	}

	return &EnrollmentSummary{Identity: identity, Types: types}, nil
}

// validateFactorSet enforces the enrollment invariants: 2–4 factors spanning
// at least two categories, no duplicate types, no exclusive near-duplicate
// pair, and no degenerate digest.
func (e *Engine) validateFactorSet(factors []FactorDigest) error {
	min, max := e.config.Enrollment.MinFactors, e.config.Enrollment.MaxFactors
	if len(factors) < min || len(factors) > max {
		return fmt.Errorf("%w: got %d, want %d..%d", ErrFactorCountInvalid, len(factors), min, max)
	}

	seen := make(map[FactorType]struct{}, len(factors))
	categories := make(map[FactorCategory]struct{}, 3)
	for _, f := range factors {
		if _, dup := seen[f.Type]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateFactor, f.Type)
		}
		seen[f.Type] = struct{}{}
		categories[f.Type.Category()] = struct{}{}

		if err := checkDigest(f.Digest); err != nil {
			return fmt.Errorf("%s: %w", f.Type, err)
		}
	}

	if len(categories) < e.config.Enrollment.RequiredCategories {
		return fmt.Errorf("%w: got %d categories, want %d", ErrCategoryCoverage, len(categories), e.config.Enrollment.RequiredCategories)
	}

	for _, pair := range exclusivePairs {
		_, a := seen[pair[0]]
		_, b := seen[pair[1]]
		if a && b {
			return fmt.Errorf("%w: %s and %s", ErrExclusiveFactors, pair[0], pair[1])
		}
	}

	return nil
}

// rollbackEnrollment deletes everything already written for the identity
// from both stores. Errors are swallowed: the identity was never surfaced to
// the caller, so an orphaned row is unreachable garbage, not a leak of
// verifiable state.
func (e *Engine) rollbackEnrollment(ctx context.Context, identity Identity) {
	_ = e.durable.Delete(ctx, identity)
	if e.cache != nil {
		_ = e.cache.Delete(ctx, identity)
	}
}

// retrieveEnrollment reads the persisted digest map, preferring the advisory
// cache and falling back to the durable store. Cache failures are invisible
// to the caller.
func (e *Engine) retrieveEnrollment(ctx context.Context, identity Identity) (map[FactorType][]byte, error) {
	if e.cache != nil {
		if record, err := e.cache.Retrieve(ctx, identity); err == nil && len(record) > 0 {
			return record, nil
		}
	}

	record, err := e.durable.Retrieve(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return record, nil
}

func checkDigest(d []byte) error {
	return digest.CheckIntegrity(d)
}

func newID() string {
	return uuid.NewString()
}

// deriveAlias produces the stable public alias for an identity. The alias is
// a one-way derivation, so holding it reveals nothing about the identity id.
func deriveAlias(identity Identity) string {
	sum := blake2b.Sum256([]byte("factorgate/alias:" + identity))
	return "fg-" + hex.EncodeToString(sum[:8])
}

// Package digest implements the constant-time comparison primitives used by
// the verification and enrollment flows.
//
// Compare and BatchCompare are the only code paths allowed to touch two
// digests at once. Both scan their full inputs unconditionally so execution
// time does not depend on where, or whether, the inputs differ. Integrity
// checks for malformed digests live on the validation path and must never be
// folded into the comparison path.
package digest

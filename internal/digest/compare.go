package digest

import (
	"crypto/subtle"
	"errors"
)

// Size is the fixed digest length produced by every factor digest provider.
const Size = 32

var (
	// ErrLength indicates a digest that is not exactly Size bytes.
	ErrLength = errors.New("digest has invalid length")
	// ErrDegenerate indicates an all-same-byte digest (including all-zero
	// and all-0xFF), which no real digest function emits.
	ErrDegenerate = errors.New("digest is degenerate")
)

// Compare reports whether a and b hold the same bytes. The scan always covers
// the longer of the two inputs, with missing bytes treated as zero, and never
// branches on an intermediate result. Both inputs are wiped before returning,
// regardless of outcome.
func Compare(a, b []byte) bool {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}

	var acc byte
	for i := 0; i < n; i++ {
		var av, bv byte
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		acc |= av ^ bv
	}

	// A zero-padded prefix match must still fail when lengths differ.
	acc |= byte(subtle.ConstantTimeEq(int32(len(a)), int32(len(b))) ^ 1)

	Wipe(a)
	Wipe(b)

	return acc == 0
}

// BatchCompare compares every required key's submitted digest against its
// persisted counterpart. Every entry is visited even after an earlier
// mismatch, keeping aggregate timing stable. A required key with no persisted
// digest counts as a failed comparison but still consumes a full pass over
// the submitted bytes. All visited digests are wiped by Compare.
func BatchCompare[K comparable](required []K, submitted, persisted map[K][]byte) bool {
	ok := true
	for _, k := range required {
		// persisted[k] is nil for a missing key; Compare pads and fails
		// without short-circuiting the scan.
		r := Compare(submitted[k], persisted[k])
		ok = ok && r
	}
	return ok
}

// CheckIntegrity rejects digests that cannot have come from a real digest
// function: wrong length, or every byte identical (all-zero and all-0xFF are
// the common corruption patterns). This runs on the input-validation path,
// never inside Compare.
func CheckIntegrity(d []byte) error {
	if len(d) != Size {
		return ErrLength
	}

	same := true
	for i := 1; i < len(d); i++ {
		if d[i] != d[0] {
			same = false
		}
	}
	if same {
		return ErrDegenerate
	}

	return nil
}

// Wipe zeroes b in place.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Clone returns an independent copy of d. Callers hand copies to Compare so
// wiping does not destroy retained state.
func Clone(d []byte) []byte {
	if d == nil {
		return nil
	}
	out := make([]byte, len(d))
	copy(out, d)
	return out
}

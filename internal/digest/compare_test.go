package digest

import (
	"bytes"
	"testing"
)

func sample(seed byte) []byte {
	d := make([]byte, Size)
	for i := range d {
		d[i] = seed + byte(i)
	}
	return d
}

func TestCompareEqual(t *testing.T) {
	a := sample(1)
	b := sample(1)

	if !Compare(a, b) {
		t.Fatal("expected equal digests to compare true")
	}
}

func TestCompareMismatch(t *testing.T) {
	a := sample(1)
	b := sample(1)
	b[Size-1] ^= 0x01

	if Compare(a, b) {
		t.Fatal("expected mismatched digests to compare false")
	}
}

func TestCompareLengthMismatch(t *testing.T) {
	a := sample(1)
	// b is a's prefix; zero padding must not make it pass.
	b := make([]byte, Size/2)
	copy(b, sample(1))

	if Compare(a, b) {
		t.Fatal("expected length mismatch to compare false")
	}
}

func TestCompareZeroPaddedPrefixFails(t *testing.T) {
	a := sample(1)
	b := make([]byte, Size+8)
	copy(b, sample(1))

	if Compare(a, b) {
		t.Fatal("expected zero-padded longer digest to compare false")
	}
}

func TestCompareWipesInputs(t *testing.T) {
	a := sample(1)
	b := sample(2)
	Compare(a, b)

	zero := make([]byte, Size)
	if !bytes.Equal(a, zero) || !bytes.Equal(b, zero) {
		t.Fatal("expected both inputs wiped after compare")
	}

	a = sample(3)
	b = sample(3)
	Compare(a, b)
	if !bytes.Equal(a, zero) || !bytes.Equal(b, zero) {
		t.Fatal("expected both inputs wiped after a matching compare")
	}
}

func TestCompareEmptyInputs(t *testing.T) {
	if !Compare(nil, nil) {
		t.Fatal("expected two empty digests to compare true")
	}
	if Compare(sample(1), nil) {
		t.Fatal("expected empty-vs-full to compare false")
	}
}

func TestBatchCompareAllMatch(t *testing.T) {
	required := []string{"pin", "pattern"}
	submitted := map[string][]byte{"pin": sample(1), "pattern": sample(2)}
	persisted := map[string][]byte{"pin": sample(1), "pattern": sample(2)}

	if !BatchCompare(required, submitted, persisted) {
		t.Fatal("expected full match")
	}
}

func TestBatchCompareOneMismatch(t *testing.T) {
	required := []string{"pin", "pattern"}
	submitted := map[string][]byte{"pin": sample(1), "pattern": sample(9)}
	persisted := map[string][]byte{"pin": sample(1), "pattern": sample(2)}

	if BatchCompare(required, submitted, persisted) {
		t.Fatal("expected mismatch on one entry to fail the batch")
	}
}

func TestBatchCompareMissingPersisted(t *testing.T) {
	required := []string{"pin", "pattern"}
	submitted := map[string][]byte{"pin": sample(1), "pattern": sample(2)}
	persisted := map[string][]byte{"pin": sample(1)}

	if BatchCompare(required, submitted, persisted) {
		t.Fatal("expected missing persisted digest to fail the batch")
	}
}

func TestBatchCompareVisitsAllEntries(t *testing.T) {
	// The first entry mismatches; the second must still be visited and wiped.
	required := []string{"a", "b"}
	submitted := map[string][]byte{"a": sample(9), "b": sample(2)}
	persisted := map[string][]byte{"a": sample(1), "b": sample(2)}

	if BatchCompare(required, submitted, persisted) {
		t.Fatal("expected batch to fail")
	}

	zero := make([]byte, Size)
	if !bytes.Equal(submitted["b"], zero) || !bytes.Equal(persisted["b"], zero) {
		t.Fatal("expected later entries wiped despite earlier mismatch")
	}
}

func TestCheckIntegrity(t *testing.T) {
	cases := []struct {
		name   string
		digest []byte
		want   error
	}{
		{"valid", sample(1), nil},
		{"short", make([]byte, Size-1), ErrLength},
		{"long", make([]byte, Size+1), ErrLength},
		{"all zero", make([]byte, Size), ErrDegenerate},
		{"all ff", bytes.Repeat([]byte{0xFF}, Size), ErrDegenerate},
		{"all same", bytes.Repeat([]byte{0x5A}, Size), ErrDegenerate},
	}

	for _, tc := range cases {
		if got := CheckIntegrity(tc.digest); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCloneIndependent(t *testing.T) {
	a := sample(1)
	b := Clone(a)
	Wipe(a)

	if bytes.Equal(a, b) {
		t.Fatal("expected clone to survive wiping the original")
	}
	if Clone(nil) != nil {
		t.Fatal("expected nil clone for nil input")
	}
}

package factorgate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// testClock is the injectable time source shared by the engine and its
// limiter in tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memStore is an in-memory DurableStore/CacheStore with scriptable failures.
type memStore struct {
	mu      sync.Mutex
	records map[Identity]map[FactorType][]byte

	failAfterStores int // fail the nth Store call (1-based); 0 disables
	storeCalls      int
	failRetrieve    bool
	failAll         bool
}

func newMemStore() *memStore {
	return &memStore{records: make(map[Identity]map[FactorType][]byte)}
}

func (s *memStore) Store(_ context.Context, identity Identity, factorType FactorType, digest []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.storeCalls++
	if s.failAll || (s.failAfterStores > 0 && s.storeCalls >= s.failAfterStores) {
		return errors.New("backend down")
	}

	rec, ok := s.records[identity]
	if !ok {
		rec = make(map[FactorType][]byte)
		s.records[identity] = rec
	}
	d := make([]byte, len(digest))
	copy(d, digest)
	rec[factorType] = d
	return nil
}

func (s *memStore) Retrieve(_ context.Context, identity Identity) (map[FactorType][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAll || s.failRetrieve {
		return nil, errors.New("backend down")
	}

	out := make(map[FactorType][]byte, len(s.records[identity]))
	for t, d := range s.records[identity] {
		c := make([]byte, len(d))
		copy(c, d)
		out[t] = c
	}
	return out, nil
}

func (s *memStore) Delete(_ context.Context, identity Identity, types ...FactorType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAll {
		return errors.New("backend down")
	}

	if len(types) == 0 {
		delete(s.records, identity)
		return nil
	}
	for _, t := range types {
		delete(s.records[identity], t)
	}
	return nil
}

func (s *memStore) factorCount(identity Identity) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[identity])
}

func (s *memStore) identityCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// fakeRemote scripts the RemoteVerifier capability.
type fakeRemote struct {
	mu sync.Mutex

	createErr error
	session   *RemoteSession

	verifyErr   error
	verdict     *RemoteVerdict
	verifyCalls int
}

func (r *fakeRemote) CreateRemoteSession(_ context.Context, _ Identity, _ string, _ int64) (*RemoteSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	return r.session, nil
}

func (r *fakeRemote) VerifyRemote(_ context.Context, _ string, _ Identity, _ map[FactorType][]byte) (*RemoteVerdict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifyCalls++
	if r.verifyErr != nil {
		return nil, r.verifyErr
	}
	return r.verdict, nil
}

type fakeThreats struct {
	report *ThreatReport
	err    error
}

func (f *fakeThreats) Snapshot(context.Context) (*ThreatReport, error) {
	return f.report, f.err
}

type fakeProofs struct {
	proof []byte
	err   error
}

func (f *fakeProofs) GenerateProof(context.Context, Identity, string) ([]byte, error) {
	return f.proof, f.err
}

type fakeFraud struct {
	err error
}

func (f *fakeFraud) Assess(context.Context, Identity, string, int64) error {
	return f.err
}

func testDigest(seed byte) []byte {
	d := make([]byte, DigestSize)
	for i := range d {
		d[i] = seed + byte(i)
	}
	return d
}

type engineFixture struct {
	engine  *Engine
	durable *memStore
	cache   *memStore
	clock   *testClock
}

type fixtureOption func(*Builder)

func newFixture(t *testing.T, opts ...fixtureOption) *engineFixture {
	t.Helper()

	durable := newMemStore()
	cache := newMemStore()
	clock := newTestClock()

	b := NewBuilder().
		WithDurableStore(durable).
		WithCacheStore(cache).
		WithClock(clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &engineFixture{
		engine:  engine,
		durable: durable,
		cache:   cache,
		clock:   clock,
	}
}

// enroll commits a PIN+device-key pair and returns the identity. The pair
// spans two categories, satisfying the default coverage rule.
func (f *engineFixture) enroll(t *testing.T) Identity {
	t.Helper()

	result, err := f.engine.Enroll(context.Background(), []FactorDigest{
		{Type: FactorPIN, Digest: testDigest(1)},
		{Type: FactorDeviceKey, Digest: testDigest(2)},
	})
	if err != nil {
		t.Fatalf("Enroll failed: %v", err)
	}
	return result.Identity
}

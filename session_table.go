package factorgate

import (
	"sync"
	"time"

	"github.com/factorgate/factorgate/internal/digest"
)

// verificationSession is the ephemeral per-session record. All mutable
// fields are guarded by mu; submit-and-evaluate runs as one atomic unit
// under it. createdAt, expiresAt, required, and identity are immutable after
// construction and may be read without the lock.
type verificationSession struct {
	mu sync.Mutex

	id         string
	identity   Identity
	merchantID string
	amount     int64

	required     map[FactorType]struct{}
	requiredList []FactorType
	submitted    map[FactorType][]byte

	attempts    int
	maxAttempts int

	createdAt time.Time
	expiresAt time.Time

	state    SessionState
	degraded bool
	evicted  bool

	remoteID  string
	persisted map[FactorType][]byte
}

// pendingLocked lists required types with no submission yet. Caller holds mu.
func (s *verificationSession) pendingLocked() []FactorType {
	var out []FactorType
	for _, t := range s.requiredList {
		if _, ok := s.submitted[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

// wipeLocked zeroes all retained digests. Caller holds mu. No state from an
// evicted session is consulted afterward.
func (s *verificationSession) wipeLocked() {
	for _, d := range s.submitted {
		digest.Wipe(d)
	}
	for _, d := range s.persisted {
		digest.Wipe(d)
	}
	s.submitted = nil
	s.persisted = nil
}

// sessionTable is the keyed session map. The table lock covers only map
// membership; per-session state has its own lock, so the table lock is never
// held across I/O.
type sessionTable struct {
	mu       sync.RWMutex
	sessions map[string]*verificationSession
}

func newSessionTable() *sessionTable {
	return &sessionTable{
		sessions: make(map[string]*verificationSession),
	}
}

func (t *sessionTable) get(id string) *verificationSession {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessions[id]
}

func (t *sessionTable) put(s *verificationSession) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[s.id] = s
}

// remove drops the session from the table and returns it. Eviction marking
// and wiping belong to whoever holds the session lock.
func (t *sessionTable) remove(id string) *verificationSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.sessions[id]
	delete(t.sessions, id)
	return s
}

func (t *sessionTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// expired collects sessions past their deadline and removes them from the
// table. expiresAt is immutable, so reading it under the table lock is safe.
func (t *sessionTable) expired(now time.Time) []*verificationSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []*verificationSession
	for id, s := range t.sessions {
		if now.After(s.expiresAt) {
			out = append(out, s)
			delete(t.sessions, id)
		}
	}
	return out
}

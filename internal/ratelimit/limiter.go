package ratelimit

import (
	"sync"
	"time"
)

// Status is the limiter's verdict for one identity.
type Status uint8

const (
	// StatusOK means the identity may attempt verification.
	StatusOK Status = iota
	// StatusCooldown15M means the short cooldown tier is active.
	StatusCooldown15M
	// StatusCooldown4H means the long cooldown tier is active.
	StatusCooldown4H
	// StatusFrozenFraud means the identity is frozen until an explicit reset.
	StatusFrozenFraud
	// StatusBlocked24H means the rolling-day attempt budget is spent.
	StatusBlocked24H
)

// String returns the canonical name of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusCooldown15M:
		return "COOL_DOWN_15M"
	case StatusCooldown4H:
		return "COOL_DOWN_4H"
	case StatusFrozenFraud:
		return "FROZEN_FRAUD"
	case StatusBlocked24H:
		return "BLOCKED_24H"
	}
	return "UNKNOWN"
}

// Config holds limiter thresholds and eviction tuning.
type Config struct {
	DailyAttemptLimit      int
	ShortCooldownThreshold int
	ShortCooldown          time.Duration
	LongCooldownThreshold  int
	LongCooldown           time.Duration
	FreezeThreshold        int
	EvictionIdle           time.Duration
	EvictionHighWater      int
}

type entry struct {
	windowStart    time.Time // start of the rolling attempt-count day
	attempts       int
	consecFailures int
	shortStart     time.Time // stamped when the streak first reaches the short threshold
	longStart      time.Time // stamped when the streak first reaches the long threshold
	lastTouch      time.Time
}

// Limiter tracks attempt budgets and failure streaks per identity key.
type Limiter struct {
	mu      sync.RWMutex
	entries map[string]*entry
	cfg     Config
	now     func() time.Time
}

// New creates a limiter. now is injectable for tests; nil means time.Now.
func New(cfg Config, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		entries: make(map[string]*entry),
		cfg:     cfg,
		now:     now,
	}
}

// Check evaluates the identity's current status. It is a pure read: the daily
// counter moves only through RecordAttempt, so repeated checks from different
// call paths cannot double-count.
func (l *Limiter) Check(key string) Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[key]
	if !ok {
		return StatusOK
	}
	return l.status(e, l.now())
}

// Status transitions in strict priority order. A streak past the long
// threshold whose window has lapsed falls through to OK because the short
// window necessarily lapsed first.
func (l *Limiter) status(e *entry, now time.Time) Status {
	if l.attemptsInWindow(e, now) >= l.cfg.DailyAttemptLimit {
		return StatusBlocked24H
	}
	if e.consecFailures >= l.cfg.FreezeThreshold {
		return StatusFrozenFraud
	}
	if e.consecFailures >= l.cfg.LongCooldownThreshold &&
		!e.longStart.IsZero() && now.Sub(e.longStart) < l.cfg.LongCooldown {
		return StatusCooldown4H
	}
	if e.consecFailures >= l.cfg.ShortCooldownThreshold &&
		!e.shortStart.IsZero() && now.Sub(e.shortStart) < l.cfg.ShortCooldown {
		return StatusCooldown15M
	}
	return StatusOK
}

func (l *Limiter) attemptsInWindow(e *entry, now time.Time) int {
	if e.windowStart.IsZero() || now.Sub(e.windowStart) >= 24*time.Hour {
		return 0
	}
	return e.attempts
}

// RecordAttempt counts one confirmed verification attempt against the
// identity's rolling-day budget.
func (l *Limiter) RecordAttempt(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := l.touch(key, now)

	if e.windowStart.IsZero() || now.Sub(e.windowStart) >= 24*time.Hour {
		e.windowStart = now
		e.attempts = 0
	}
	e.attempts++

	l.maybeEvictLocked(now)
}

// RecordFailure extends the consecutive-failure streak. The cooldown start is
// stamped exactly when the streak first reaches a tier threshold and is not
// moved by later failures at that length.
func (l *Limiter) RecordFailure(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := l.touch(key, now)

	e.consecFailures++
	if e.consecFailures == l.cfg.ShortCooldownThreshold && e.shortStart.IsZero() {
		e.shortStart = now
	}
	if e.consecFailures == l.cfg.LongCooldownThreshold && e.longStart.IsZero() {
		e.longStart = now
	}

	l.maybeEvictLocked(now)
}

// Reset clears the failure streak and both cooldown stamps. Called after a
// verified success; it also lifts a fraud freeze.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		return
	}
	e.consecFailures = 0
	e.shortStart = time.Time{}
	e.longStart = time.Time{}
	e.lastTouch = l.now()
}

// RemainingCooldown reports how long until the identity may retry. Zero means
// no timed cooldown is active; a frozen identity reports zero and must be
// distinguished through Check.
func (l *Limiter) RemainingCooldown(key string) time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[key]
	if !ok {
		return 0
	}

	now := l.now()
	switch l.status(e, now) {
	case StatusBlocked24H:
		return e.windowStart.Add(24 * time.Hour).Sub(now)
	case StatusCooldown4H:
		return e.longStart.Add(l.cfg.LongCooldown).Sub(now)
	case StatusCooldown15M:
		return e.shortStart.Add(l.cfg.ShortCooldown).Sub(now)
	}
	return 0
}

// Len reports the number of tracked identities.
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Limiter) touch(key string, now time.Time) *entry {
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.lastTouch = now
	return e
}

// maybeEvictLocked purges idle entries once the table crosses the high-water
// mark. Caller holds the write lock.
func (l *Limiter) maybeEvictLocked(now time.Time) {
	if l.cfg.EvictionHighWater <= 0 || len(l.entries) <= l.cfg.EvictionHighWater {
		return
	}
	for key, e := range l.entries {
		if now.Sub(e.lastTouch) >= l.cfg.EvictionIdle {
			delete(l.entries, key)
		}
	}
}

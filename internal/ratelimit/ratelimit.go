// Package ratelimit throttles repeated sign-in attempts per login identifier.
//
// The Limiter delegates state to a Store. MemoryStore keeps entries in the
// process and is only correct for a single API instance: with several
// instances each one counts separately, so an attacker gets MaxAttempts per
// instance. RedisStore shares the counters and should be used whenever the
// API is scaled horizontally.
package ratelimit

import (
	"context"
	"time"
)

type Policy struct {
	MaxAttempts     int
	Window          time.Duration
	LockoutDuration time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     5,
		Window:          15 * time.Minute,
		LockoutDuration: 15 * time.Minute,
	}
}

type Decision struct {
	Allowed      bool
	AttemptsLeft int
	LockedUntil  time.Time
}

// Store applies one attempt for key atomically. Two concurrent calls for the
// same key must never observe the same count.
type Store interface {
	Hit(ctx context.Context, key string, now time.Time, policy Policy) (Decision, error)
	Reset(ctx context.Context, key string) error
}

type Limiter struct {
	store  Store
	policy Policy
	now    func() time.Time
}

func NewLimiter(store Store, policy Policy) *Limiter {
	return &Limiter{store: store, policy: policy, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

func (l *Limiter) Policy() Policy {
	return l.policy
}

// Check records an attempt for identifier and reports whether it may proceed.
func (l *Limiter) Check(ctx context.Context, identifier string) (Decision, error) {
	return l.store.Hit(ctx, identifier, l.now(), l.policy)
}

// Reset forgets identifier after a verified sign-in.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	return l.store.Reset(ctx, identifier)
}

type entry struct {
	count       int
	resetAt     time.Time
	lockedUntil time.Time
}

// apply is the attempt state machine shared by MemoryStore and mirrored by
// the RedisStore script:
//   - locked and now < lockedUntil: denied
//   - no entry, lockout over, or window elapsed: fresh window, count 1
//   - count already at MaxAttempts: lock for LockoutDuration, denied
//   - otherwise count+1, allowed
func apply(e entry, exists bool, now time.Time, p Policy) (entry, Decision) {
	if !e.lockedUntil.IsZero() && now.Before(e.lockedUntil) {
		return e, Decision{Allowed: false, LockedUntil: e.lockedUntil}
	}

	if !exists || !e.lockedUntil.IsZero() || now.After(e.resetAt) {
		fresh := entry{count: 1, resetAt: now.Add(p.Window)}
		return fresh, Decision{Allowed: true, AttemptsLeft: p.MaxAttempts - 1}
	}

	if e.count >= p.MaxAttempts {
		e.lockedUntil = now.Add(p.LockoutDuration)
		return e, Decision{Allowed: false, LockedUntil: e.lockedUntil}
	}

	e.count++
	return e, Decision{Allowed: true, AttemptsLeft: p.MaxAttempts - e.count}
}

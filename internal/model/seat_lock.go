package model

import "time"

// LockStatus is the closed set of states for a seat lock.  A lock is born
// active and ends in exactly one of confirmed or expired; there is no way
// back.  The conditional UPDATE guarding the active→expired transition is
// what makes seat restoration idempotent, so the state set must stay closed.
type LockStatus string

const (
	LockActive    LockStatus = "active"    // holding one seat, awaiting confirmation
	LockConfirmed LockStatus = "confirmed" // holder confirmed before expiry
	LockExpired   LockStatus = "expired"   // TTL elapsed, seat returned to the pool
)

// Valid reports whether s is one of the known lock states.
func (s LockStatus) Valid() bool {
	switch s {
	case LockActive, LockConfirmed, LockExpired:
		return true
	}
	return false
}

// CanTransitionTo reports whether a lock may move from s to next.
func (s LockStatus) CanTransitionTo(next LockStatus) bool {
	return s == LockActive && (next == LockConfirmed || next == LockExpired)
}

// SeatLock is a time-bounded hold of one seat on a ride, created together
// with a pending booking in the same transaction.  At most one active lock
// may exist per (ride, holder) pair.  Expiry is data-driven: a lock is gone
// once ExpiresAt has passed, whether or not the reaper has touched the row
// yet, and every read path re-checks the timestamp.
//
// Fields:
//
//	ID          – primary key identifier.
//	RideID      – ride whose seat is held.
//	HolderID    – user holding the seat.
//	SeatsLocked – always 1 in this design; kept explicit so the seat
//	              arithmetic in the invariant reads literally.
//	Status      – current lock state.
//	ExpiresAt   – created_at plus the configured hold duration.
//	CreatedAt   – creation timestamp.
type SeatLock struct {
	ID          uint64     // seat_locks.id
	RideID      uint64     // seat_locks.ride_id
	HolderID    uint64     // seat_locks.holder_id
	SeatsLocked int        // seat_locks.seats_locked
	Status      LockStatus // seat_locks.status
	ExpiresAt   time.Time  // seat_locks.expires_at
	CreatedAt   time.Time  // seat_locks.created_at
}

// ExpiredAt reports whether the lock's TTL has elapsed at the given instant.
// The row may still read "active"; callers that care must win the
// active→expired transition before acting on it.
func (l SeatLock) ExpiredAt(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// Remaining returns how long the hold is still good for, never negative.
func (l SeatLock) Remaining(now time.Time) time.Duration {
	if d := l.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

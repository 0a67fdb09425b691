package model

import (
	"testing"
	"time"
)

func TestBookingStatusTransitions(t *testing.T) {
	t.Parallel()
	cases := []struct {
		from, to BookingStatus
		want     bool
	}{
		{BookingPending, BookingConfirmed, true},
		{BookingPending, BookingCancelled, true},
		{BookingPending, BookingCompleted, false},
		{BookingPending, BookingNoShow, false},
		{BookingConfirmed, BookingCancelled, true},
		{BookingConfirmed, BookingCompleted, true},
		{BookingConfirmed, BookingNoShow, true},
		{BookingConfirmed, BookingPending, false},
		{BookingCancelled, BookingConfirmed, false},
		{BookingCompleted, BookingNoShow, false},
		{BookingNoShow, BookingCancelled, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestLockStatusTransitions(t *testing.T) {
	t.Parallel()
	cases := []struct {
		from, to LockStatus
		want     bool
	}{
		{LockActive, LockConfirmed, true},
		{LockActive, LockExpired, true},
		{LockConfirmed, LockExpired, false},
		{LockExpired, LockActive, false},
		{LockConfirmed, LockActive, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestRideStatusTransitions(t *testing.T) {
	t.Parallel()
	if !RideActive.CanTransitionTo(RideCancelled) {
		t.Error("active -> cancelled should be legal")
	}
	if !RideActive.CanTransitionTo(RideCompleted) {
		t.Error("active -> completed should be legal")
	}
	if RideCancelled.CanTransitionTo(RideActive) {
		t.Error("cancelled is terminal")
	}
	if RideCompleted.CanTransitionTo(RideCancelled) {
		t.Error("completed is terminal")
	}
}

func TestBookingStatusOpen(t *testing.T) {
	t.Parallel()
	open := []BookingStatus{BookingPending, BookingConfirmed}
	closed := []BookingStatus{BookingCancelled, BookingCompleted, BookingNoShow}
	for _, s := range open {
		if !s.Open() {
			t.Errorf("%s should count as open", s)
		}
	}
	for _, s := range closed {
		if s.Open() {
			t.Errorf("%s should not count as open", s)
		}
	}
}

func TestSeatLockExpiry(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := SeatLock{ExpiresAt: now.Add(90 * time.Second)}

	if l.ExpiredAt(now) {
		t.Error("lock should still be live 90s before expiry")
	}
	if got := l.Remaining(now); got != 90*time.Second {
		t.Errorf("Remaining: got %v, want 90s", got)
	}
	// expires_at itself is already expired: comparisons use >=.
	if !l.ExpiredAt(now.Add(90 * time.Second)) {
		t.Error("lock should be expired exactly at expires_at")
	}
	if got := l.Remaining(now.Add(2 * time.Minute)); got != 0 {
		t.Errorf("Remaining after expiry: got %v, want 0", got)
	}
}

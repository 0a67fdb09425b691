package booking

import (
	"context"
	"time"

	"github.com/adilbekov/ridepool/internal/model"
)

// Store is the persistence boundary of the engine.  The production
// implementation lives in internal/repository and runs on MySQL; tests use
// an in-memory implementation.  Either way the contract is the same: every
// call to Atomic is one transaction, and a ride's seat counter only ever
// changes inside an Atomic call that also changes the lock or booking row
// accounting for the seat, so the invariant
//
//	available_seats + active lock seats + confirmed booking seats == total_seats
//
// can never be observed half-applied.
type Store interface {
	// Atomic runs fn inside a single transaction.  A non-nil error from fn
	// rolls back everything fn did; nil commits it.
	Atomic(ctx context.Context, fn func(Tx) error) error

	// Ride returns a read-only snapshot of one ride.
	Ride(ctx context.Context, id uint64) (model.Ride, error)

	// ExpiredActiveLocks lists locks still marked active whose expires_at is
	// at or before now, oldest first, capped at limit.  Used by the reaper;
	// the rows it returns may already be claimed by a concurrent confirm, so
	// the reaper must still win the conditional expiry per lock.
	ExpiredActiveLocks(ctx context.Context, now time.Time, limit int) ([]model.SeatLock, error)
}

// Tx is the set of row operations available inside one transaction.  The
// bool results of the conditional updates report whether the guarded write
// changed a row; false means another transaction got there first and the
// caller must treat the race as lost, not retry inside the same
// transaction.
type Tx interface {
	// RideForUpdate reads a ride and takes the row lock that serializes all
	// seat-state mutations for it.  Returns ErrRideNotFound when missing.
	RideForUpdate(id uint64) (model.Ride, error)
	InsertRide(r *model.Ride) error
	// DriverRidesAround counts the driver's active rides departing on the
	// same date within the given window of departure.
	DriverRidesAround(driverID uint64, departure time.Time, window time.Duration) (int, error)
	// SetRideStatus moves a ride from one status to another; false when the
	// ride was not in the expected from status.
	SetRideStatus(id uint64, from, to model.RideStatus) (bool, error)
	// DecrementSeat takes one seat, guarded by available_seats > 0; false
	// when the last seat was already gone.
	DecrementSeat(rideID uint64) (bool, error)
	// RestoreSeat returns one seat to the pool.
	RestoreSeat(rideID uint64) error

	LockByID(id uint64) (model.SeatLock, error)
	// ActiveLock finds the holder's active lock on a ride, if any.  The lock
	// may be past its expires_at; the caller decides what that means.
	ActiveLock(rideID, holderID uint64) (model.SeatLock, bool, error)
	InsertLock(l *model.SeatLock) error
	// MarkLockConfirmed and MarkLockExpired perform the conditional
	// active→confirmed / active→expired transitions.  Exactly one observer
	// of an expired lock gets true from MarkLockExpired, and only that
	// observer restores the seat.
	MarkLockConfirmed(lockID uint64) (bool, error)
	MarkLockExpired(lockID uint64) (bool, error)

	// BookingByID returns ErrBookingNotFound when missing.
	BookingByID(id uint64) (model.Booking, error)
	BookingByLock(lockID uint64) (model.Booking, error)
	// HasOpenBooking reports whether the rider already has a pending or
	// confirmed booking on the ride.
	HasOpenBooking(rideID, riderID uint64) (bool, error)
	InsertBooking(b *model.Booking) error
	// SetBookingStatus moves a booking from one status to another, recording
	// an optional cancellation reason and confirmation time; false when the
	// booking was not in the expected from status.
	SetBookingStatus(id uint64, from, to model.BookingStatus, reason string, confirmedAt *time.Time) (bool, error)
	// BookingsByRideStatus lists a ride's bookings in any of the given states.
	BookingsByRideStatus(rideID uint64, statuses ...model.BookingStatus) ([]model.Booking, error)

	// Reputation counters consumed by the external reputation system.
	AddCancellation(userID uint64) error
	AddNoShow(userID uint64) error
}

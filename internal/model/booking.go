package model

import "time"

// BookingStatus is the closed set of states a booking moves through.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"   // seat locked, awaiting rider confirmation
	BookingConfirmed BookingStatus = "confirmed" // rider confirmed inside the hold window
	BookingCancelled BookingStatus = "cancelled" // lock expired, ride cancelled, or explicit cancel
	BookingCompleted BookingStatus = "completed" // ride was driven with this rider on board
	BookingNoShow    BookingStatus = "no_show"   // rider confirmed but never showed up
)

// Cancellation reasons written to bookings.cancellation_reason.  The wording
// is part of the external contract: notification consumers key off it.
const (
	ReasonLockExpired   = "seat lock expired"
	ReasonRideCancelled = "ride cancelled by driver"
)

// bookingTransitions lists the legal outgoing edges per state.  Terminal
// states (cancelled, completed, no_show) have no entry.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCancelled, BookingCompleted, BookingNoShow},
}

// Valid reports whether s is one of the known booking states.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted, BookingNoShow:
		return true
	}
	return false
}

// Open reports whether the booking still occupies a seat slot, i.e. it is
// pending or confirmed.  At most one open booking may exist per
// (ride, rider) pair.
func (s BookingStatus) Open() bool {
	return s == BookingPending || s == BookingConfirmed
}

// CanTransitionTo reports whether a booking may move from s to next.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, t := range bookingTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Booking mirrors the `bookings` table.  A booking is created in pending
// state together with its seat lock; LockID ties the two rows so the confirm
// path can re-validate the hold without a table scan.
//
// Fields:
//
//	ID           – primary key identifier.
//	RideID       – ride being booked.
//	RiderID      – user taking the seat.
//	LockID       – the seat lock created with this booking.
//	Status       – current booking state.
//	ConfirmedAt  – when the rider confirmed (nil while pending or after a
//	               cancellation).
//	CancelReason – why the booking was cancelled (nil otherwise).
//	CreatedAt    – creation timestamp.
//	UpdatedAt    – last update timestamp.
type Booking struct {
	ID           uint64        // bookings.id
	RideID       uint64        // bookings.ride_id
	RiderID      uint64        // bookings.rider_id
	LockID       uint64        // bookings.lock_id
	Status       BookingStatus // bookings.status
	ConfirmedAt  *time.Time    // bookings.confirmation_time (nullable)
	CancelReason *string       // bookings.cancellation_reason (nullable)
	CreatedAt    time.Time     // bookings.created_at
	UpdatedAt    time.Time     // bookings.updated_at
}

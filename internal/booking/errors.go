// Package booking implements the seat reservation engine: short-lived seat
// locks, the booking state machine, the ride lifecycle around them and the
// background reaper that reclaims abandoned holds.
package booking

import "errors"

// Engine error taxonomy.  Every mutating operation returns one of these
// sentinels (possibly wrapped) so callers can distinguish not-found,
// permission, conflict and expiry failures without string matching.  The
// HTTP layer maps them onto 404/403/409/410 respectively.
var (
	// Not found.
	ErrRideNotFound    = errors.New("ride not found")
	ErrBookingNotFound = errors.New("booking not found")

	// Wrong actor.
	ErrForbidden       = errors.New("operation not allowed for this user")
	ErrNotBookingOwner = errors.New("booking belongs to another rider")
	ErrSelfBooking     = errors.New("drivers cannot book their own ride")

	// Conflicting state.
	ErrRideNotActive     = errors.New("ride is not active")
	ErrDuplicateBooking  = errors.New("an open booking already exists for this ride")
	ErrNoSeats           = errors.New("no seats available")
	ErrBookingNotPending = errors.New("booking is not pending")
	ErrInvalidState      = errors.New("invalid state transition")
	ErrScheduleConflict  = errors.New("driver already has a ride departing within an hour")

	// Lost to TTL.  Returned by ConfirmBooking when the hold lapsed before
	// the rider confirmed; the UI is expected to surface this as
	// "reservation expired, search again" rather than a generic failure.
	ErrLockExpired = errors.New("seat lock expired")

	// Bad input on ride creation.
	ErrInvalidRideSpec = errors.New("invalid ride spec")
	ErrDepartureInPast = errors.New("departure must be in the future")
)

package model

import "time"

// RideStatus is the closed set of lifecycle states for a ride.  Status is
// never compared as a free-form string elsewhere in the codebase; all
// transitions go through CanTransitionTo so illegal moves are rejected in
// one place.
type RideStatus string

const (
	RideActive    RideStatus = "active"    // posted and accepting bookings
	RideCancelled RideStatus = "cancelled" // withdrawn by the driver
	RideCompleted RideStatus = "completed" // driven to the end
)

// Valid reports whether s is one of the known ride states.
func (s RideStatus) Valid() bool {
	switch s {
	case RideActive, RideCancelled, RideCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether a ride may move from s to next.  Active is
// the only state with outgoing edges; cancelled and completed are terminal.
func (s RideStatus) CanTransitionTo(next RideStatus) bool {
	return s == RideActive && (next == RideCancelled || next == RideCompleted)
}

// Ride mirrors the `rides` table.  AvailableSeats is owned by the seat lock
// manager: no code outside internal/booking may write it, and every write is
// paired with a seat_locks or bookings row change in the same transaction so
// that for an active ride
//
//	available_seats + active lock seats + confirmed booking seats == total_seats
//
// holds after every commit.
//
// Fields:
//
//	ID             – primary key identifier.
//	DriverID       – user who posted the ride.
//	FromLabel      – human-readable origin (e.g. "Main Campus").
//	ToLabel        – human-readable destination.
//	FromLat/FromLon, ToLat/ToLon – route endpoints used by the match scorer.
//	TotalSeats     – seats offered, at least 1.
//	AvailableSeats – seats not currently locked or confirmed.
//	DepartureAt    – scheduled departure (UTC).
//	DistanceKm     – route length, forwarded on the ride-completed event.
//	Status         – current lifecycle state.
//	CreatedAt      – creation timestamp.
//	UpdatedAt      – last update timestamp.
type Ride struct {
	ID             uint64     // rides.id
	DriverID       uint64     // rides.driver_id
	FromLabel      string     // rides.from_label
	ToLabel        string     // rides.to_label
	FromLat        float64    // rides.from_lat
	FromLon        float64    // rides.from_lon
	ToLat          float64    // rides.to_lat
	ToLon          float64    // rides.to_lon
	TotalSeats     int        // rides.total_seats
	AvailableSeats int        // rides.available_seats
	DepartureAt    time.Time  // rides.departure_at
	DistanceKm     float64    // rides.distance_km
	Status         RideStatus // rides.status
	CreatedAt      time.Time  // rides.created_at
	UpdatedAt      time.Time  // rides.updated_at
}

// Departed reports whether the ride's scheduled departure has passed.
func (r Ride) Departed(now time.Time) bool {
	return !now.Before(r.DepartureAt)
}

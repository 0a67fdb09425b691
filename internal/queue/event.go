// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingNotifyEvent is published on every booking lifecycle edge that a
// rider or driver should hear about: confirmations and cancellations.
// It carries enough for a notification consumer to render a message
// without querying the primary database.
type BookingNotifyEvent struct {
	EventID    string `json:"event_id"`
	Kind       string `json:"kind"` // "confirmed" | "cancelled"
	BookingID  uint64 `json:"booking_id"`
	RideID     uint64 `json:"ride_id"`
	RiderID    uint64 `json:"rider_id"`
	Reason     string `json:"reason,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// RideCompletedEvent is published once per completed ride and feeds the
// impact and gamification consumers.  Distance and passenger count are
// the inputs those consumers aggregate.
type RideCompletedEvent struct {
	EventID        string   `json:"event_id"`
	RideID         uint64   `json:"ride_id"`
	DriverID       uint64   `json:"driver_id"`
	RiderIDs       []uint64 `json:"rider_ids"`
	PassengerCount int      `json:"passenger_count"`
	DistanceKm     float64  `json:"distance_km"`
	FromLabel      string   `json:"from_label"`
	ToLabel        string   `json:"to_label"`
	CompletedAt    string   `json:"completed_at"`
}

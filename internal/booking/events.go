package booking

import (
	"context"

	"github.com/adilbekov/ridepool/internal/model"
)

// Events receives lifecycle notifications after the transaction that
// produced them has committed.  Implementations are fire-and-forget: a
// failed delivery is the implementation's problem to log, and it never
// affects the seat state that was already committed.  The production
// implementation publishes to RabbitMQ for the notification and
// carbon/gamification consumers.
type Events interface {
	BookingConfirmed(ctx context.Context, b model.Booking)
	BookingCancelled(ctx context.Context, b model.Booking, reason string)
	// RideCompleted carries everything external impact consumers need:
	// the ride (driver, distance) and the riders who completed it.
	RideCompleted(ctx context.Context, ride model.Ride, riderIDs []uint64)
}

// NopEvents drops every notification.  Used by tests and as the default
// when no broker is configured.
type NopEvents struct{}

func (NopEvents) BookingConfirmed(context.Context, model.Booking)         {}
func (NopEvents) BookingCancelled(context.Context, model.Booking, string) {}
func (NopEvents) RideCompleted(context.Context, model.Ride, []uint64)     {}

package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adilbekov/ridepool/internal/model"
)

const (
	// DefaultHoldTTL is how long a seat lock is good for before the seat
	// goes back to the pool.
	DefaultHoldTTL = 90 * time.Second

	// scheduleWindow is the minimum gap between two active rides by the
	// same driver on the same date.
	scheduleWindow = 60 * time.Minute
)

// Service is the seat reservation engine.  It is the only writer of
// available_seats: every mutation runs as one Store.Atomic call scoped to a
// single ride, so the seat invariant holds after every commit and
// cross-ride operations never need joint atomicity.
type Service struct {
	store   Store
	events  Events
	holdTTL time.Duration
	log     *slog.Logger

	// now is swapped out by tests to drive lock expiry without sleeping.
	now func() time.Time
}

// NewService wires the engine to its store and event sink.  A nil events
// sink disables emission; holdTTL <= 0 falls back to DefaultHoldTTL.
func NewService(store Store, events Events, holdTTL time.Duration, log *slog.Logger) *Service {
	if store == nil {
		panic("nil store passed to NewService")
	}
	if events == nil {
		events = NopEvents{}
	}
	if holdTTL <= 0 {
		holdTTL = DefaultHoldTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:   store,
		events:  events,
		holdTTL: holdTTL,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RideSpec is the input to CreateRide.
type RideSpec struct {
	DriverID    uint64
	FromLabel   string
	ToLabel     string
	FromLat     float64
	FromLon     float64
	ToLat       float64
	ToLon       float64
	TotalSeats  int
	DepartureAt time.Time
	DistanceKm  float64
}

// CreateRide posts a new ride.  Departure must be in the future and the
// driver must not have another active ride on the same date departing
// within an hour of this one.
func (s *Service) CreateRide(ctx context.Context, spec RideSpec) (model.Ride, error) {
	now := s.now()
	if spec.TotalSeats < 1 {
		return model.Ride{}, fmt.Errorf("%w: total_seats must be at least 1", ErrInvalidRideSpec)
	}
	if spec.DriverID == 0 {
		return model.Ride{}, fmt.Errorf("%w: driver is required", ErrInvalidRideSpec)
	}
	if !spec.DepartureAt.After(now) {
		return model.Ride{}, ErrDepartureInPast
	}

	ride := model.Ride{
		DriverID:       spec.DriverID,
		FromLabel:      spec.FromLabel,
		ToLabel:        spec.ToLabel,
		FromLat:        spec.FromLat,
		FromLon:        spec.FromLon,
		ToLat:          spec.ToLat,
		ToLon:          spec.ToLon,
		TotalSeats:     spec.TotalSeats,
		AvailableSeats: spec.TotalSeats,
		DepartureAt:    spec.DepartureAt.UTC(),
		DistanceKm:     spec.DistanceKm,
		Status:         model.RideActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.store.Atomic(ctx, func(tx Tx) error {
		n, err := tx.DriverRidesAround(spec.DriverID, ride.DepartureAt, scheduleWindow)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrScheduleConflict
		}
		return tx.InsertRide(&ride)
	})
	if err != nil {
		return model.Ride{}, err
	}
	return ride, nil
}

// Ride returns a read-only snapshot of one ride.
func (s *Service) Ride(ctx context.Context, id uint64) (model.Ride, error) {
	return s.store.Ride(ctx, id)
}

// CancelRide withdraws an active ride.  Every open booking on it becomes
// cancelled with reason "ride cancelled by driver" and its lock, if still
// active, is expired; the seat counters are irrelevant once the ride itself
// is cancelled, so no seats are restored.
func (s *Service) CancelRide(ctx context.Context, rideID, driverID uint64) error {
	var dropped []model.Booking
	err := s.store.Atomic(ctx, func(tx Tx) error {
		ride, err := tx.RideForUpdate(rideID)
		if err != nil {
			return err
		}
		if ride.DriverID != driverID {
			return ErrForbidden
		}
		ok, err := tx.SetRideStatus(rideID, model.RideActive, model.RideCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRideNotActive
		}
		open, err := tx.BookingsByRideStatus(rideID, model.BookingPending, model.BookingConfirmed)
		if err != nil {
			return err
		}
		for _, b := range open {
			if _, err := tx.SetBookingStatus(b.ID, b.Status, model.BookingCancelled, model.ReasonRideCancelled, nil); err != nil {
				return err
			}
			if b.Status == model.BookingPending {
				if _, err := tx.MarkLockExpired(b.LockID); err != nil {
					return err
				}
			}
		}
		dropped = open
		return nil
	})
	if err != nil {
		return err
	}
	for _, b := range dropped {
		s.events.BookingCancelled(ctx, b, model.ReasonRideCancelled)
	}
	return nil
}

// LockGrant is what a successful LockSeat hands back: the hold, its paired
// pending booking, and when the hold lapses.
type LockGrant struct {
	LockID    uint64    `json:"lock_id"`
	BookingID uint64    `json:"booking_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LockSeat reserves one seat on a ride under a short-lived hold, creating
// the seat lock and its pending booking in one transaction.  The seat
// decrement is guarded by available_seats > 0, so of N concurrent calls
// racing for the last seat exactly one commits and the rest roll back with
// ErrNoSeats.
//
// A retried request finds the caller's still-active lock and gets the same
// grant back instead of a second hold.  A stale lock left by an earlier
// attempt is expired in place, restoring its seat before the new hold takes
// one.
func (s *Service) LockSeat(ctx context.Context, rideID, riderID uint64) (LockGrant, error) {
	now := s.now()
	var (
		grant     LockGrant
		reclaimed *model.Booking
	)
	err := s.store.Atomic(ctx, func(tx Tx) error {
		ride, err := tx.RideForUpdate(rideID)
		if err != nil {
			return err
		}
		if ride.Status != model.RideActive {
			return ErrRideNotActive
		}
		if ride.DriverID == riderID {
			return ErrSelfBooking
		}

		lock, ok, err := tx.ActiveLock(rideID, riderID)
		if err != nil {
			return err
		}
		if ok && !lock.ExpiredAt(now) {
			// Idempotent retry: hand back the existing hold and its
			// remaining time instead of stacking a second lock.
			b, err := tx.BookingByLock(lock.ID)
			if err != nil {
				return err
			}
			grant = LockGrant{LockID: lock.ID, BookingID: b.ID, ExpiresAt: lock.ExpiresAt}
			return nil
		}
		if ok {
			// The caller's previous hold lapsed but the reaper has not swept
			// it yet.  Expire it here; only the active→expired winner
			// restores the seat.
			won, err := tx.MarkLockExpired(lock.ID)
			if err != nil {
				return err
			}
			if won {
				if err := tx.RestoreSeat(rideID); err != nil {
					return err
				}
				if b, err := tx.BookingByLock(lock.ID); err == nil && b.Status == model.BookingPending {
					if _, err := tx.SetBookingStatus(b.ID, model.BookingPending, model.BookingCancelled, model.ReasonLockExpired, nil); err != nil {
						return err
					}
					b.Status = model.BookingCancelled
					reclaimed = &b
				}
			}
		}

		dup, err := tx.HasOpenBooking(rideID, riderID)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateBooking
		}

		won, err := tx.DecrementSeat(rideID)
		if err != nil {
			return err
		}
		if !won {
			return ErrNoSeats
		}

		l := model.SeatLock{
			RideID:      rideID,
			HolderID:    riderID,
			SeatsLocked: 1,
			Status:      model.LockActive,
			ExpiresAt:   now.Add(s.holdTTL),
			CreatedAt:   now,
		}
		if err := tx.InsertLock(&l); err != nil {
			return err
		}
		b := model.Booking{
			RideID:    rideID,
			RiderID:   riderID,
			LockID:    l.ID,
			Status:    model.BookingPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertBooking(&b); err != nil {
			return err
		}
		grant = LockGrant{LockID: l.ID, BookingID: b.ID, ExpiresAt: l.ExpiresAt}
		return nil
	})
	if err != nil {
		return LockGrant{}, err
	}
	if reclaimed != nil {
		s.events.BookingCancelled(ctx, *reclaimed, model.ReasonLockExpired)
	}
	return grant, nil
}

// ConfirmBooking finalizes a pending booking, re-validating inside the same
// transaction that the paired lock is still active and unexpired.  A booking
// whose lock silently lapsed is already lost: the lock is expired here (the
// reaper may not have run yet), its seat restored exactly once, the booking
// cancelled with reason "seat lock expired", and ErrLockExpired returned.
func (s *Service) ConfirmBooking(ctx context.Context, bookingID, riderID uint64) (model.Booking, error) {
	now := s.now()
	var (
		out  model.Booking
		lost bool
	)
	err := s.store.Atomic(ctx, func(tx Tx) error {
		b, err := tx.BookingByID(bookingID)
		if err != nil {
			return err
		}
		if b.RiderID != riderID {
			return ErrNotBookingOwner
		}
		if b.Status != model.BookingPending {
			return ErrBookingNotPending
		}
		// Serialize against the reaper and concurrent lock attempts on the
		// same ride before inspecting the lock row.
		if _, err := tx.RideForUpdate(b.RideID); err != nil {
			return err
		}
		lock, err := tx.LockByID(b.LockID)
		if err != nil {
			return err
		}
		if lock.Status != model.LockActive || lock.ExpiredAt(now) {
			won, err := tx.MarkLockExpired(lock.ID)
			if err != nil {
				return err
			}
			if won {
				if err := tx.RestoreSeat(b.RideID); err != nil {
					return err
				}
			}
			if _, err := tx.SetBookingStatus(b.ID, model.BookingPending, model.BookingCancelled, model.ReasonLockExpired, nil); err != nil {
				return err
			}
			b.Status = model.BookingCancelled
			out = b
			lost = true
			// Commit the expiry; the caller still gets ErrLockExpired.
			return nil
		}
		won, err := tx.MarkLockConfirmed(lock.ID)
		if err != nil {
			return err
		}
		if !won {
			// The ride row lock makes this unreachable; treat it as a lost
			// hold rather than guessing.
			return ErrLockExpired
		}
		confirmedAt := now
		if _, err := tx.SetBookingStatus(b.ID, model.BookingPending, model.BookingConfirmed, "", &confirmedAt); err != nil {
			return err
		}
		b.Status = model.BookingConfirmed
		b.ConfirmedAt = &confirmedAt
		out = b
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	if lost {
		s.events.BookingCancelled(ctx, out, model.ReasonLockExpired)
		return model.Booking{}, ErrLockExpired
	}
	s.events.BookingConfirmed(ctx, out)
	return out, nil
}

// CancelBooking cancels a pending or confirmed booking.  Either the rider
// or the ride's driver may cancel.  A confirmed booking always holds a real
// seat, so its seat is restored unconditionally; a pending booking's seat
// belongs to its lock and is restored only by winning the lock's
// active→expired transition.  Rider-initiated cancellations bump the
// rider's cancellation counter for the external reputation system.
func (s *Service) CancelBooking(ctx context.Context, bookingID, callerID uint64, reason string) error {
	var out model.Booking
	err := s.store.Atomic(ctx, func(tx Tx) error {
		b, err := tx.BookingByID(bookingID)
		if err != nil {
			return err
		}
		ride, err := tx.RideForUpdate(b.RideID)
		if err != nil {
			return err
		}
		if callerID != b.RiderID && callerID != ride.DriverID {
			return ErrForbidden
		}
		if !b.Status.Open() {
			return ErrInvalidState
		}
		if _, err := tx.SetBookingStatus(b.ID, b.Status, model.BookingCancelled, reason, nil); err != nil {
			return err
		}
		switch b.Status {
		case model.BookingPending:
			won, err := tx.MarkLockExpired(b.LockID)
			if err != nil {
				return err
			}
			if won {
				if err := tx.RestoreSeat(ride.ID); err != nil {
					return err
				}
			}
		case model.BookingConfirmed:
			if err := tx.RestoreSeat(ride.ID); err != nil {
				return err
			}
		}
		if callerID == b.RiderID {
			if err := tx.AddCancellation(b.RiderID); err != nil {
				return err
			}
		}
		b.Status = model.BookingCancelled
		out = b
		return nil
	})
	if err != nil {
		return err
	}
	s.events.BookingCancelled(ctx, out, reason)
	return nil
}

// CompleteRide marks a ride as driven: the ride goes to completed, every
// confirmed booking on it goes to completed, and one ride-completed event
// carrying the rider list, distance and passenger count is emitted for the
// external carbon and gamification consumers.  Seats are not restored; they
// were consumed.
func (s *Service) CompleteRide(ctx context.Context, rideID, driverID uint64) error {
	var (
		ride     model.Ride
		riderIDs []uint64
	)
	err := s.store.Atomic(ctx, func(tx Tx) error {
		r, err := tx.RideForUpdate(rideID)
		if err != nil {
			return err
		}
		if r.DriverID != driverID {
			return ErrForbidden
		}
		ok, err := tx.SetRideStatus(rideID, model.RideActive, model.RideCompleted)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRideNotActive
		}
		confirmed, err := tx.BookingsByRideStatus(rideID, model.BookingConfirmed)
		if err != nil {
			return err
		}
		for _, b := range confirmed {
			if _, err := tx.SetBookingStatus(b.ID, model.BookingConfirmed, model.BookingCompleted, "", nil); err != nil {
				return err
			}
			riderIDs = append(riderIDs, b.RiderID)
		}
		ride = r
		return nil
	})
	if err != nil {
		return err
	}
	s.events.RideCompleted(ctx, ride, riderIDs)
	return nil
}

// MarkNoShow flags a confirmed booking whose rider never turned up.  Only
// the ride's driver may call it, and only after the ride's departure has
// passed.  The seat is deliberately not restored: a no-show consumed a slot
// that cannot be resold for a departed ride.  The rider's no-show counter
// feeds the external reputation system.
func (s *Service) MarkNoShow(ctx context.Context, bookingID, driverID uint64) error {
	now := s.now()
	return s.store.Atomic(ctx, func(tx Tx) error {
		b, err := tx.BookingByID(bookingID)
		if err != nil {
			return err
		}
		ride, err := tx.RideForUpdate(b.RideID)
		if err != nil {
			return err
		}
		if ride.DriverID != driverID {
			return ErrForbidden
		}
		if b.Status != model.BookingConfirmed {
			return ErrInvalidState
		}
		if !ride.Departed(now) {
			return fmt.Errorf("%w: ride has not departed yet", ErrInvalidState)
		}
		if _, err := tx.SetBookingStatus(b.ID, model.BookingConfirmed, model.BookingNoShow, "", nil); err != nil {
			return err
		}
		return tx.AddNoShow(b.RiderID)
	})
}

// expireLock performs one idempotent lock expiry: win the active→expired
// transition, restore the seat, cancel the paired booking if it is still
// pending.  Losing the transition means a confirm or another sweep got
// there first and there is nothing left to do.  Shared by the reaper; the
// lazy expiry on the lock and confirm paths inlines the same steps.
func (s *Service) expireLock(ctx context.Context, lockID uint64) error {
	now := s.now()
	var dropped *model.Booking
	err := s.store.Atomic(ctx, func(tx Tx) error {
		l, err := tx.LockByID(lockID)
		if err != nil {
			return err
		}
		if l.Status != model.LockActive || !l.ExpiredAt(now) {
			return nil
		}
		if _, err := tx.RideForUpdate(l.RideID); err != nil {
			return err
		}
		won, err := tx.MarkLockExpired(lockID)
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		if err := tx.RestoreSeat(l.RideID); err != nil {
			return err
		}
		b, err := tx.BookingByLock(lockID)
		if err != nil {
			return err
		}
		if b.Status == model.BookingPending {
			if _, err := tx.SetBookingStatus(b.ID, model.BookingPending, model.BookingCancelled, model.ReasonLockExpired, nil); err != nil {
				return err
			}
			b.Status = model.BookingCancelled
			dropped = &b
		}
		return nil
	})
	if err != nil {
		return err
	}
	if dropped != nil {
		s.events.BookingCancelled(ctx, *dropped, model.ReasonLockExpired)
	}
	return nil
}

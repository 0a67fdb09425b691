package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adilbekov/ridepool/internal/model"
)

// memStore is an in-memory Store used by the engine tests.  One mutex
// serializes Atomic calls, which models the per-ride serialization the SQL
// store gets from row locks; the conditional updates re-check their guards
// under that mutex exactly like their SQL counterparts re-check theirs.
// Rollback is a whole-state snapshot taken before fn runs.
type memStore struct {
	mu     sync.Mutex
	nextID uint64

	rides         map[uint64]model.Ride
	locks         map[uint64]model.SeatLock
	bookings      map[uint64]model.Booking
	cancellations map[uint64]int
	noShows       map[uint64]int
}

func newMemStore() *memStore {
	return &memStore{
		rides:         map[uint64]model.Ride{},
		locks:         map[uint64]model.SeatLock{},
		bookings:      map[uint64]model.Booking{},
		cancellations: map[uint64]int{},
		noShows:       map[uint64]int{},
	}
}

func (s *memStore) Atomic(_ context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) Ride(_ context.Context, id uint64) (model.Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[id]
	if !ok {
		return model.Ride{}, ErrRideNotFound
	}
	return r, nil
}

func (s *memStore) ExpiredActiveLocks(_ context.Context, now time.Time, limit int) ([]model.SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.SeatLock
	for _, l := range s.locks {
		if l.Status == model.LockActive && l.ExpiredAt(now) {
			out = append(out, l)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type memSnapshot struct {
	rides         map[uint64]model.Ride
	locks         map[uint64]model.SeatLock
	bookings      map[uint64]model.Booking
	cancellations map[uint64]int
	noShows       map[uint64]int
}

func (s *memStore) snapshot() memSnapshot {
	return memSnapshot{
		rides:         copyMap(s.rides),
		locks:         copyMap(s.locks),
		bookings:      copyMap(s.bookings),
		cancellations: copyMap(s.cancellations),
		noShows:       copyMap(s.noShows),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.rides = snap.rides
	s.locks = snap.locks
	s.bookings = snap.bookings
	s.cancellations = snap.cancellations
	s.noShows = snap.noShows
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// memTx mutates the store directly; Atomic already holds the mutex and
// keeps the rollback snapshot.
type memTx struct {
	s *memStore
}

func (t *memTx) RideForUpdate(id uint64) (model.Ride, error) {
	r, ok := t.s.rides[id]
	if !ok {
		return model.Ride{}, ErrRideNotFound
	}
	return r, nil
}

func (t *memTx) InsertRide(r *model.Ride) error {
	t.s.nextID++
	r.ID = t.s.nextID
	t.s.rides[r.ID] = *r
	return nil
}

func (t *memTx) DriverRidesAround(driverID uint64, departure time.Time, window time.Duration) (int, error) {
	n := 0
	for _, r := range t.s.rides {
		if r.DriverID != driverID || r.Status != model.RideActive {
			continue
		}
		sameDate := r.DepartureAt.UTC().Truncate(24*time.Hour) == departure.UTC().Truncate(24*time.Hour)
		gap := r.DepartureAt.Sub(departure)
		if gap < 0 {
			gap = -gap
		}
		if sameDate && gap < window {
			n++
		}
	}
	return n, nil
}

func (t *memTx) SetRideStatus(id uint64, from, to model.RideStatus) (bool, error) {
	r, ok := t.s.rides[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	t.s.rides[id] = r
	return true, nil
}

func (t *memTx) DecrementSeat(rideID uint64) (bool, error) {
	r, ok := t.s.rides[rideID]
	if !ok || r.AvailableSeats <= 0 {
		return false, nil
	}
	r.AvailableSeats--
	t.s.rides[rideID] = r
	return true, nil
}

func (t *memTx) RestoreSeat(rideID uint64) error {
	r, ok := t.s.rides[rideID]
	if !ok {
		return ErrRideNotFound
	}
	r.AvailableSeats++
	t.s.rides[rideID] = r
	return nil
}

func (t *memTx) LockByID(id uint64) (model.SeatLock, error) {
	l, ok := t.s.locks[id]
	if !ok {
		return model.SeatLock{}, fmt.Errorf("lock %d not found", id)
	}
	return l, nil
}

func (t *memTx) ActiveLock(rideID, holderID uint64) (model.SeatLock, bool, error) {
	for _, l := range t.s.locks {
		if l.RideID == rideID && l.HolderID == holderID && l.Status == model.LockActive {
			return l, true, nil
		}
	}
	return model.SeatLock{}, false, nil
}

func (t *memTx) InsertLock(l *model.SeatLock) error {
	t.s.nextID++
	l.ID = t.s.nextID
	t.s.locks[l.ID] = *l
	return nil
}

func (t *memTx) MarkLockConfirmed(lockID uint64) (bool, error) {
	return t.setLockStatus(lockID, model.LockConfirmed)
}

func (t *memTx) MarkLockExpired(lockID uint64) (bool, error) {
	return t.setLockStatus(lockID, model.LockExpired)
}

func (t *memTx) setLockStatus(lockID uint64, to model.LockStatus) (bool, error) {
	l, ok := t.s.locks[lockID]
	if !ok || l.Status != model.LockActive {
		return false, nil
	}
	l.Status = to
	t.s.locks[lockID] = l
	return true, nil
}

func (t *memTx) BookingByID(id uint64) (model.Booking, error) {
	b, ok := t.s.bookings[id]
	if !ok {
		return model.Booking{}, ErrBookingNotFound
	}
	return b, nil
}

func (t *memTx) BookingByLock(lockID uint64) (model.Booking, error) {
	for _, b := range t.s.bookings {
		if b.LockID == lockID {
			return b, nil
		}
	}
	return model.Booking{}, ErrBookingNotFound
}

func (t *memTx) HasOpenBooking(rideID, riderID uint64) (bool, error) {
	for _, b := range t.s.bookings {
		if b.RideID == rideID && b.RiderID == riderID && b.Status.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertBooking(b *model.Booking) error {
	t.s.nextID++
	b.ID = t.s.nextID
	t.s.bookings[b.ID] = *b
	return nil
}

func (t *memTx) SetBookingStatus(id uint64, from, to model.BookingStatus, reason string, confirmedAt *time.Time) (bool, error) {
	b, ok := t.s.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	if reason != "" {
		r := reason
		b.CancelReason = &r
	}
	if confirmedAt != nil {
		at := *confirmedAt
		b.ConfirmedAt = &at
	}
	t.s.bookings[id] = b
	return true, nil
}

func (t *memTx) BookingsByRideStatus(rideID uint64, statuses ...model.BookingStatus) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range t.s.bookings {
		if b.RideID != rideID {
			continue
		}
		for _, st := range statuses {
			if b.Status == st {
				out = append(out, b)
				break
			}
		}
	}
	return out, nil
}

func (t *memTx) AddCancellation(userID uint64) error {
	t.s.cancellations[userID]++
	return nil
}

func (t *memTx) AddNoShow(userID uint64) error {
	t.s.noShows[userID]++
	return nil
}

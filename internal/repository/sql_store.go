package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/adilbekov/ridepool/internal/booking"
	"github.com/adilbekov/ridepool/internal/model"
)

// SQLStore implements booking.Store over MySQL.  Atomic is the single
// transaction boundary of the engine: it begins a transaction, hands the
// engine a sqlTx view over the repositories' ...Tx methods, and commits
// only when the engine's function returns nil.  A failed transaction
// leaves every seat counter and row status exactly as before the call.
type SQLStore struct {
	db       *sql.DB
	rides    *RideRepo
	locks    *SeatLockRepo
	bookings *BookingRepo
	users    *UserRepo
}

// NewSQLStore wires the repositories into a booking.Store.
func NewSQLStore(db *sql.DB, rides *RideRepo, locks *SeatLockRepo, bookings *BookingRepo, users *UserRepo) *SQLStore {
	if db == nil || rides == nil || locks == nil || bookings == nil || users == nil {
		panic("nil dependency passed to NewSQLStore")
	}
	return &SQLStore{db: db, rides: rides, locks: locks, bookings: bookings, users: users}
}

// Atomic runs fn inside one transaction, rolling back on any error.
func (s *SQLStore) Atomic(ctx context.Context, fn func(booking.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&sqlTx{ctx: ctx, tx: tx, s: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Ride returns a read-only snapshot of one ride.
func (s *SQLStore) Ride(ctx context.Context, id uint64) (model.Ride, error) {
	return s.rides.GetByID(ctx, id)
}

// ExpiredActiveLocks lists stale holds for the reaper.
func (s *SQLStore) ExpiredActiveLocks(ctx context.Context, now time.Time, limit int) ([]model.SeatLock, error) {
	return s.locks.ExpiredActive(ctx, now, limit)
}

// sqlTx adapts the repositories' ...Tx methods to the booking.Tx contract.
// It carries the context the transaction was started with so the engine's
// row operations stay cancellable.
type sqlTx struct {
	ctx context.Context
	tx  *sql.Tx
	s   *SQLStore
}

func (t *sqlTx) RideForUpdate(id uint64) (model.Ride, error) {
	return t.s.rides.GetForUpdateTx(t.ctx, t.tx, id)
}

func (t *sqlTx) InsertRide(r *model.Ride) error {
	return t.s.rides.CreateTx(t.ctx, t.tx, r)
}

func (t *sqlTx) DriverRidesAround(driverID uint64, departure time.Time, window time.Duration) (int, error) {
	return t.s.rides.CountActiveAroundTx(t.ctx, t.tx, driverID, departure, window)
}

func (t *sqlTx) SetRideStatus(id uint64, from, to model.RideStatus) (bool, error) {
	return t.s.rides.SetStatusTx(t.ctx, t.tx, id, from, to)
}

func (t *sqlTx) DecrementSeat(rideID uint64) (bool, error) {
	return t.s.rides.DecrementSeatTx(t.ctx, t.tx, rideID)
}

func (t *sqlTx) RestoreSeat(rideID uint64) error {
	return t.s.rides.RestoreSeatTx(t.ctx, t.tx, rideID)
}

func (t *sqlTx) LockByID(id uint64) (model.SeatLock, error) {
	return t.s.locks.GetTx(t.ctx, t.tx, id)
}

func (t *sqlTx) ActiveLock(rideID, holderID uint64) (model.SeatLock, bool, error) {
	return t.s.locks.ActiveByRideAndHolderTx(t.ctx, t.tx, rideID, holderID)
}

func (t *sqlTx) InsertLock(l *model.SeatLock) error {
	return t.s.locks.CreateTx(t.ctx, t.tx, l)
}

func (t *sqlTx) MarkLockConfirmed(lockID uint64) (bool, error) {
	return t.s.locks.SetStatusTx(t.ctx, t.tx, lockID, model.LockConfirmed)
}

func (t *sqlTx) MarkLockExpired(lockID uint64) (bool, error) {
	return t.s.locks.SetStatusTx(t.ctx, t.tx, lockID, model.LockExpired)
}

func (t *sqlTx) BookingByID(id uint64) (model.Booking, error) {
	return t.s.bookings.GetTx(t.ctx, t.tx, id)
}

func (t *sqlTx) BookingByLock(lockID uint64) (model.Booking, error) {
	return t.s.bookings.GetByLockTx(t.ctx, t.tx, lockID)
}

func (t *sqlTx) HasOpenBooking(rideID, riderID uint64) (bool, error) {
	return t.s.bookings.HasOpenTx(t.ctx, t.tx, rideID, riderID)
}

func (t *sqlTx) InsertBooking(b *model.Booking) error {
	return t.s.bookings.CreateTx(t.ctx, t.tx, b)
}

func (t *sqlTx) SetBookingStatus(id uint64, from, to model.BookingStatus, reason string, confirmedAt *time.Time) (bool, error) {
	return t.s.bookings.SetStatusTx(t.ctx, t.tx, id, from, to, reason, confirmedAt)
}

func (t *sqlTx) BookingsByRideStatus(rideID uint64, statuses ...model.BookingStatus) ([]model.Booking, error) {
	return t.s.bookings.ListByRideStatusTx(t.ctx, t.tx, rideID, statuses...)
}

func (t *sqlTx) AddCancellation(userID uint64) error {
	return t.s.users.AddCancellationTx(t.ctx, t.tx, userID)
}

func (t *sqlTx) AddNoShow(userID uint64) error {
	return t.s.users.AddNoShowTx(t.ctx, t.tx, userID)
}

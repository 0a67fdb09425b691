package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/adilbekov/ridepool/internal/booking"
	"github.com/adilbekov/ridepool/internal/model"
)

// BookingRepo provides data access to the bookings table.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, ride_id, rider_id, lock_id, status, confirmation_time, cancellation_reason, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (model.Booking, error) {
	var (
		b      model.Booking
		status string
		conf   sql.NullTime
		reason sql.NullString
	)
	err := row.Scan(&b.ID, &b.RideID, &b.RiderID, &b.LockID, &status, &conf, &reason, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	if conf.Valid {
		at := conf.Time
		b.ConfirmedAt = &at
	}
	if reason.Valid {
		s := reason.String
		b.CancelReason = &s
	}
	return b, nil
}

// CreateTx inserts a pending booking and populates its generated ID.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (ride_id, rider_id, lock_id, status) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.RideID, b.RiderID, b.LockID, string(b.Status))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetTx fetches one booking inside a transaction.
func (r *BookingRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Booking, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return model.Booking{}, booking.ErrBookingNotFound
	}
	return b, err
}

// GetByLockTx fetches the booking paired with a seat lock.
func (r *BookingRepo) GetByLockTx(ctx context.Context, tx *sql.Tx, lockID uint64) (model.Booking, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE lock_id = ? LIMIT 1`, lockID)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return model.Booking{}, booking.ErrBookingNotFound
	}
	return b, err
}

// HasOpenTx reports whether the rider already has a pending or confirmed
// booking on the ride.
func (r *BookingRepo) HasOpenTx(ctx context.Context, tx *sql.Tx, rideID, riderID uint64) (bool, error) {
	const q = `SELECT EXISTS(
		SELECT 1 FROM bookings WHERE ride_id = ? AND rider_id = ? AND status IN ('pending','confirmed'))`
	var exists bool
	err := tx.QueryRowContext(ctx, q, rideID, riderID).Scan(&exists)
	return exists, err
}

// SetStatusTx moves a booking from one status to another, conditionally on
// the current status.  reason is written to cancellation_reason when
// non-empty; confirmedAt to confirmation_time when non-nil.
func (r *BookingRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.BookingStatus, reason string, confirmedAt *time.Time) (bool, error) {
	var reasonArg any
	if reason != "" {
		reasonArg = reason
	}
	var confArg any
	if confirmedAt != nil {
		confArg = confirmedAt.UTC()
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings
		 SET status = ?, cancellation_reason = COALESCE(?, cancellation_reason),
		     confirmation_time = COALESCE(?, confirmation_time)
		 WHERE id = ? AND status = ?`,
		string(to), reasonArg, confArg, id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ListByRideStatusTx lists a ride's bookings in any of the given states.
func (r *BookingRepo) ListByRideStatusTx(ctx context.Context, tx *sql.Tx, rideID uint64, statuses ...model.BookingStatus) ([]model.Booking, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, 0, len(statuses)+1)
	args = append(args, rideID)
	for _, st := range statuses {
		args = append(args, string(st))
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE ride_id = ? AND status IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// RiderBookingRow is the joined view returned to a rider listing their own
// bookings: the booking plus enough of the ride to render a list entry.
type RiderBookingRow struct {
	ID          uint64     `json:"id"`
	RideID      uint64     `json:"ride_id"`
	Status      string     `json:"status"`
	Reason      *string    `json:"cancellation_reason,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	FromLabel   string     `json:"from"`
	ToLabel     string     `json:"to"`
	DepartureAt time.Time  `json:"departure_at"`
	RideStatus  string     `json:"ride_status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ListByRider returns all of a rider's bookings, newest first, joined with
// their rides.  Read-only; runs outside any transaction.
func (r *BookingRepo) ListByRider(ctx context.Context, riderID uint64) ([]RiderBookingRow, error) {
	const q = `SELECT b.id, b.ride_id, b.status, b.cancellation_reason, b.confirmation_time,
			r.from_label, r.to_label, r.departure_at, r.status, b.created_at
		FROM bookings b
		JOIN rides r ON r.id = b.ride_id
		WHERE b.rider_id = ?
		ORDER BY b.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, riderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []RiderBookingRow{}
	for rows.Next() {
		var (
			row    RiderBookingRow
			reason sql.NullString
			conf   sql.NullTime
		)
		if err := rows.Scan(&row.ID, &row.RideID, &row.Status, &reason, &conf,
			&row.FromLabel, &row.ToLabel, &row.DepartureAt, &row.RideStatus, &row.CreatedAt); err != nil {
			return nil, err
		}
		if reason.Valid {
			s := reason.String
			row.Reason = &s
		}
		if conf.Valid {
			at := conf.Time
			row.ConfirmedAt = &at
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

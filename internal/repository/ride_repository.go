package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/adilbekov/ridepool/internal/booking"
	"github.com/adilbekov/ridepool/internal/model"
)

// RideRepo provides data access to the rides table.  Plain reads go through
// the *sql.DB; everything that touches seat state has a ...Tx variant that
// runs inside a caller-owned transaction, because a seat-count change is
// only ever valid together with the lock/booking row change that accounts
// for it.  All timestamps are stored and compared in UTC.
type RideRepo struct {
	db *sql.DB
}

// NewRideRepo returns a new RideRepo bound to the provided database.
func NewRideRepo(db *sql.DB) *RideRepo { return &RideRepo{db: db} }

const rideColumns = `id, driver_id, from_label, to_label, from_lat, from_lon, to_lat, to_lon,
	total_seats, available_seats, departure_at, distance_km, status, created_at, updated_at`

func scanRide(row interface{ Scan(...any) error }) (model.Ride, error) {
	var r model.Ride
	var status string
	err := row.Scan(&r.ID, &r.DriverID, &r.FromLabel, &r.ToLabel, &r.FromLat, &r.FromLon,
		&r.ToLat, &r.ToLon, &r.TotalSeats, &r.AvailableSeats, &r.DepartureAt,
		&r.DistanceKm, &status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return model.Ride{}, err
	}
	r.Status = model.RideStatus(status)
	return r, nil
}

// GetByID fetches one ride outside any transaction.  Used for read-only
// snapshots; seat mutations must use GetForUpdateTx instead.
func (r *RideRepo) GetByID(ctx context.Context, id uint64) (model.Ride, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = ?`, id)
	ride, err := scanRide(row)
	if err == sql.ErrNoRows {
		return model.Ride{}, booking.ErrRideNotFound
	}
	return ride, err
}

// GetForUpdateTx reads a ride with SELECT ... FOR UPDATE, taking the row
// lock that serializes all seat-state mutations on the ride for the life of
// the transaction.
func (r *RideRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Ride, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = ? FOR UPDATE`, id)
	ride, err := scanRide(row)
	if err == sql.ErrNoRows {
		return model.Ride{}, booking.ErrRideNotFound
	}
	return ride, err
}

// CreateTx inserts a ride and populates the generated ID and timestamps on
// the provided record.  The caller must commit or roll back the transaction.
func (r *RideRepo) CreateTx(ctx context.Context, tx *sql.Tx, ride *model.Ride) error {
	const q = `INSERT INTO rides
		(driver_id, from_label, to_label, from_lat, from_lon, to_lat, to_lon,
		 total_seats, available_seats, departure_at, distance_km, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		ride.DriverID, ride.FromLabel, ride.ToLabel, ride.FromLat, ride.FromLon,
		ride.ToLat, ride.ToLon, ride.TotalSeats, ride.AvailableSeats,
		ride.DepartureAt.UTC(), ride.DistanceKm, string(ride.Status))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ride.ID = uint64(id)
	row := tx.QueryRowContext(ctx, `SELECT created_at, updated_at FROM rides WHERE id = ?`, ride.ID)
	return row.Scan(&ride.CreatedAt, &ride.UpdatedAt)
}

// CountActiveAroundTx counts the driver's active rides on the same date as
// departure that depart within the given window of it.  Backs the
// double-booking check on ride creation.
func (r *RideRepo) CountActiveAroundTx(ctx context.Context, tx *sql.Tx, driverID uint64, departure time.Time, window time.Duration) (int, error) {
	const q = `SELECT COUNT(*) FROM rides
		WHERE driver_id = ? AND status = 'active'
		  AND DATE(departure_at) = DATE(?)
		  AND ABS(TIMESTAMPDIFF(MINUTE, departure_at, ?)) < ?`
	var n int
	dep := departure.UTC()
	err := tx.QueryRowContext(ctx, q, driverID, dep, dep, int(window.Minutes())).Scan(&n)
	return n, err
}

// SetStatusTx moves a ride from one status to another.  The WHERE clause on
// the current status makes the transition conditional: a false result means
// the ride was not in the expected state and nothing changed.
func (r *RideRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.RideStatus) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE rides SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// DecrementSeatTx takes one seat.  The available_seats > 0 guard is what
// decides the last-seat race: of two transactions trying to take the final
// seat, the loser's update matches zero rows and it must roll back.
func (r *RideRepo) DecrementSeatTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE rides SET available_seats = available_seats - 1 WHERE id = ? AND available_seats > 0`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// RestoreSeatTx returns one seat to the pool.  Callers guarantee the seat
// was really taken (a confirmed booking, or winning a lock's active→expired
// transition), so the increment is unconditional.
func (r *RideRepo) RestoreSeatTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE rides SET available_seats = available_seats + 1 WHERE id = ?`, id)
	return err
}

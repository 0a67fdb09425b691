package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/adilbekov/ridepool/internal/model"
)

// SeatLockRepo provides data access to the seat_locks table.  Locks are
// created and transitioned only inside transactions; the only non-Tx method
// is the reaper's listing query, which deliberately reads without locking
// because every row it returns is re-checked under a conditional update
// before anything happens to it.
type SeatLockRepo struct {
	db *sql.DB
}

// NewSeatLockRepo returns a new SeatLockRepo bound to the provided database.
func NewSeatLockRepo(db *sql.DB) *SeatLockRepo { return &SeatLockRepo{db: db} }

const lockColumns = `id, ride_id, holder_id, seats_locked, status, expires_at, created_at`

func scanLock(row interface{ Scan(...any) error }) (model.SeatLock, error) {
	var l model.SeatLock
	var status string
	err := row.Scan(&l.ID, &l.RideID, &l.HolderID, &l.SeatsLocked, &status, &l.ExpiresAt, &l.CreatedAt)
	if err != nil {
		return model.SeatLock{}, err
	}
	l.Status = model.LockStatus(status)
	return l, nil
}

// CreateTx inserts a lock and populates its generated ID.
func (r *SeatLockRepo) CreateTx(ctx context.Context, tx *sql.Tx, l *model.SeatLock) error {
	const q = `INSERT INTO seat_locks (ride_id, holder_id, seats_locked, status, expires_at)
		VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, l.RideID, l.HolderID, l.SeatsLocked, string(l.Status), l.ExpiresAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

// GetTx fetches one lock inside a transaction.
func (r *SeatLockRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (model.SeatLock, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+lockColumns+` FROM seat_locks WHERE id = ?`, id)
	return scanLock(row)
}

// ActiveByRideAndHolderTx finds the holder's active lock on a ride, if any.
// The unique index on (ride_id, holder_id, status='active') guarantees at
// most one row.  The returned lock may already be past expires_at.
func (r *SeatLockRepo) ActiveByRideAndHolderTx(ctx context.Context, tx *sql.Tx, rideID, holderID uint64) (model.SeatLock, bool, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+lockColumns+` FROM seat_locks WHERE ride_id = ? AND holder_id = ? AND status = 'active' LIMIT 1`,
		rideID, holderID)
	l, err := scanLock(row)
	if err == sql.ErrNoRows {
		return model.SeatLock{}, false, nil
	}
	if err != nil {
		return model.SeatLock{}, false, err
	}
	return l, true, nil
}

// SetStatusTx performs the conditional active→confirmed or active→expired
// transition.  The status='active' guard serializes the confirm path and
// the reaper racing over the same lock: exactly one of them sees one row
// affected, and only that one may restore the seat.
func (r *SeatLockRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, to model.LockStatus) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE seat_locks SET status = ? WHERE id = ? AND status = 'active'`,
		string(to), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ExpiredActive lists locks still marked active whose expires_at has
// passed, oldest first.  Feeds the reaper; correctness does not depend on
// this view being fresh because each row is re-validated by SetStatusTx.
func (r *SeatLockRepo) ExpiredActive(ctx context.Context, now time.Time, limit int) ([]model.SeatLock, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+lockColumns+` FROM seat_locks WHERE status = 'active' AND expires_at <= ? ORDER BY expires_at LIMIT ?`,
		now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SeatLock
	for rows.Next() {
		l, err := scanLock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

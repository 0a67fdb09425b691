package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/adilbekov/ridepool/internal/model"
	"github.com/adilbekov/ridepool/internal/utils"
)

// UserRepo provides data access to the users table, including the
// reputation columns the match scorer reads (average_rating,
// behavior_score) and the counters the engine increments (cancellations,
// no_shows).
type UserRepo struct{ db *sql.DB }

// NewUserRepo returns a new UserRepo bound to the provided database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// ErrEmailExists is returned when registration hits the unique email index.
var ErrEmailExists = errors.New("email already exists")

const userColumns = `id, email, password_hash, role, department, average_rating,
	behavior_score, cancellations, no_shows, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var (
		u      model.User
		rating sql.NullFloat64
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Department, &rating,
		&u.BehaviorScore, &u.Cancellations, &u.NoShows, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if rating.Valid {
		v := rating.Float64
		u.AverageRating = &v
	}
	return u, nil
}

// Create inserts a user and returns its ID.  New users start with the
// default behavior score and no rating; both are maintained by external
// systems afterwards.
func (r *UserRepo) Create(ctx context.Context, email, password, role, department string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, department) VALUES (?,?,?,?)",
		email, hash, role, department)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=? LIMIT 1`, email)
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=? LIMIT 1`, id)
	return scanUser(row)
}

// AddCancellationTx bumps the user's cancellation counter inside the
// transaction that cancelled their booking.
func (r *UserRepo) AddCancellationTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, `UPDATE users SET cancellations = cancellations + 1 WHERE id = ?`, id)
	return err
}

// AddNoShowTx bumps the user's no-show counter inside the transaction that
// flagged the booking.
func (r *UserRepo) AddNoShowTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, `UPDATE users SET no_shows = no_shows + 1 WHERE id = ?`, id)
	return err
}

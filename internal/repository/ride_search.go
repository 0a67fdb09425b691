package repository

import (
	"context"
	"database/sql"
	"strings"
)

// RideSearchQuery defines filters & pagination for searching open rides.
type RideSearchQuery struct {
	FromLabel string
	ToLabel   string
	Page      int
	PageSize  int
}

// CandidateRideRow is a ride row joined with its driver's profile, the
// raw material the match scorer ranks.
type CandidateRideRow struct {
	ID             uint64   `json:"id"`
	DriverID       uint64   `json:"driver_id"`
	FromLabel      string   `json:"from_label"`
	ToLabel        string   `json:"to_label"`
	FromLat        float64  `json:"from_lat"`
	FromLon        float64  `json:"from_lon"`
	ToLat          float64  `json:"to_lat"`
	ToLon          float64  `json:"to_lon"`
	AvailableSeats int      `json:"available_seats"`
	DepartureAt    string   `json:"departure_at"`
	DistanceKm     float64  `json:"distance_km"`
	Department     string   `json:"department"`
	AverageRating  *float64 `json:"average_rating"`
	BehaviorScore  int      `json:"behavior_score"`
}

// SearchOpen lists active, future rides with at least one free seat,
// newest departures last.  Label filters are case-insensitive substrings.
func (r *RideRepo) SearchOpen(ctx context.Context, q RideSearchQuery) ([]CandidateRideRow, int64, error) {
	where := []string{
		"r.status = 'active'",
		"r.available_seats > 0",
		"r.departure_at > NOW()",
	}
	args := []any{}

	if q.FromLabel != "" {
		where = append(where, "LOWER(r.from_label) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.FromLabel)+"%")
	}
	if q.ToLabel != "" {
		where = append(where, "LOWER(r.to_label) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.ToLabel)+"%")
	}

	cond := strings.Join(where, " AND ")

	var total int64
	countSQL := `SELECT COUNT(*)
		FROM rides r
		JOIN users u ON u.id = r.driver_id
		WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := q.PageSize
	offset := (q.Page - 1) * q.PageSize

	dataSQL := `SELECT
			r.id,
			r.driver_id,
			r.from_label,
			r.to_label,
			r.from_lat,
			r.from_lon,
			r.to_lat,
			r.to_lon,
			r.available_seats,
			DATE_FORMAT(r.departure_at, '%Y-%m-%d %T') AS departure_at,
			r.distance_km,
			u.department,
			u.average_rating,
			u.behavior_score
		FROM rides r
		JOIN users u ON u.id = r.driver_id
		WHERE ` + cond + `
		ORDER BY r.departure_at ASC
		LIMIT ? OFFSET ?`

	argsData := append(append([]any{}, args...), limit, offset)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]CandidateRideRow, 0, limit)
	for rows.Next() {
		var (
			d      CandidateRideRow
			rating sql.NullFloat64
		)
		if err := rows.Scan(
			&d.ID,
			&d.DriverID,
			&d.FromLabel,
			&d.ToLabel,
			&d.FromLat,
			&d.FromLon,
			&d.ToLat,
			&d.ToLon,
			&d.AvailableSeats,
			&d.DepartureAt,
			&d.DistanceKm,
			&d.Department,
			&rating,
			&d.BehaviorScore,
		); err != nil {
			return nil, 0, err
		}
		if rating.Valid {
			v := rating.Float64
			d.AverageRating = &v
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

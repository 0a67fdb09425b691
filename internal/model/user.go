package model

import "time"

// User represents an application user record as stored in the `users`
// table.  Each field corresponds to a column in the database.  The json
// tags are omitted here because these structs are primarily used
// internally by the repository layer; handlers define separate response
// types with appropriate JSON tags.
//
// The reputation fields are consumed, never computed, by this service:
// AverageRating is written back by the external rating subsystem and
// BehaviorScore by the external reputation system.  Cancellations and
// NoShows are counters this engine increments so those systems have
// inputs to work from.
//
// Fields:
//
//	ID            – primary key identifier of the user.
//	Email         – unique email address.
//	PasswordHash  – bcrypt hashed password.
//	Role          – DRIVER or RIDER.
//	Department    – free-text department/affinity used by the match scorer.
//	AverageRating – 0–5 driver rating, nil when the user has never been rated.
//	BehaviorScore – 0–100 reliability metric maintained externally.
//	Cancellations – how many of the user's own bookings they cancelled.
//	NoShows       – confirmed bookings the user failed to show up for.
//	IsActive      – whether the account is active.
//	CreatedAt     – timestamp of creation.
//	UpdatedAt     – timestamp of last update.
type User struct {
	ID            uint64    // users.id
	Email         string    // users.email
	PasswordHash  string    // users.password_hash
	Role          string    // users.role (DRIVER | RIDER)
	Department    string    // users.department
	AverageRating *float64  // users.average_rating (nullable)
	BehaviorScore int       // users.behavior_score
	Cancellations int       // users.cancellations
	NoShows       int       // users.no_shows
	IsActive      bool      // users.is_active
	CreatedAt     time.Time // users.created_at
	UpdatedAt     time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry and
// revocation.  The plain token is not stored; only its SHA-256 hash.
//
// Fields:
//
//	ID        – primary key identifier.
//	UserID    – owner of the token.
//	TokenHash – SHA-256 hex digest of the token value.
//	ExpiresAt – expiration timestamp of the token.
//	RevokedAt – when the token was revoked (null if still active).
//	CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}

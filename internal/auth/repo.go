package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewdesk/crewdesk/internal/capabilities"
	"github.com/crewdesk/crewdesk/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	CreateSession(ctx context.Context, id, uid string, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL. It also serves as the
// capability resolver for the authorization middleware so routes see fresh
// flags even when an admin edits a user mid-session.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	const query = `SELECT uid, email, display_name, password_hash, caps, is_active, created_at, updated_at
FROM users WHERE email=$1`

	var (
		user User
		caps []string
	)
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&user.UID, &user.Email, &user.DisplayName, &user.PasswordHash,
		&caps, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundf("user not found")
		}
		return nil, shared.Internalf(err, "load user")
	}
	user.Caps = capabilities.ParseSet(caps)
	return &user, nil
}

// Resolve loads the caller identity for an authenticated uid.
func (r *PGRepository) Resolve(ctx context.Context, uid string) (capabilities.Caller, error) {
	const query = `SELECT uid, display_name, caps FROM users WHERE uid=$1 AND is_active=true`

	var (
		caller capabilities.Caller
		caps   []string
	)
	err := r.pool.QueryRow(ctx, query, uid).Scan(&caller.UID, &caller.DisplayName, &caps)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return capabilities.Caller{}, shared.NotFoundf("user not found")
		}
		return capabilities.Caller{}, shared.Internalf(err, "resolve caller")
	}
	caller.Caps = capabilities.ParseSet(caps)
	return caller, nil
}

// CreateSession records a login session for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id, uid string, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, uid, created_at, expires_at, ip, ua) VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))`,
		id, uid, time.Now().UTC(), expiresAt.UTC(), ip, ua,
	)
	return err
}

// DeleteSession removes a session record.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id=$1`, id)
	return err
}

var (
	_ Repository            = (*PGRepository)(nil)
	_ capabilities.Resolver = (*PGRepository)(nil)
)

package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"agriconnect/internal/domain"
)

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = `id, name, email, password_hash, role, location_lat, location_lng,
  COALESCE(location_text,'') AS location_text, created_at`

// Create inserts u and assigns its id. A duplicate email (case-insensitive,
// enforced by idx_users_email) returns domain.ErrEmailTaken.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	err := r.DB.QueryRowxContext(ctx, r.DB.Rebind(`
		INSERT INTO users(name, email, password_hash, role, location_lat, location_lng, location_text, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		u.Name, u.Email, u.Hash, u.Role, u.LocationLat, u.LocationLng, nullIfEmpty(u.LocationText), u.CreatedAt).Scan(&u.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", domain.ErrEmailTaken, u.Email)
	}
	return err
}

func (r *UserRepo) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, r.DB.Rebind(`SELECT `+userCols+` FROM users WHERE LOWER(email) = LOWER(?)`), email)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) ByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, r.DB.Rebind(`SELECT `+userCols+` FROM users WHERE id = ?`), id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) BindSession(ctx context.Context, sid string, userID int64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`
		INSERT INTO sessions(id, user_id, created_at, last_seen) VALUES(?, ?, ?, ?)`), sid, userID, at, at)
	return err
}

// SessionUser resolves a session token. Unknown tokens return (nil, nil).
func (r *UserRepo) SessionUser(ctx context.Context, sid string) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, r.DB.Rebind(`
		SELECT u.id, u.name, u.email, u.password_hash, u.role, u.location_lat, u.location_lng,
		  COALESCE(u.location_text,'') AS location_text, u.created_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = ?`), sid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) TouchSession(ctx context.Context, sid string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`UPDATE sessions SET last_seen = ? WHERE id = ?`), at, sid)
	return err
}

func (r *UserRepo) DeleteSession(ctx context.Context, sid string) error {
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`DELETE FROM sessions WHERE id = ?`), sid)
	return err
}

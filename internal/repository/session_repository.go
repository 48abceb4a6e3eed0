package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/teamhub-api/internal/models"
)

// ErrSessionNotFound is returned when a user has no refresh token record.
var ErrSessionNotFound = errors.New("session not found")

const sessionColumns = `user_id, session_id, token, created_at, expires_at, revoked, revoked_at, revoked_reason, ip_address, user_agent, last_activity`

// SessionRepository persists refresh token records in PostgreSQL. The
// refresh_tokens table carries a unique constraint on user_id.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new instance of SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Upsert writes the record for record.UserID, replacing any previous one and
// clearing its revocation state.
func (r *SessionRepository) Upsert(ctx context.Context, record *models.RefreshTokenRecord) error {
	const query = `INSERT INTO refresh_tokens (user_id, session_id, token, created_at, expires_at, revoked, revoked_at, revoked_reason, ip_address, user_agent, last_activity)
VALUES (:user_id, :session_id, :token, :created_at, :expires_at, FALSE, NULL, NULL, :ip_address, :user_agent, :last_activity)
ON CONFLICT (user_id) DO UPDATE SET
	session_id = EXCLUDED.session_id,
	token = EXCLUDED.token,
	created_at = EXCLUDED.created_at,
	expires_at = EXCLUDED.expires_at,
	revoked = FALSE,
	revoked_at = NULL,
	revoked_reason = NULL,
	ip_address = EXCLUDED.ip_address,
	user_agent = EXCLUDED.user_agent,
	last_activity = EXCLUDED.last_activity`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert refresh token: %w", err)
	}
	return nil
}

// FindByUserID returns the record for a user.
func (r *SessionRepository) FindByUserID(ctx context.Context, userID string) (*models.RefreshTokenRecord, error) {
	const query = `SELECT ` + sessionColumns + ` FROM refresh_tokens WHERE user_id = $1 LIMIT 1`
	var record models.RefreshTokenRecord
	if err := r.db.GetContext(ctx, &record, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &record, nil
}

// Revoke marks the user's record revoked. It reports false when there was no
// unrevoked record to update.
func (r *SessionRepository) Revoke(ctx context.Context, userID, reason string, at time.Time) (bool, error) {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2, revoked_reason = $3 WHERE user_id = $1 AND revoked = FALSE`
	res, err := r.db.ExecContext(ctx, query, userID, at, reason)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return affected(res)
}

// RevokeSession revokes the user's record only when it still carries sessionID.
func (r *SessionRepository) RevokeSession(ctx context.Context, userID, sessionID, reason string, at time.Time) (bool, error) {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $3, revoked_reason = $4 WHERE user_id = $1 AND session_id = $2 AND revoked = FALSE`
	res, err := r.db.ExecContext(ctx, query, userID, sessionID, at, reason)
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	return affected(res)
}

// Touch records activity on an unrevoked record.
func (r *SessionRepository) Touch(ctx context.Context, userID string, at time.Time) error {
	const query = `UPDATE refresh_tokens SET last_activity = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, at); err != nil {
		return fmt.Errorf("touch refresh token: %w", err)
	}
	return nil
}

// DeleteExpired removes the user's record if it has expired by now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, userID string, now time.Time) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE user_id = $1 AND expires_at <= $2`
	res, err := r.db.ExecContext(ctx, query, userID, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh token: %w", err)
	}
	return res.RowsAffected()
}

// PurgeExpired removes every expired record.
func (r *SessionRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE expires_at <= $1`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("purge expired refresh tokens: %w", err)
	}
	return res.RowsAffected()
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

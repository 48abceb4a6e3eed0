package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/teamhub-api/internal/models"
)

// ErrAccountNotFound is returned when no account matches a lookup.
var ErrAccountNotFound = errors.New("account not found")

const accountColumns = `id, username, email, password_hash, provider, email_verified, last_login, created_at`

// AccountRepository reads accounts and writes the auth audit trail.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new instance of AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// FindByUsername returns an account by username, case-insensitively.
func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM users WHERE LOWER(username) = $1 LIMIT 1`
	return r.getOne(ctx, query, strings.ToLower(strings.TrimSpace(username)))
}

// FindByEmail returns an account by email address.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM users WHERE LOWER(email) = $1 LIMIT 1`
	return r.getOne(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

// FindByID returns an account by id.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM users WHERE id = $1 LIMIT 1`
	return r.getOne(ctx, query, id)
}

// UpdateLastLogin stamps the last successful login.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *AccountRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, new_values, ip_address, user_agent, created_at)
VALUES (:id, :user_id, :action, :resource, :resource_id, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// RecentLoginIPs returns the distinct client addresses of successful logins since the given time.
func (r *AccountRepository) RecentLoginIPs(ctx context.Context, userID string, since time.Time) ([]string, error) {
	const query = `SELECT DISTINCT ip_address FROM audit_logs WHERE user_id = $1 AND action = $2 AND created_at >= $3 AND ip_address <> '' ORDER BY ip_address`
	var ips []string
	if err := r.db.SelectContext(ctx, &ips, query, userID, models.AuditActionLogin, since); err != nil {
		return nil, fmt.Errorf("recent login ips: %w", err)
	}
	return ips, nil
}

func (r *AccountRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Account, error) {
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return &account, nil
}

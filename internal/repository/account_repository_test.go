package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teamhub-api/internal/models"
)

var accountRowColumns = []string{"id", "username", "email", "password_hash", "provider", "email_verified", "last_login", "created_at"}

func TestAccountFindByUsername(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(accountRowColumns).
		AddRow("1", "alice", "alice@example.com", "hash", "local", true, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(username) = $1 LIMIT 1")).
		WithArgs("alice").
		WillReturnRows(rows)

	account, err := repo.FindByUsername(context.Background(), "  Alice ")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", account.Email)
	assert.Equal(t, models.ProviderLocal, account.Provider)
	require.NotNil(t, account.PasswordHash)
	assert.Equal(t, "hash", *account.PasswordHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountFindByEmailNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email) = $1")).
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows(accountRowColumns))

	_, err := repo.FindByEmail(context.Background(), "ghost@example.com")
	require.ErrorIs(t, err, ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAuditLog(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	userID := "u1"
	entry := &models.AuditLog{UserID: &userID, Action: models.AuditActionLogout, Resource: "session"}
	require.NoError(t, repo.CreateAuditLog(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentLoginIPs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	since := time.Now().Add(-24 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT ip_address FROM audit_logs")).
		WithArgs("u1", models.AuditActionLogin, since).
		WillReturnRows(sqlmock.NewRows([]string{"ip_address"}).AddRow("10.0.0.1").AddRow("10.0.0.2"))

	ips, err := repo.RecentLoginIPs(context.Background(), "u1", since)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, ips)
	assert.NoError(t, mock.ExpectationsWereMet())
}

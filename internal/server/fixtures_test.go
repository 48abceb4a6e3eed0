package server

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/teamhub-api/internal/middleware"
	"github.com/noah-isme/teamhub-api/internal/models"
	"github.com/noah-isme/teamhub-api/internal/repository"
	"github.com/noah-isme/teamhub-api/internal/service"
	"github.com/noah-isme/teamhub-api/pkg/csrf"
)

type memoryStore struct {
	mu      sync.Mutex
	records map[string]models.RefreshTokenRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]models.RefreshTokenRecord)}
}

func (s *memoryStore) Upsert(ctx context.Context, record *models.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.UserID] = *record
	return nil
}

func (s *memoryStore) FindByUserID(ctx context.Context, userID string) (*models.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[userID]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	return &record, nil
}

func (s *memoryStore) Revoke(ctx context.Context, userID, reason string, at time.Time) (bool, error) {
	return s.revoke(userID, "", reason, at), nil
}

func (s *memoryStore) RevokeSession(ctx context.Context, userID, sessionID, reason string, at time.Time) (bool, error) {
	return s.revoke(userID, sessionID, reason, at), nil
}

func (s *memoryStore) revoke(userID, sessionID, reason string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[userID]
	if !ok || record.Revoked || (sessionID != "" && record.SessionID != sessionID) {
		return false
	}
	record.Revoked = true
	record.RevokedAt = &at
	record.RevokedReason = &reason
	s.records[userID] = record
	return true
}

func (s *memoryStore) Touch(ctx context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[userID]; ok {
		record.LastActivity = at
		s.records[userID] = record
	}
	return nil
}

func (s *memoryStore) DeleteExpired(ctx context.Context, userID string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[userID]; ok && !now.Before(record.ExpiresAt) {
		delete(s.records, userID)
		return 1, nil
	}
	return 0, nil
}

func (s *memoryStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for userID, record := range s.records {
		if !now.Before(record.ExpiresAt) {
			delete(s.records, userID)
			n++
		}
	}
	return n, nil
}

type memoryAccounts struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	audit    []models.AuditLog
}

func (a *memoryAccounts) find(match func(*models.Account) bool) (*models.Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, account := range a.accounts {
		if match(account) {
			copied := *account
			return &copied, nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (a *memoryAccounts) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	return a.find(func(acc *models.Account) bool { return acc.Username == username })
}

func (a *memoryAccounts) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return a.find(func(acc *models.Account) bool { return acc.Email == email })
}

func (a *memoryAccounts) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return a.find(func(acc *models.Account) bool { return acc.ID == id })
}

func (a *memoryAccounts) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (a *memoryAccounts) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.audit = append(a.audit, *log)
	return nil
}

func (a *memoryAccounts) RecentLoginIPs(ctx context.Context, userID string, since time.Time) ([]string, error) {
	return nil, nil
}

type testStack struct {
	server   *httptest.Server
	store    *memoryStore
	accounts *memoryAccounts
	redis    *miniredis.Miniredis
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	hashed := string(hash)
	accounts := &memoryAccounts{accounts: map[string]*models.Account{
		"u-1": {ID: "u-1", Username: "alice", Email: "alice@example.com", PasswordHash: &hashed, Provider: models.ProviderLocal, EmailVerified: true},
	}}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zap.NewNop()
	metrics := service.NewMetricsService()
	tokens, err := service.NewTokenService(service.TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    12 * time.Hour,
		Issuer:        "teamhub-test",
	})
	require.NoError(t, err)

	store := newMemoryStore()
	sessions := service.NewSessionService(store, accounts, metrics, logger)
	auth := service.NewAuthService(accounts, repository.NewLoginTicketRepository(client), tokens, sessions, metrics, validator.New(), logger, service.AuthConfig{})

	router := NewRouter(Options{
		CSRFExemptPaths: []string{"/api/auth/google/callback"},
		Cookies:         middleware.CookieSettings{AccessTTL: 15 * time.Minute, RefreshTTL: 12 * time.Hour, CSRFTTL: time.Hour},
	}, Dependencies{
		Logger:      logger,
		Metrics:     metrics,
		Tokens:      tokens,
		Sessions:    sessions,
		Auth:        auth,
		CSRF:        service.NewCSRFService(csrf.NewSigner("csrf-secret", time.Hour), metrics, logger),
		RateLimiter: service.NewRateLimitService(repository.NewRateLimitRepository(client), 10, 15*time.Minute, metrics, logger),
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testStack{server: server, store: store, accounts: accounts, redis: mr}
}

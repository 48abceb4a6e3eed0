package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/noah-isme/teamhub-api/internal/models"
	"github.com/noah-isme/teamhub-api/internal/repository"
	"github.com/noah-isme/teamhub-api/pkg/jobs"
)

type mockSessionStore struct {
	mu       sync.Mutex
	records  map[string]*models.RefreshTokenRecord
	findErr  error
	upErr    error
	touchErr error
	touches  int
	purged   int64
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{records: make(map[string]*models.RefreshTokenRecord)}
}

func (m *mockSessionStore) Upsert(ctx context.Context, record *models.RefreshTokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upErr != nil {
		return m.upErr
	}
	copied := *record
	copied.Revoked = false
	copied.RevokedAt = nil
	copied.RevokedReason = nil
	m.records[record.UserID] = &copied
	return nil
}

func (m *mockSessionStore) FindByUserID(ctx context.Context, userID string) (*models.RefreshTokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	record, ok := m.records[userID]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	copied := *record
	return &copied, nil
}

func (m *mockSessionStore) Revoke(ctx context.Context, userID, reason string, at time.Time) (bool, error) {
	return m.revoke(userID, "", reason, at)
}

func (m *mockSessionStore) RevokeSession(ctx context.Context, userID, sessionID, reason string, at time.Time) (bool, error) {
	return m.revoke(userID, sessionID, reason, at)
}

func (m *mockSessionStore) revoke(userID, sessionID, reason string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[userID]
	if !ok || record.Revoked || (sessionID != "" && record.SessionID != sessionID) {
		return false, nil
	}
	record.Revoked = true
	record.RevokedAt = &at
	record.RevokedReason = &reason
	return true, nil
}

func (m *mockSessionStore) Touch(ctx context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.touchErr != nil {
		return m.touchErr
	}
	m.touches++
	if record, ok := m.records[userID]; ok {
		record.LastActivity = at
	}
	return nil
}

func (m *mockSessionStore) DeleteExpired(ctx context.Context, userID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[userID]
	if !ok || now.Before(record.ExpiresAt) {
		return 0, nil
	}
	delete(m.records, userID)
	m.purged++
	return 1, nil
}

func (m *mockSessionStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, record := range m.records {
		if !now.Before(record.ExpiresAt) {
			delete(m.records, id)
			n++
		}
	}
	m.purged += n
	return n, nil
}

func (m *mockSessionStore) get(userID string) *models.RefreshTokenRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[userID]
}

type mockHistory struct {
	ips []string
	err error
}

func (m *mockHistory) RecentLoginIPs(ctx context.Context, userID string, since time.Time) ([]string, error) {
	return m.ips, m.err
}

type mockEnqueuer struct {
	jobs []jobs.Job
	err  error
}

func (m *mockEnqueuer) TryEnqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

type mockAccountRepo struct {
	byUsername map[string]*models.Account
	byEmail    map[string]*models.Account
	byID       map[string]*models.Account
	findErr    error
	auditLogs  []*models.AuditLog
	lastLogins []string
}

func newMockAccountRepo(accounts ...*models.Account) *mockAccountRepo {
	m := &mockAccountRepo{
		byUsername: make(map[string]*models.Account),
		byEmail:    make(map[string]*models.Account),
		byID:       make(map[string]*models.Account),
	}
	for _, a := range accounts {
		m.byUsername[a.Username] = a
		m.byEmail[a.Email] = a
		m.byID[a.ID] = a
	}
	return m
}

func (m *mockAccountRepo) lookup(idx map[string]*models.Account, key string) (*models.Account, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	account, ok := idx[key]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return account, nil
}

func (m *mockAccountRepo) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	return m.lookup(m.byUsername, username)
}

func (m *mockAccountRepo) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return m.lookup(m.byEmail, email)
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return m.lookup(m.byID, id)
}

func (m *mockAccountRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLogins = append(m.lastLogins, id)
	return nil
}

func (m *mockAccountRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func (m *mockAccountRepo) actions() []string {
	out := make([]string, 0, len(m.auditLogs))
	for _, l := range m.auditLogs {
		out = append(out, l.Action)
	}
	return out
}

type mockTicketStore struct {
	mu      sync.Mutex
	tickets map[string]string
}

func newMockTicketStore() *mockTicketStore {
	return &mockTicketStore{tickets: make(map[string]string)}
}

func (m *mockTicketStore) Create(ctx context.Context, ticket, userID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tickets[ticket]; exists {
		return errors.New("ticket exists")
	}
	m.tickets[ticket] = userID
	return nil
}

func (m *mockTicketStore) Consume(ctx context.Context, ticket string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.tickets[ticket]
	if !ok {
		return "", repository.ErrTicketNotFound
	}
	delete(m.tickets, ticket)
	return userID, nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

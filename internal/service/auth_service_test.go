package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/teamhub-api/internal/models"
	appErrors "github.com/noah-isme/teamhub-api/pkg/errors"
)

type authFixture struct {
	svc      *AuthService
	accounts *mockAccountRepo
	tickets  *mockTicketStore
	store    *mockSessionStore
	history  *mockHistory
	tokens   *TokenService
	sessions *SessionService
}

func newAuthFixture(t *testing.T, accounts ...*models.Account) *authFixture {
	t.Helper()
	tokens := newTestTokenService(t)
	store := newMockSessionStore()
	history := &mockHistory{}
	sessions := NewSessionService(store, history, nil, zap.NewNop())
	repo := newMockAccountRepo(accounts...)
	tickets := newMockTicketStore()
	svc := NewAuthService(repo, tickets, tokens, sessions, NewMetricsService(), validator.New(), zap.NewNop(), AuthConfig{TicketTTL: time.Minute})
	return &authFixture{svc: svc, accounts: repo, tickets: tickets, store: store, history: history, tokens: tokens, sessions: sessions}
}

func localAccount(t *testing.T, password string, verified bool) *models.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	hashed := string(hash)
	return &models.Account{
		ID:            alice.UserID,
		Username:      alice.Username,
		Email:         alice.Email,
		PasswordHash:  &hashed,
		Provider:      models.ProviderLocal,
		EmailVerified: verified,
	}
}

func (f *authFixture) login(t *testing.T) *models.SessionTokens {
	t.Helper()
	ctx := context.Background()
	res, err := f.svc.LocalLogin(ctx, models.LocalLoginRequest{Username: "alice", Password: "password", IP: "10.0.0.1"})
	require.NoError(t, err)
	tokens, err := f.svc.IssueSession(ctx, models.IssueSessionRequest{User: *res.User, LoginTicket: res.LoginTicket, IP: "10.0.0.1"})
	require.NoError(t, err)
	return tokens
}

func TestAuthServiceLocalLoginSuccess(t *testing.T) {
	f := newAuthFixture(t, localAccount(t, "password", true))

	res, err := f.svc.LocalLogin(context.Background(), models.LocalLoginRequest{Username: "alice", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, models.LoginSuccess, res.Success)
	require.NotNil(t, res.User)
	assert.Equal(t, alice, *res.User)
	assert.NotEmpty(t, res.LoginTicket)
	assert.Contains(t, f.accounts.actions(), models.AuditActionLogin)
	assert.Equal(t, []string{alice.UserID}, f.accounts.lastLogins)
}

func TestAuthServiceLocalLoginFailures(t *testing.T) {
	f := newAuthFixture(t, localAccount(t, "password", true))
	ctx := context.Background()

	_, err := f.svc.LocalLogin(ctx, models.LocalLoginRequest{Username: "alice", Password: "wrong"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = f.svc.LocalLogin(ctx, models.LocalLoginRequest{Username: "mallory", Password: "password"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = f.svc.LocalLogin(ctx, models.LocalLoginRequest{Username: "alice"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	assert.Equal(t, []string{models.AuditActionLoginFailed, models.AuditActionLoginFailed}, f.accounts.actions())
}

func TestAuthServiceLocalLoginRequiresVerifiedEmail(t *testing.T) {
	f := newAuthFixture(t, localAccount(t, "password", false))

	_, err := f.svc.LocalLogin(context.Background(), models.LocalLoginRequest{Username: "alice", Password: "password"})
	assert.True(t, errors.Is(err, appErrors.ErrEmailNotVerified))
}

func TestAuthServiceSuspiciousLoginRevokesSession(t *testing.T) {
	f := newAuthFixture(t, localAccount(t, "password", true))
	f.login(t)

	f.history.ips = []string{"a", "b", "c", "d"}
	_, err := f.svc.LocalLogin(context.Background(), models.LocalLoginRequest{Username: "alice", Password: "password"})
	require.NoError(t, err)

	record := f.store.get(alice.UserID)
	require.NotNil(t, record)
	assert.True(t, record.Revoked)
	assert.Equal(t, models.RevokeReasonSecurity, *record.RevokedReason)
}

func TestAuthServiceIssueSession(t *testing.T) {
	f := newAuthFixture(t, localAccount(t, "password", true))
	tokens := f.login(t)

	identity, err := f.tokens.VerifyRefreshToken(tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, alice, *identity)
	_, err = f.tokens.VerifyAccessToken(tokens.AccessToken)
	require.NoError(t, err)

	record := f.store.get(alice.UserID)
	require.NotNil(t, record)
	assert.Equal(t, tokens.RefreshToken, record.Token)
	assert.Equal(t, tokens.SessionID, record.SessionID)
	assert.Equal(t, int64(15*60), tokens.AccessExpiresIn)
}

func TestAuthServiceIssueSessionTicketIsSingleUse(t *testing.T) {
	f := newAuthFixture(t, localAccount(t, "password", true))
	ctx := context.Background()

	res, err := f.svc.LocalLogin(ctx, models.LocalLoginRequest{Username: "alice", Password: "password"})
	require.NoError(t, err)
	req := models.IssueSessionRequest{User: *res.User, LoginTicket: res.LoginTicket}

	_, err = f.svc.IssueSession(ctx, req)
	require.NoError(t, err)
	_, err = f.svc.IssueSession(ctx, req)
	assert.True(t, errors.Is(err, appErrors.ErrTicketInvalid))
}

func TestAuthServiceIssueSessionRejectsForeignUser(t *testing.T) {
	f := newAuthFixture(t, localAccount(t, "password", true))
	ctx := context.Background()

	res, err := f.svc.LocalLogin(ctx, models.LocalLoginRequest{Username: "alice", Password: "password"})
	require.NoError(t, err)

	_, err = f.svc.IssueSession(ctx, models.IssueSessionRequest{
		User:        models.Identity{UserID: "u-admin", Username: "admin"},
		LoginTicket: res.LoginTicket,
	})
	assert.True(t, errors.Is(err, appErrors.ErrTicketInvalid))
	assert.Nil(t, f.store.get("u-admin"))

	_, err = f.svc.IssueSession(ctx, models.IssueSessionRequest{User: alice})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceRotateIsRepeatable(t *testing.T) {
	f := newAuthFixture(t, localAccount(t, "password", true))
	tokens := f.login(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := f.svc.Rotate(ctx, alice, tokens.RefreshToken, models.RequestMeta{})
		require.NoError(t, err)
		identity, err := f.tokens.VerifyAccessToken(res.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, alice.UserID, identity.UserID)
		assert.Equal(t, int64(15*60), res.ExpiresIn)
	}
}

func TestAuthServiceRotateDenied(t *testing.T) {
	f := newAuthFixture(t, localAccount(t, "password", true))
	ctx := context.Background()

	_, err := f.svc.Rotate(ctx, alice, "whatever", models.RequestMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrTokenRevoked), "no record")

	first := f.login(t)
	second := f.login(t)
	_, err = f.svc.Rotate(ctx, alice, first.RefreshToken, models.RequestMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrTokenRevoked), "superseded token")

	require.NoError(t, f.svc.Logout(ctx, alice.UserID, models.RequestMeta{}))
	_, err = f.svc.Rotate(ctx, alice, second.RefreshToken, models.RequestMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrTokenRevoked), "revoked")

	assert.Contains(t, f.accounts.actions(), models.AuditActionRotationDenied)
}

func TestAuthServiceRotateStoreFailure(t *testing.T) {
	f := newAuthFixture(t, localAccount(t, "password", true))
	tokens := f.login(t)
	f.store.findErr = errors.New("timeout")

	_, err := f.svc.Rotate(context.Background(), alice, tokens.RefreshToken, models.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutIsIdempotent(t *testing.T) {
	f := newAuthFixture(t, localAccount(t, "password", true))
	f.login(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Logout(ctx, alice.UserID, models.RequestMeta{}))
	require.NoError(t, f.svc.Logout(ctx, alice.UserID, models.RequestMeta{}))
	require.NoError(t, f.svc.Logout(ctx, "nobody", models.RequestMeta{}))

	logouts := 0
	for _, action := range f.accounts.actions() {
		if action == models.AuditActionLogout {
			logouts++
		}
	}
	assert.Equal(t, 1, logouts)
}

func TestAuthServiceRevokeSession(t *testing.T) {
	f := newAuthFixture(t, localAccount(t, "password", true))
	tokens := f.login(t)
	ctx := context.Background()

	err := f.svc.RevokeSession(ctx, alice.UserID, "not-mine", models.RequestMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	require.NoError(t, f.svc.RevokeSession(ctx, alice.UserID, tokens.SessionID, models.RequestMeta{}))
	assert.Equal(t, models.RevokeReasonUser, *f.store.get(alice.UserID).RevokedReason)
}

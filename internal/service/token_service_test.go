package service

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teamhub-api/internal/models"
	appErrors "github.com/noah-isme/teamhub-api/pkg/errors"
)

func testTokenConfig() TokenConfig {
	return TokenConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    12 * time.Hour,
		Issuer:        "teamhub-test",
	}
}

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testTokenConfig())
	require.NoError(t, err)
	return svc
}

var alice = models.Identity{UserID: "u-1", Username: "alice", Email: "alice@example.com"}

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := newTestTokenService(t)

	access, accessExp, err := svc.IssueAccessToken(alice)
	require.NoError(t, err)
	refresh, refreshExp, err := svc.IssueRefreshToken(alice)
	require.NoError(t, err)
	assert.True(t, accessExp.Before(refreshExp))

	got, err := svc.VerifyAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, alice, *got)

	got, err = svc.VerifyRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, alice, *got)
}

func TestTokenServiceTokensAreUnique(t *testing.T) {
	svc := newTestTokenService(t)
	a, _, err := svc.IssueAccessToken(alice)
	require.NoError(t, err)
	b, _, err := svc.IssueAccessToken(alice)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTokenServiceClassesDoNotCross(t *testing.T) {
	svc := newTestTokenService(t)

	access, _, err := svc.IssueAccessToken(alice)
	require.NoError(t, err)
	refresh, _, err := svc.IssueRefreshToken(alice)
	require.NoError(t, err)

	_, err = svc.VerifyRefreshToken(access)
	assert.ErrorIs(t, err, appErrors.ErrTokenInvalid)
	_, err = svc.VerifyAccessToken(refresh)
	assert.ErrorIs(t, err, appErrors.ErrTokenInvalid)
}

func TestTokenServiceFailsClosed(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	svc := newTestTokenService(t).WithClock(func() time.Time { return now })

	access, _, err := svc.IssueAccessToken(alice)
	require.NoError(t, err)

	foreign, err := NewTokenService(TokenConfig{AccessSecret: "other", RefreshSecret: "other-r", AccessTTL: time.Minute, RefreshTTL: time.Hour, Issuer: "teamhub-test"})
	require.NoError(t, err)
	forged, _, err := foreign.IssueAccessToken(alice)
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"userId": "u-1", "sub": "u-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not-a-token",
		"wrong secret":   forged,
		"alg none":       noneToken,
		"truncated":      access[:len(access)-4],
		"tampered claim": tamper(access),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.VerifyAccessToken(token)
			require.Error(t, err)
			assert.Same(t, appErrors.ErrTokenInvalid, appErrors.FromError(err))
		})
	}

	now = now.Add(16 * time.Minute)
	_, err = svc.VerifyAccessToken(access)
	assert.Same(t, appErrors.ErrTokenInvalid, appErrors.FromError(err), "expired tokens share the generic failure")
}

func TestTokenServiceRejectsBadConfig(t *testing.T) {
	cfg := testTokenConfig()
	cfg.RefreshSecret = cfg.AccessSecret
	_, err := NewTokenService(cfg)
	require.Error(t, err)

	cfg = testTokenConfig()
	cfg.AccessTTL = cfg.RefreshTTL
	_, err = NewTokenService(cfg)
	require.Error(t, err)

	cfg = testTokenConfig()
	cfg.AccessSecret = ""
	_, err = NewTokenService(cfg)
	require.Error(t, err)
}

func TestTokenServiceRequiresUserID(t *testing.T) {
	svc := newTestTokenService(t)
	_, _, err := svc.IssueAccessToken(models.Identity{Username: "ghost"})
	require.Error(t, err)
}

func tamper(token string) string {
	parts := strings.Split(token, ".")
	payload := []byte(parts[1])
	if payload[0] == 'e' {
		payload[0] = 'f'
	} else {
		payload[0] = 'e'
	}
	parts[1] = string(payload)
	return strings.Join(parts, ".")
}

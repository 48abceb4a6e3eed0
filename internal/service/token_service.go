package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/teamhub-api/internal/models"
	appErrors "github.com/noah-isme/teamhub-api/pkg/errors"
)

// TokenConfig defines signing material and lifetimes for both token classes.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// TokenService issues and verifies HS256 access and refresh tokens.
type TokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService validates cfg and constructs a TokenService.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	switch {
	case cfg.AccessSecret == "" || cfg.RefreshSecret == "":
		return nil, errors.New("token service: both secrets are required")
	case cfg.AccessSecret == cfg.RefreshSecret:
		return nil, errors.New("token service: access and refresh secrets must differ")
	case cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0:
		return nil, errors.New("token service: TTLs must be positive")
	case cfg.AccessTTL >= cfg.RefreshTTL:
		return nil, errors.New("token service: access TTL must be shorter than refresh TTL")
	}
	return &TokenService{config: cfg, now: time.Now}, nil
}

// WithClock overrides the time source used for issuing and verifying.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		s.now = now
	}
	return s
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.config.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.config.RefreshTTL }

// IssueAccessToken signs a short-lived access token for identity.
func (s *TokenService) IssueAccessToken(identity models.Identity) (string, time.Time, error) {
	return s.issue(identity, s.config.AccessSecret, s.config.AccessTTL)
}

// IssueRefreshToken signs a long-lived refresh token for identity.
func (s *TokenService) IssueRefreshToken(identity models.Identity) (string, time.Time, error) {
	return s.issue(identity, s.config.RefreshSecret, s.config.RefreshTTL)
}

// VerifyAccessToken verifies a token against the access secret.
func (s *TokenService) VerifyAccessToken(token string) (*models.Identity, error) {
	return s.Verify(token, s.config.AccessSecret)
}

// VerifyRefreshToken verifies a token against the refresh secret.
func (s *TokenService) VerifyRefreshToken(token string) (*models.Identity, error) {
	return s.Verify(token, s.config.RefreshSecret)
}

// Verify parses token with secret. Every failure collapses to ErrTokenInvalid
// so callers cannot tell a bad signature from an expired token.
func (s *TokenService) Verify(token, secret string) (*models.Identity, error) {
	if token == "" || secret == "" {
		return nil, appErrors.ErrTokenInvalid
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &models.TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, appErrors.ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*models.TokenClaims)
	if !ok || claims.UserID == "" || claims.Subject != claims.UserID {
		return nil, appErrors.ErrTokenInvalid
	}

	identity := claims.Identity()
	return &identity, nil
}

func (s *TokenService) issue(identity models.Identity, secret string, ttl time.Duration) (string, time.Time, error) {
	if identity.UserID == "" {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrValidation, "identity requires a user id")
	}
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(ttl)
	claims := &models.TokenClaims{
		UserID:   identity.UserID,
		Username: identity.Username,
		Email:    identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   identity.UserID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/teamhub-api/internal/models"
	"github.com/noah-isme/teamhub-api/internal/service"
	appErrors "github.com/noah-isme/teamhub-api/pkg/errors"
	applog "github.com/noah-isme/teamhub-api/pkg/logger"
	"github.com/noah-isme/teamhub-api/pkg/response"
)

// Gin context keys set by the session guards.
const (
	ContextIdentityKey     = "currentUser"
	ContextSessionKey      = "currentSession"
	ContextRefreshTokenKey = "presentedRefreshToken"
)

// TokenVerifier verifies both token classes.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*models.Identity, error)
	VerifyRefreshToken(token string) (*models.Identity, error)
}

// SessionChecker resolves the stored session of a user.
type SessionChecker interface {
	Status(ctx context.Context, userID string) (service.SessionStatus, *models.RefreshTokenRecord, error)
	Touch(ctx context.Context, record *models.RefreshTokenRecord)
}

type authEventRecorder interface {
	RecordAuthEvent(event string)
}

// AccessGuard admits requests carrying a valid access cookie whose user still
// has an active session. The store is consulted on every request so a logout
// takes effect before the access token expires.
func AccessGuard(tokens TokenVerifier, sessions SessionChecker, metrics authEventRecorder, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		raw, err := c.Cookie(AccessCookie)
		if err != nil || raw == "" {
			response.Unauthenticated(c)
			return
		}

		identity, err := tokens.VerifyAccessToken(raw)
		if err != nil {
			response.AuthError(c, appErrors.Clone(appErrors.ErrTokenInvalid, "invalid access token"))
			return
		}

		status, record, err := sessions.Status(c.Request.Context(), identity.UserID)
		if err != nil {
			logger.Error("session lookup failed", zap.String("user_id", identity.UserID), zap.Error(err))
			response.Error(c, err)
			c.Abort()
			return
		}
		if status != service.SessionActive {
			logger.Info("request with terminated session", zap.String("user_id", identity.UserID), zap.Int("status", int(status)))
			if metrics != nil {
				metrics.RecordAuthEvent(service.EventAccessRevoked)
			}
			response.AuthError(c, appErrors.ErrTokenRevoked)
			return
		}

		sessions.Touch(c.Request.Context(), record)
		c.Set(applog.UserIDKey, identity.UserID)
		c.Set(ContextIdentityKey, identity)
		c.Set(ContextSessionKey, record)
		c.Next()
	}
}

// RefreshGuard admits requests carrying a verifiable refresh cookie. It does
// not consult the store; the rotation handler does.
func RefreshGuard(tokens TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(RefreshCookie)
		if err != nil || raw == "" {
			response.Unauthenticated(c)
			return
		}

		identity, err := tokens.VerifyRefreshToken(raw)
		if err != nil {
			response.AuthError(c, appErrors.Clone(appErrors.ErrTokenInvalid, "invalid refresh token"))
			return
		}

		c.Set(applog.UserIDKey, identity.UserID)
		c.Set(ContextIdentityKey, identity)
		c.Set(ContextRefreshTokenKey, raw)
		c.Next()
	}
}

// CurrentIdentity returns the identity attached by a guard.
func CurrentIdentity(c *gin.Context) (*models.Identity, bool) {
	value, exists := c.Get(ContextIdentityKey)
	if !exists {
		return nil, false
	}
	identity, ok := value.(*models.Identity)
	return identity, ok && identity != nil
}

// CurrentSession returns the session record attached by AccessGuard.
func CurrentSession(c *gin.Context) *models.RefreshTokenRecord {
	value, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil
	}
	record, _ := value.(*models.RefreshTokenRecord)
	return record
}

// PresentedRefreshToken returns the raw refresh cookie accepted by RefreshGuard.
func PresentedRefreshToken(c *gin.Context) string {
	return c.GetString(ContextRefreshTokenKey)
}

// CookieIdentity resolves the caller from the refresh cookie, falling back to
// the access cookie. Unlike the guards it never aborts.
func CookieIdentity(c *gin.Context, tokens TokenVerifier) *models.Identity {
	if raw, err := c.Cookie(RefreshCookie); err == nil && raw != "" {
		if identity, err := tokens.VerifyRefreshToken(raw); err == nil {
			return identity
		}
	}
	if raw, err := c.Cookie(AccessCookie); err == nil && raw != "" {
		if identity, err := tokens.VerifyAccessToken(raw); err == nil {
			return identity
		}
	}
	return nil
}

package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/teamhub-api/internal/middleware"
	"github.com/noah-isme/teamhub-api/internal/models"
	appErrors "github.com/noah-isme/teamhub-api/pkg/errors"
	"github.com/noah-isme/teamhub-api/pkg/response"
)

type sessionLifecycle interface {
	IssueSession(ctx context.Context, req models.IssueSessionRequest) (*models.SessionTokens, error)
	Rotate(ctx context.Context, identity models.Identity, presented string, meta models.RequestMeta) (*models.RotationResult, error)
	Logout(ctx context.Context, userID string, meta models.RequestMeta) error
}

// TokenHandler issues, rotates and revokes session tokens.
type TokenHandler struct {
	auth    sessionLifecycle
	tokens  middleware.TokenVerifier
	cookies middleware.CookieSettings
	logger  *zap.Logger
}

// NewTokenHandler creates a new handler.
func NewTokenHandler(auth sessionLifecycle, tokens middleware.TokenVerifier, cookies middleware.CookieSettings, logger *zap.Logger) *TokenHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenHandler{auth: auth, tokens: tokens, cookies: cookies, logger: logger}
}

// Issue godoc
// @Summary Start a session
// @Description Redeem a login ticket for the given user and set the session cookies
// @Tags Tokens
// @Accept json
// @Produce json
// @Param X-CSRF-Token header string true "CSRF token"
// @Param payload body models.IssueSessionRequest true "Session payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/tokens/refresh [post]
func (h *TokenHandler) Issue(c *gin.Context) {
	var req models.IssueSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}
	meta := requestMeta(c)
	req.IP = meta.IP
	req.UserAgent = meta.UserAgent

	tokens, err := h.auth.IssueSession(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.cookies.SetSessionCookies(c, tokens.AccessToken, tokens.RefreshToken)
	response.JSON(c, http.StatusOK, tokens)
}

// Rotate godoc
// @Summary Rotate access token
// @Description Mint a new access token cookie from the refresh token cookie
// @Tags Tokens
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Marker
// @Failure 403 {object} response.Marker
// @Router /auth/tokens/access [get]
func (h *TokenHandler) Rotate(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}

	res, err := h.auth.Rotate(c.Request.Context(), *identity, middleware.PresentedRefreshToken(c), requestMeta(c))
	if err != nil {
		if errors.Is(err, appErrors.ErrTokenRevoked) {
			h.cookies.ClearSessionCookies(c)
			response.AuthError(c, err)
			return
		}
		response.Error(c, err)
		return
	}
	h.cookies.SetAccessCookie(c, res.AccessToken)
	response.JSON(c, http.StatusOK, res)
}

// Logout godoc
// @Summary End the caller's session
// @Description Revoke the session identified by the session cookies and clear them. Succeeds without a session.
// @Tags Tokens
// @Param X-CSRF-Token header string true "CSRF token"
// @Success 204
// @Failure 403 {object} response.Marker
// @Router /sessions/me [delete]
func (h *TokenHandler) Logout(c *gin.Context) {
	if identity := middleware.CookieIdentity(c, h.tokens); identity != nil {
		if err := h.auth.Logout(c.Request.Context(), identity.UserID, requestMeta(c)); err != nil {
			h.logger.Error("failed to revoke session on logout", zap.String("user_id", identity.UserID), zap.Error(err))
			h.cookies.ClearSessionCookies(c)
			response.Error(c, err)
			return
		}
	}
	h.cookies.ClearSessionCookies(c)
	h.cookies.ClearCSRFCookie(c)
	response.NoContent(c)
}

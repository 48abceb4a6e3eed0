package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/noah-isme/teamhub-api/internal/models"
	appErrors "github.com/noah-isme/teamhub-api/pkg/errors"
	"github.com/noah-isme/teamhub-api/pkg/response"
)

type localLoginService interface {
	LocalLogin(ctx context.Context, req models.LocalLoginRequest) (*models.LoginResult, error)
}

type oauthLoginService interface {
	Login(ctx context.Context, req models.OAuthLoginRequest) (*models.LoginResult, error)
	StartFlow(ctx context.Context) (*models.OAuthStart, error)
	Callback(ctx context.Context, state, code, providerError string, meta models.RequestMeta) (*models.OAuthFlow, error)
	Status(ctx context.Context, state string) (*models.OAuthFlow, error)
}

// AuthHandler wires the login endpoints to the auth services.
type AuthHandler struct {
	local localLoginService
	oauth oauthLoginService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(local localLoginService, oauth oauthLoginService) *AuthHandler {
	return &AuthHandler{local: local, oauth: oauth}
}

// LocalLogin godoc
// @Summary Authenticate with username and password
// @Description Verify credentials and return a one-time login ticket for the session endpoint
// @Tags Authentication
// @Accept json
// @Produce json
// @Param X-CSRF-Token header string true "CSRF token"
// @Param payload body models.LocalLoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/local/login [post]
func (h *AuthHandler) LocalLogin(c *gin.Context) {
	var req models.LocalLoginRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}
	meta := requestMeta(c)
	req.IP = meta.IP
	req.UserAgent = meta.UserAgent

	res, err := h.local.LocalLogin(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// OAuthLogin godoc
// @Summary Authenticate with Google
// @Description Exchange a Google access token or authorization code. Unknown accounts receive success=register.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param X-CSRF-Token header string true "CSRF token"
// @Param payload body models.OAuthLoginRequest true "OAuth payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/oauth [post]
func (h *AuthHandler) OAuthLogin(c *gin.Context) {
	var req models.OAuthLoginRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid oauth payload"))
		return
	}
	meta := requestMeta(c)
	req.IP = meta.IP
	req.UserAgent = meta.UserAgent

	res, err := h.oauth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// OAuthStart godoc
// @Summary Start a polled Google sign-in
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/oauth/start [get]
func (h *AuthHandler) OAuthStart(c *gin.Context) {
	start, err := h.oauth.StartFlow(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, start)
}

// OAuthCallback godoc
// @Summary Google redirect target for polled sign-ins
// @Tags Authentication
// @Produce plain
// @Param state query string true "Flow state"
// @Param code query string false "Authorization code"
// @Param error query string false "Provider error"
// @Success 200 {string} string
// @Failure 404 {object} response.Envelope
// @Router /auth/google/callback [get]
func (h *AuthHandler) OAuthCallback(c *gin.Context) {
	flow, err := h.oauth.Callback(c.Request.Context(), c.Query("state"), c.Query("code"), c.Query("error"), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if flow.Status != models.OAuthCompleted {
		c.String(http.StatusOK, "Sign-in failed. Return to the application and try again.")
		return
	}
	c.String(http.StatusOK, "Sign-in complete. You can close this window.")
}

// OAuthStatus godoc
// @Summary Poll a Google sign-in
// @Tags Authentication
// @Produce json
// @Param state query string true "Flow state"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/oauth/status [get]
func (h *AuthHandler) OAuthStatus(c *gin.Context) {
	state := c.Query("state")
	if state == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "state is required"))
		return
	}
	flow, err := h.oauth.Status(c.Request.Context(), state)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, flow)
}

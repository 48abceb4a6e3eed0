package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teamhub-api/internal/middleware"
	"github.com/noah-isme/teamhub-api/pkg/response"
)

type csrfIssuer interface {
	Issue(sessionID string) (string, time.Time, error)
}

// CSRFHandler issues double-submit tokens.
type CSRFHandler struct {
	csrf    csrfIssuer
	tokens  middleware.TokenVerifier
	cookies middleware.CookieSettings
}

// NewCSRFHandler creates a new handler.
func NewCSRFHandler(csrf csrfIssuer, tokens middleware.TokenVerifier, cookies middleware.CookieSettings) *CSRFHandler {
	return &CSRFHandler{csrf: csrf, tokens: tokens, cookies: cookies}
}

// Token godoc
// @Summary Issue CSRF token
// @Description Issue a CSRF token bound to the caller's session and set it as a cookie
// @Tags CSRF
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /csrf-token [get]
func (h *CSRFHandler) Token(c *gin.Context) {
	token, expiresAt, err := h.csrf.Issue(middleware.SessionIdentifier(c, h.tokens))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.cookies.SetCSRFCookie(c, token)
	response.JSON(c, http.StatusOK, gin.H{"csrfToken": token, "expiresAt": expiresAt.UTC()})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teamhub-api/pkg/response"
)

// UserHandler serves the current user's identity.
type UserHandler struct{}

// NewUserHandler creates a new user handler.
func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// Me godoc
// @Summary Current user
// @Description Return the identity claim of the signed-in user
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Marker
// @Failure 403 {object} response.Marker
// @Router /users [get]
func (h *UserHandler) Me(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"user": identity})
}

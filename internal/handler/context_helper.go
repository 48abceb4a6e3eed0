package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teamhub-api/internal/middleware"
	"github.com/noah-isme/teamhub-api/internal/models"
	appErrors "github.com/noah-isme/teamhub-api/pkg/errors"
	"github.com/noah-isme/teamhub-api/pkg/response"
)

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

// identityFromContext returns the guard-attached identity or aborts with 401.
func identityFromContext(c *gin.Context) (*models.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		c.Abort()
		return nil, false
	}
	return identity, true
}

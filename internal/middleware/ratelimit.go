package middleware

import (
	"context"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/noah-isme/teamhub-api/internal/service"
	appErrors "github.com/noah-isme/teamhub-api/pkg/errors"
	"github.com/noah-isme/teamhub-api/pkg/response"
)

// LoginLimiter decides whether a login attempt may proceed.
type LoginLimiter interface {
	AllowLogin(ctx context.Context, ip, username string) service.RateDecision
}

type loginAttempt struct {
	Username string `json:"username"`
}

// LoginRateLimit throttles login attempts per client address and username.
// Handlers behind it must bind the body with ShouldBindBodyWith.
func LoginRateLimit(limiter LoginLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var attempt loginAttempt
		_ = c.ShouldBindBodyWith(&attempt, binding.JSON)

		decision := limiter.AllowLogin(c.Request.Context(), c.ClientIP(), attempt.Username)
		if !decision.Allowed {
			seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
			if seconds > 0 {
				c.Header("Retry-After", strconv.Itoa(seconds))
			}
			response.Error(c, appErrors.ErrRateLimited)
			c.Abort()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Next()
	}
}

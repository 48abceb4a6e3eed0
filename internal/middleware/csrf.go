package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teamhub-api/pkg/csrf"
	"github.com/noah-isme/teamhub-api/pkg/response"
)

// CSRFValidator checks a double-submit token pair.
type CSRFValidator interface {
	Validate(cookie, header, sessionID string) error
}

// CSRF rejects state-changing requests whose cookie and header tokens are
// missing, differ, or were not issued for the caller. It must run ahead of the
// session guards.
func CSRF(validator CSRFValidator, tokens TokenVerifier, exemptPaths []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if isExempt(c.Request.URL.Path, exemptPaths) {
			c.Next()
			return
		}

		cookie, _ := c.Cookie(CSRFCookie)
		header := c.GetHeader(CSRFHeader)
		if err := validator.Validate(cookie, header, SessionIdentifier(c, tokens)); err != nil {
			response.AuthError(c, err)
			return
		}
		c.Next()
	}
}

// SessionIdentifier names the session a CSRF token is bound to: the user id of
// a valid session cookie, or the anonymous bucket.
func SessionIdentifier(c *gin.Context, tokens TokenVerifier) string {
	if identity := CookieIdentity(c, tokens); identity != nil {
		return identity.UserID
	}
	return csrf.AnonymousSession
}

func isExempt(path string, exemptPaths []string) bool {
	for _, prefix := range exemptPaths {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

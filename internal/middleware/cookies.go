package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Cookie names shared by the server and browser clients.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
	CSRFCookie    = "x-csrf-token"
	CSRFHeader    = "X-CSRF-Token"
)

// CookieSettings carries the attributes applied to every auth cookie.
type CookieSettings struct {
	Secure     bool
	Domain     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	CSRFTTL    time.Duration
}

// SetAccessCookie writes the access token cookie.
func (s CookieSettings) SetAccessCookie(c *gin.Context, token string) {
	s.set(c, AccessCookie, token, s.AccessTTL, http.SameSiteStrictMode)
}

// SetSessionCookies writes both session cookies.
func (s CookieSettings) SetSessionCookies(c *gin.Context, accessToken, refreshToken string) {
	s.SetAccessCookie(c, accessToken)
	s.set(c, RefreshCookie, refreshToken, s.RefreshTTL, http.SameSiteStrictMode)
}

// ClearSessionCookies expires both session cookies.
func (s CookieSettings) ClearSessionCookies(c *gin.Context) {
	s.set(c, AccessCookie, "", -1, http.SameSiteStrictMode)
	s.set(c, RefreshCookie, "", -1, http.SameSiteStrictMode)
}

// SetCSRFCookie writes the double-submit cookie.
func (s CookieSettings) SetCSRFCookie(c *gin.Context, token string) {
	s.set(c, CSRFCookie, token, s.CSRFTTL, http.SameSiteLaxMode)
}

// ClearCSRFCookie expires the double-submit cookie.
func (s CookieSettings) ClearCSRFCookie(c *gin.Context) {
	s.set(c, CSRFCookie, "", -1, http.SameSiteLaxMode)
}

func (s CookieSettings) set(c *gin.Context, name, value string, ttl time.Duration, sameSite http.SameSite) {
	maxAge := int(ttl.Seconds())
	if ttl < 0 {
		maxAge = -1
	}
	c.SetSameSite(sameSite)
	c.SetCookie(name, value, maxAge, "/", s.Domain, s.Secure, true)
}

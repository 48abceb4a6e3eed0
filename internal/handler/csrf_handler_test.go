package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teamhub-api/internal/middleware"
	"github.com/noah-isme/teamhub-api/internal/models"
	"github.com/noah-isme/teamhub-api/internal/service"
	"github.com/noah-isme/teamhub-api/pkg/csrf"
)

type recordingIssuer struct {
	sessions []string
}

func (r *recordingIssuer) Issue(sessionID string) (string, time.Time, error) {
	r.sessions = append(r.sessions, sessionID)
	return "csrf-" + sessionID, time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC), nil
}

func TestCSRFHandlerBindsToSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issuer := &recordingIssuer{}
	router := gin.New()
	router.GET("/api/csrf-token", NewCSRFHandler(issuer, stubVerifier{}, testCookies).Token)

	rec := perform(router, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec).Data
	assert.Equal(t, "csrf-"+csrf.AnonymousSession, data["csrfToken"])
	assert.NotEmpty(t, data["expiresAt"])
	cookie := responseCookies(rec)[middleware.CSRFCookie]
	require.NotNil(t, cookie)
	assert.Equal(t, data["csrfToken"], cookie.Value)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AccessCookie, Value: "access.u-1"})
	rec = perform(router, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{csrf.AnonymousSession, "u-1"}, issuer.sessions)
}

func TestUserHandlerMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewUserHandler()
	router.GET("/api/users", withIdentity(&models.Identity{UserID: "u-1", Username: "alice"}), h.Me)
	router.GET("/api/anonymous", h.Me)

	rec := perform(router, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeEnvelope(t, rec).Data["user"].(map[string]interface{})
	assert.Equal(t, "alice", user["username"])

	rec = perform(router, httptest.NewRequest(http.MethodGet, "/api/anonymous", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsHandlerReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	failing := false
	h := NewMetricsHandler(service.NewMetricsService(), map[string]ReadinessCheck{
		"redis": func(ctx context.Context) error {
			if failing {
				return errors.New("dial tcp: refused")
			}
			return nil
		},
	})
	router := gin.New()
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", h.Prometheus)

	assert.Equal(t, http.StatusOK, perform(router, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	assert.Equal(t, http.StatusOK, perform(router, httptest.NewRequest(http.MethodGet, "/ready", nil)).Code)

	failing = true
	rec := perform(router, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")

	rec = perform(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goroutines_total")
}

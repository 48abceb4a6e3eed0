package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/teamhub-api/internal/middleware"
	"github.com/noah-isme/teamhub-api/internal/models"
	appErrors "github.com/noah-isme/teamhub-api/pkg/errors"
)

type responseEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

type stubVerifier struct{}

func (stubVerifier) VerifyAccessToken(token string) (*models.Identity, error) {
	return stubVerify(token, "access.")
}

func (stubVerifier) VerifyRefreshToken(token string) (*models.Identity, error) {
	return stubVerify(token, "refresh.")
}

func stubVerify(token, prefix string) (*models.Identity, error) {
	if !strings.HasPrefix(token, prefix) {
		return nil, appErrors.ErrTokenInvalid
	}
	return &models.Identity{UserID: strings.TrimPrefix(token, prefix)}, nil
}

var testCookies = middleware.CookieSettings{AccessTTL: 15 * time.Minute, RefreshTTL: 12 * time.Hour, CSRFTTL: time.Hour}

func withIdentity(identity *models.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextIdentityKey, identity)
		c.Next()
	}
}

func perform(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func responseCookies(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, ck := range (&http.Response{Header: rec.Header()}).Cookies() {
		out[ck.Name] = ck
	}
	return out
}

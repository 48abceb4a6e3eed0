package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

const (
	rotateOK      = "ok"
	rotateRevoked = "revoked"
	rotateInvalid = "invalid"
	rotateFailure = "failure"
)

type fakeAPI struct {
	mu            sync.Mutex
	accessValid   bool
	stickyExpired bool
	rotateMode    string
	rotations     int
	requests      int
	csrfFetches   int
	csrfToken     string
	logouts       int
	oauthPolls    int
	oauthPending  int
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{accessValid: true, rotateMode: rotateOK}
	server := httptest.NewServer(api.routes())
	t.Cleanup(server.Close)
	return api, server
}

func (f *fakeAPI) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(PathCSRFToken, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.csrfFetches++
		f.csrfToken = fmt.Sprintf("csrf-%d", f.csrfFetches)
		token := f.csrfToken
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]string{"csrfToken": token}})
	})
	mux.HandleFunc(PathRotate, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.rotations++
		mode := f.rotateMode
		if mode == rotateOK && !f.stickyExpired {
			f.accessValid = true
		}
		f.mu.Unlock()
		switch mode {
		case rotateOK:
			writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]int{"expiresIn": 900}})
		case rotateRevoked:
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": MarkerTokenRevoked, "message": "Your session has been terminated. Please sign in again."})
		case rotateInvalid:
			writeJSON(w, http.StatusForbidden, map[string]string{"error": MarkerTokenInvalid, "message": "invalid refresh token"})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": map[string]string{"code": "INTERNAL_ERROR", "message": "internal server error"}})
		}
	})
	mux.HandleFunc("/api/resource", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests++
		valid := f.accessValid
		token := f.csrfToken
		f.mu.Unlock()
		if r.Method != http.MethodGet && (token == "" || r.Header.Get(csrfHeader) != token) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": MarkerCSRFInvalid, "message": "invalid CSRF token"})
			return
		}
		if !valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]bool{"ok": true}})
	})
	mux.HandleFunc(PathLogout, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.logouts++
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc(PathOAuthStatus, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.oauthPolls++
		status := OAuthPending
		if f.oauthPolls > f.oauthPending {
			status = OAuthCompleted
		}
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{
			"state":  r.URL.Query().Get("state"),
			"status": status,
		}})
	})
	return mux
}

func (f *fakeAPI) set(fn func(f *fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeAPI) counts() (rotations, requests int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rotations, f.requests
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type recordingCache struct {
	mu     sync.Mutex
	events *[]string
	clears int
}

func (c *recordingCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
	if c.events != nil {
		*c.events = append(*c.events, "clear")
	}
}

func (c *recordingCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clears
}

// Package apiclient is a cookie-session HTTP client for the TeamHub API. It
// attaches CSRF tokens to mutating requests, rotates the access token once
// after a 401 and, when the server reports the session as revoked, clears the
// view cache and emits a revocation signal.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/teamhub-api/pkg/viewcache"
)

// Default endpoint paths.
const (
	PathCSRFToken     = "/api/csrf-token"
	PathRotate        = "/api/auth/tokens/access"
	PathIssueSession  = "/api/auth/tokens/refresh"
	PathLocalLogin    = "/api/auth/local/login"
	PathOAuthLogin    = "/api/auth/oauth"
	PathOAuthStatus   = "/api/auth/oauth/status"
	PathLogout        = "/api/sessions/me"
	PathSecurityCheck = "/api/sessions/security-check"
	PathCurrentUser   = "/api/users"

	csrfHeader   = "X-CSRF-Token"
	maxBodyPeek  = 64 << 10
	rotationKey  = "rotate"
	defaultRetry = 1
)

// CacheInvalidator is cleared when a session ends.
type CacheInvalidator interface {
	ClearAll()
}

// Request is a replayable API request.
type Request struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header
}

// Option customises a Gateway.
type Option func(*Gateway)

// WithHTTPClient replaces the HTTP client. Its cookie jar is replaced when nil.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		if client != nil {
			g.http = client
		}
	}
}

// WithInvalidator sets the cache cleared on logout and revocation.
func WithInvalidator(cache CacheInvalidator) Option {
	return func(g *Gateway) {
		if cache != nil {
			g.cache = cache
		}
	}
}

// WithSignals shares a signal registry between gateways.
func WithSignals(signals *Signals) Option {
	return func(g *Gateway) {
		if signals != nil {
			g.signals = signals
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithRotationCoalescing merges rotations started while another is in flight.
func WithRotationCoalescing() Option {
	return func(g *Gateway) {
		g.rotations = &singleflight.Group{}
	}
}

// Gateway sends API requests on behalf of one browser-like session.
type Gateway struct {
	baseURL   string
	http      *http.Client
	cache     CacheInvalidator
	signals   *Signals
	logger    *zap.Logger
	rotations *singleflight.Group

	csrfMu    sync.Mutex
	csrfToken string

	monitorMu sync.Mutex
	monitor   *ActivityMonitor
}

// New constructs a Gateway for baseURL.
func New(baseURL string, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		signals: NewSignals(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.cache == nil {
		g.cache = viewcache.New()
	}
	if g.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("apiclient: cookie jar: %w", err)
		}
		g.http.Jar = jar
	}
	return g, nil
}

// Signals returns the gateway's signal registry.
func (g *Gateway) Signals() *Signals {
	return g.signals
}

// Cache returns the invalidator cleared by the gateway.
func (g *Gateway) Cache() CacheInvalidator {
	return g.cache
}

// Do sends req. A 401 triggers one rotation; when it succeeds the request is
// replayed once and the replay's response is returned whatever its status.
// Otherwise the original 401 is returned.
func (g *Gateway) Do(ctx context.Context, req *Request) (*http.Response, error) {
	return WithRetry(ctx, func(ctx context.Context, attempt int) (*http.Response, bool, error) {
		resp, err := g.send(ctx, req)
		if err != nil {
			return nil, false, err
		}
		if resp.StatusCode != http.StatusUnauthorized || attempt > 0 {
			return resp, false, nil
		}

		err = g.Rotate(ctx)
		if err == nil {
			g.logger.Debug("access token rotated, replaying request", zap.String("path", req.Path))
			drain(resp)
			return nil, true, nil
		}

		var revoked *RevokedError
		if errors.As(err, &revoked) {
			g.logger.Warn("session terminated by server", zap.String("code", revoked.Code))
			g.endSession()
			g.signals.TokenRevoked(revoked.Message)
			return resp, false, nil
		}
		g.logger.Info("access token rotation failed", zap.String("path", req.Path), zap.Error(err))
		return resp, false, nil
	}, defaultRetry)
}

// Rotate asks the server for a new access token cookie.
func (g *Gateway) Rotate(ctx context.Context) error {
	if g.rotations == nil {
		return g.rotate(ctx)
	}
	_, err, _ := g.rotations.Do(rotationKey, func() (interface{}, error) {
		return nil, g.rotate(ctx)
	})
	return err
}

func (g *Gateway) rotate(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+PathRotate, nil)
	if err != nil {
		return err
	}
	resp, err := g.http.Do(httpReq)
	if err != nil {
		return transportError(err)
	}
	defer drain(resp)

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	code, message := peekMarker(resp)
	if isSessionMarker(code) {
		if message == "" {
			message = defaultRevokedMessage
		}
		return &RevokedError{Code: code, Message: message}
	}
	return &StatusError{Status: resp.StatusCode, Code: code}
}

func (g *Gateway) send(ctx context.Context, req *Request) (*http.Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, g.baseURL+req.Path, body)
	if err != nil {
		return nil, err
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if isMutating(req.Method) {
		token, err := g.csrf(ctx)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set(csrfHeader, token)
	}

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode == http.StatusForbidden {
		if code, _ := peekMarker(resp); code == MarkerCSRFInvalid {
			g.ResetCSRF()
		}
	}
	return resp, nil
}

func (g *Gateway) csrf(ctx context.Context) (string, error) {
	g.csrfMu.Lock()
	defer g.csrfMu.Unlock()
	if g.csrfToken != "" {
		return g.csrfToken, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+PathCSRFToken, nil)
	if err != nil {
		return "", err
	}
	resp, err := g.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCSRFUnavailable, err)
	}
	result, err := readJSON(resp)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCSRFUnavailable, err)
	}
	var payload struct {
		CSRFToken string `json:"csrfToken"`
	}
	if !result.OK() || result.Decode(&payload) != nil || payload.CSRFToken == "" {
		return "", fmt.Errorf("%w: status %d", ErrCSRFUnavailable, result.Status)
	}
	g.csrfToken = payload.CSRFToken
	return g.csrfToken, nil
}

// ResetCSRF drops the cached CSRF token so the next mutating request fetches
// a fresh one.
func (g *Gateway) ResetCSRF() {
	g.csrfMu.Lock()
	g.csrfToken = ""
	g.csrfMu.Unlock()
}

// endSession clears client state tied to the session.
func (g *Gateway) endSession() {
	g.cache.ClearAll()
	g.ResetCSRF()
	g.stopMonitor()
}

// DoJSON sends body encoded as JSON and decodes the response envelope.
func (g *Gateway) DoJSON(ctx context.Context, method, path string, body interface{}) (*JSONResult, error) {
	req := &Request{Method: method, Path: path}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("apiclient: encode body: %w", err)
		}
		req.Body = raw
	}
	resp, err := g.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return readJSON(resp)
}

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyPeek))
	_ = resp.Body.Close()
}

// peekMarker reads the error code of a response and restores its body.
func peekMarker(resp *http.Response) (code, message string) {
	if resp.Body == nil {
		return "", ""
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyPeek))
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 {
		return "", ""
	}
	apiErr, _ := parseError(raw)
	if apiErr == nil {
		return "", ""
	}
	return apiErr.Code, apiErr.Message
}

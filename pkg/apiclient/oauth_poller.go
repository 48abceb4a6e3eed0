package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// OAuth flow states reported by the server.
const (
	OAuthPending   = "pending"
	OAuthCompleted = "completed"
	OAuthError     = "error"
	OAuthTimeout   = "timeout"
)

// OAuthOutcome is the final state of a polled sign-in.
type OAuthOutcome struct {
	State  string       `json:"state"`
	Status string       `json:"status"`
	Result *LoginResult `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// OAuthPoller waits for a sign-in completed in another window.
type OAuthPoller struct {
	gateway     *Gateway
	interval    time.Duration
	maxAttempts int
}

// NewOAuthPoller polls every interval, at most maxAttempts times.
func (g *Gateway) NewOAuthPoller(interval time.Duration, maxAttempts int) *OAuthPoller {
	if interval <= 0 {
		interval = time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 60
	}
	return &OAuthPoller{gateway: g, interval: interval, maxAttempts: maxAttempts}
}

// Poll returns once the flow leaves the pending state or the attempts run
// out, which reads as a timeout.
func (p *OAuthPoller) Poll(ctx context.Context, state string) (*OAuthOutcome, error) {
	path := PathOAuthStatus + "?state=" + url.QueryEscape(state)
	for attempt := 1; ; attempt++ {
		var outcome OAuthOutcome
		if err := p.gateway.call(ctx, http.MethodGet, path, nil, &outcome); err != nil {
			return nil, err
		}
		if outcome.Status != OAuthPending {
			return &outcome, nil
		}
		if attempt >= p.maxAttempts {
			return &OAuthOutcome{State: state, Status: OAuthTimeout}, nil
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

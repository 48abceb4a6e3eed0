package apiclient

import (
	"context"
	"fmt"
	"net/http"
)

// Identity is the user claim returned by the API.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginResult is the outcome of a login call.
type LoginResult struct {
	Success     string    `json:"success"`
	User        *Identity `json:"user,omitempty"`
	LoginTicket string    `json:"loginTicket,omitempty"`
	Email       string    `json:"email,omitempty"`
}

// Session describes a session started through the gateway.
type Session struct {
	User             Identity `json:"-"`
	SessionID        string   `json:"sessionId"`
	AccessExpiresIn  int64    `json:"accessExpiresIn"`
	RefreshExpiresIn int64    `json:"refreshExpiresIn"`
}

// Login authenticates with username and password and starts a session.
func (g *Gateway) Login(ctx context.Context, username, password string) (*Session, error) {
	g.ResetCSRF()
	var login LoginResult
	if err := g.call(ctx, http.MethodPost, PathLocalLogin, map[string]string{"username": username, "password": password}, &login); err != nil {
		return nil, err
	}
	return g.IssueSession(ctx, login)
}

// IssueSession redeems a successful login for session cookies.
func (g *Gateway) IssueSession(ctx context.Context, login LoginResult) (*Session, error) {
	if login.User == nil || login.LoginTicket == "" {
		return nil, fmt.Errorf("%w: login result carries no ticket", ErrUnexpectedBody)
	}
	payload := map[string]interface{}{"user": login.User, "loginTicket": login.LoginTicket}
	var session Session
	if err := g.call(ctx, http.MethodPost, PathIssueSession, payload, &session); err != nil {
		return nil, err
	}
	session.User = *login.User
	// the CSRF token is bound to the session, which just changed
	g.ResetCSRF()
	return &session, nil
}

// Logout ends the session on the server and clears client state. Client
// state is cleared even when the server call fails.
func (g *Gateway) Logout(ctx context.Context) error {
	resp, err := g.Do(ctx, &Request{Method: http.MethodDelete, Path: PathLogout})
	g.endSession()
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		code, _ := peekMarker(resp)
		return &StatusError{Status: resp.StatusCode, Code: code}
	}
	return nil
}

// CurrentUser returns the signed-in user.
func (g *Gateway) CurrentUser(ctx context.Context) (*Identity, error) {
	var payload struct {
		User Identity `json:"user"`
	}
	if err := g.call(ctx, http.MethodGet, PathCurrentUser, nil, &payload); err != nil {
		return nil, err
	}
	return &payload.User, nil
}

func (g *Gateway) call(ctx context.Context, method, path string, body, out interface{}) error {
	result, err := g.DoJSON(ctx, method, path, body)
	if err != nil {
		return err
	}
	if !result.OK() {
		if result.Revoked() {
			return &RevokedError{Code: result.Error.Code, Message: result.Error.Message}
		}
		code := ""
		if result.Error != nil {
			code = result.Error.Code
		}
		return &StatusError{Status: result.Status, Code: code}
	}
	if out == nil {
		return nil
	}
	return result.Decode(out)
}

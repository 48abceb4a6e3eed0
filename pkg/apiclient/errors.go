package apiclient

import (
	"errors"
	"fmt"
)

var (
	ErrTransport       = errors.New("apiclient: transport failure")
	ErrCSRFUnavailable = errors.New("apiclient: csrf token unavailable")
	ErrUnexpectedBody  = errors.New("apiclient: unexpected response body")
)

// Session markers returned by the server when a session is unusable.
const (
	MarkerTokenRevoked = "TOKEN_REVOKED"
	MarkerTokenInvalid = "TOKEN_INVALID"
	MarkerCSRFInvalid  = "CSRF_INVALID"
)

const defaultRevokedMessage = "Your session has been terminated. Please sign in again."

// RevokedError reports that the server refused to rotate because the session
// was revoked or the refresh token is invalid.
type RevokedError struct {
	Code    string
	Message string
}

func (e *RevokedError) Error() string {
	return fmt.Sprintf("apiclient: session terminated (%s): %s", e.Code, e.Message)
}

// StatusError reports a non-successful response that carries no session marker.
type StatusError struct {
	Status int
	Code   string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("apiclient: status %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("apiclient: status %d", e.Status)
}

func isSessionMarker(code string) bool {
	return code == MarkerTokenRevoked || code == MarkerTokenInvalid
}

func transportError(err error) error {
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

package models

import "time"

// OAuthFlowStatus is the state of a polled OAuth sign-in.
type OAuthFlowStatus string

const (
	OAuthPending   OAuthFlowStatus = "pending"
	OAuthCompleted OAuthFlowStatus = "completed"
	OAuthError     OAuthFlowStatus = "error"
	OAuthTimeout   OAuthFlowStatus = "timeout"
)

// OAuthFlow tracks a sign-in started by a client that cannot receive the
// redirect itself and instead polls for the outcome.
type OAuthFlow struct {
	State       string          `json:"state"`
	Status      OAuthFlowStatus `json:"status"`
	Result      *LoginResult    `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// OAuthStart is returned when a polled flow begins.
type OAuthStart struct {
	State   string `json:"state"`
	AuthURL string `json:"authUrl"`
}

// OAuthUserInfo is the subset of the provider profile used to match accounts.
type OAuthUserInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Identity is the minimal claim set carried by both token classes.
type Identity struct {
	UserID   string `json:"userId" bson:"user_id" validate:"required,max=64"`
	Username string `json:"username" bson:"username"`
	Email    string `json:"email" bson:"email"`
}

// TokenClaims represents the JWT payload for access and refresh tokens.
type TokenClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// Identity extracts the identity claim from the token payload.
func (c *TokenClaims) Identity() Identity {
	return Identity{UserID: c.UserID, Username: c.Username, Email: c.Email}
}

// LocalLoginRequest holds credentials for the username/password flow.
type LocalLoginRequest struct {
	Username  string `json:"username" validate:"required,max=64"`
	Password  string `json:"password" validate:"required,max=128"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// OAuthLoginRequest carries a Google access token obtained by the client, or an
// authorization code for the server side exchange.
type OAuthLoginRequest struct {
	AccessToken  string `json:"accessToken" validate:"required_without=Code"`
	Code         string `json:"code" validate:"required_without=AccessToken"`
	CodeVerifier string `json:"codeVerifier"`
	RedirectURI  string `json:"redirectUri"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// LoginResult is returned by both login flows. The ticket is exchanged for a
// session through the token issue endpoint.
type LoginResult struct {
	Success     string    `json:"success"`
	User        *Identity `json:"user,omitempty"`
	LoginTicket string    `json:"loginTicket,omitempty"`
	Email       string    `json:"email,omitempty"`
}

// Login result markers.
const (
	LoginSuccess  = "login"
	LoginRegister = "register"
)

// IssueSessionRequest asks the server to mint a refresh token for user.
type IssueSessionRequest struct {
	User        Identity `json:"user"`
	LoginTicket string   `json:"loginTicket" validate:"required"`
	IP          string   `json:"-"`
	UserAgent   string   `json:"-"`
}

// SessionTokens describes a freshly issued session.
type SessionTokens struct {
	AccessToken      string `json:"-"`
	RefreshToken     string `json:"-"`
	AccessExpiresIn  int64  `json:"accessExpiresIn"`
	RefreshExpiresIn int64  `json:"refreshExpiresIn"`
	SessionID        string `json:"sessionId"`
}

// RotationResult describes a freshly minted access token.
type RotationResult struct {
	AccessToken string `json:"-"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// RequestMeta identifies the client behind a request for audit trails.
type RequestMeta struct {
	IP        string
	UserAgent string
}

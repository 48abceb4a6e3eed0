package models

import "time"

// AuthProvider identifies how an account signs in.
type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
)

// Account is the read model of a user consulted by the login flows.
type Account struct {
	ID            string       `db:"id" json:"id"`
	Username      string       `db:"username" json:"username"`
	Email         string       `db:"email" json:"email"`
	PasswordHash  *string      `db:"password_hash" json:"-"`
	Provider      AuthProvider `db:"provider" json:"provider"`
	EmailVerified bool         `db:"email_verified" json:"emailVerified"`
	LastLogin     *time.Time   `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"createdAt"`
}

// Identity returns the claim set embedded in tokens for this account.
func (a *Account) Identity() Identity {
	return Identity{UserID: a.ID, Username: a.Username, Email: a.Email}
}

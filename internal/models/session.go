package models

import "time"

// Revocation reasons recorded on a refresh token record.
const (
	RevokeReasonLogout   = "user_logout"
	RevokeReasonUser     = "user_revoke"
	RevokeReasonSecurity = "security"
	RevokeReasonAdmin    = "admin"
)

// RefreshTokenRecord is the single persisted session of a user. UserID is the
// unique key; issuing a new refresh token overwrites the record in place.
type RefreshTokenRecord struct {
	UserID        string     `db:"user_id" bson:"user_id" json:"userId"`
	SessionID     string     `db:"session_id" bson:"session_id" json:"sessionId"`
	Token         string     `db:"token" bson:"token" json:"-"`
	CreatedAt     time.Time  `db:"created_at" bson:"created_at" json:"createdAt"`
	ExpiresAt     time.Time  `db:"expires_at" bson:"expires_at" json:"expiresAt"`
	Revoked       bool       `db:"revoked" bson:"revoked" json:"revoked"`
	RevokedAt     *time.Time `db:"revoked_at" bson:"revoked_at,omitempty" json:"revokedAt,omitempty"`
	RevokedReason *string    `db:"revoked_reason" bson:"revoked_reason,omitempty" json:"revokedReason,omitempty"`
	IPAddress     string     `db:"ip_address" bson:"ip_address" json:"ipAddress"`
	UserAgent     string     `db:"user_agent" bson:"user_agent" json:"userAgent"`
	LastActivity  time.Time  `db:"last_activity" bson:"last_activity" json:"lastActivity"`
}

// Active reports whether the record can still back a session at now.
func (r *RefreshTokenRecord) Active(now time.Time) bool {
	return r != nil && !r.Revoked && now.Before(r.ExpiresAt)
}

// Expired reports whether the record's validity window has elapsed.
func (r *RefreshTokenRecord) Expired(now time.Time) bool {
	return r != nil && !now.Before(r.ExpiresAt)
}

// SessionInfo is the public view of a session used by introspection endpoints.
type SessionInfo struct {
	SessionID    string    `json:"sessionId"`
	IPAddress    string    `json:"ipAddress"`
	UserAgent    string    `json:"userAgent"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	LastActivity time.Time `json:"lastActivity"`
	Current      bool      `json:"current"`
}

// SecurityReport summarises signals that a session may be compromised.
type SecurityReport struct {
	ActiveSessions  int      `json:"activeSessions"`
	UniqueIPs       []string `json:"uniqueIps"`
	Suspicious      bool     `json:"suspicious"`
	Recommendations []string `json:"recommendations,omitempty"`
	SessionExpires  string   `json:"sessionExpires,omitempty"`
}

// ToInfo converts the record into its public view.
func (r *RefreshTokenRecord) ToInfo(currentSessionID string) SessionInfo {
	return SessionInfo{
		SessionID:    r.SessionID,
		IPAddress:    r.IPAddress,
		UserAgent:    r.UserAgent,
		CreatedAt:    r.CreatedAt,
		ExpiresAt:    r.ExpiresAt,
		LastActivity: r.LastActivity,
		Current:      currentSessionID != "" && r.SessionID == currentSessionID,
	}
}

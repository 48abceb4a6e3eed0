package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AnonymousSession is the shared bucket used before a user is authenticated.
const AnonymousSession = "anonymous"

var (
	ErrMalformed = errors.New("csrf: malformed token")
	ErrSignature = errors.New("csrf: invalid token signature")
	ErrExpired   = errors.New("csrf: token expired")
)

// Signer creates and validates CSRF tokens bound to a session identifier.
// A token has the form nonce.expiry.signature.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner constructs a signer with the provided secret and TTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock overrides the time source.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	if now != nil {
		s.now = now
	}
	return s
}

// Generate returns a fresh token bound to sessionID.
func (s *Signer) Generate(sessionID string) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("csrf: signing secret missing")
	}
	if sessionID == "" {
		sessionID = AnonymousSession
	}
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("csrf: read nonce: %w", err)
	}
	nonce := hex.EncodeToString(buf)
	expiresAt := s.now().Add(s.ttl)
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{nonce, exp, s.sign(sessionID, nonce, exp)}, ".")
	return token, expiresAt, nil
}

// Verify checks that token was issued by this signer for sessionID and has not expired.
func (s *Signer) Verify(token, sessionID string) error {
	if sessionID == "" {
		sessionID = AnonymousSession
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" {
		return ErrMalformed
	}
	nonce, exp, signature := parts[0], parts[1], parts[2]

	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return ErrMalformed
	}

	expected := s.sign(sessionID, nonce, exp)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignature
	}
	if s.now().After(time.Unix(expUnix, 0)) {
		return ErrExpired
	}
	return nil
}

func (s *Signer) sign(sessionID, nonce, exp string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(sessionID + "|" + nonce + "|" + exp))
	return hex.EncodeToString(mac.Sum(nil))
}

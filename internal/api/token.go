package api

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is a mutable TokenProvider. The token is opaque to the
// backend contract, but when it happens to be a JWT the session reads
// its claims (unverified, the server is the verifier) to expose the
// username, role and expiry to the UI.
type Session struct {
	mu       sync.RWMutex
	token    string
	username string
	role     string
	expires  time.Time
}

type sessionClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// NewSession creates an unauthenticated session.
func NewSession() *Session {
	return &Session{}
}

// Token implements TokenProvider.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken installs a new bearer token and refreshes the derived
// claim fields. Non-JWT tokens are accepted as-is.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.username, s.role, s.expires = "", "", time.Time{}
	if token == "" {
		return
	}

	claims := &sessionClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return
	}
	s.username = claims.Username
	s.role = claims.Role
	if claims.ExpiresAt != nil {
		s.expires = claims.ExpiresAt.Time
	}
}

// Clear drops the token.
func (s *Session) Clear() {
	s.SetToken("")
}

// Username returns the username claim, if any.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// Role returns the role claim, if any.
func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// Expired reports whether the token carries an expiry in the past.
// Tokens without an expiry claim never report expired.
func (s *Session) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.expires.IsZero() && time.Now().After(s.expires)
}

// Package session provides the session store that maps opaque tokens to users.
// A user has at most one active session: creating a session invalidates any
// prior sessions for that user.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// Static errors for session operations.
var (
	// ErrNotFound is returned when a token does not resolve to a session.
	ErrNotFound = errors.New("session: not found")
	// ErrExpired is returned when a session's expiry is in the past.
	ErrExpired = errors.New("session: expired")
)

// Session maps an opaque token to a user with an optional expiry.
type Session struct {
	// Token is the opaque identifier handed to the client as a cookie.
	Token string
	// UserID is the owning user.
	UserID string
	// ExpiresAt is the expiry instant; zero means no expiry.
	ExpiresAt time.Time
}

// Expired returns true if the session has an expiry in the past.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(now)
}

// NewToken generates a 32-byte random hex token.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Store defines the interface for session persistence.
type Store interface {
	// Create issues a new session for the user with the given TTL and
	// invalidates any prior sessions for that user.
	Create(ctx context.Context, userID string, ttl time.Duration) (*Session, error)

	// Get resolves a token. Returns ErrNotFound for unknown tokens and
	// ErrExpired for sessions past their expiry.
	Get(ctx context.Context, token string) (*Session, error)

	// Delete removes a session by token. Unknown tokens are a no-op.
	Delete(ctx context.Context, token string) error

	// DeleteByUser removes all sessions belonging to the user.
	DeleteByUser(ctx context.Context, userID string) error

	// DeleteExpired removes all sessions past their expiry and returns
	// how many were removed.
	DeleteExpired(ctx context.Context) (int, error)
}

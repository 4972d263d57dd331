package session

import (
	"context"
	"sync"
	"time"
)

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu       sync.RWMutex
	byToken  map[string]*Session
	byUserID map[string]string
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byToken:  make(map[string]*Session),
		byUserID: make(map[string]string),
	}
}

// Create issues a session and drops any prior session for the user.
func (s *MemoryStore) Create(_ context.Context, userID string, ttl time.Duration) (*Session, error) {
	token, err := NewToken()
	if err != nil {
		return nil, err
	}

	sess := &Session{
		Token:  token,
		UserID: userID,
	}
	if ttl > 0 {
		sess.ExpiresAt = time.Now().UTC().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byUserID[userID]; ok {
		delete(s.byToken, prev)
	}
	s.byToken[token] = sess
	s.byUserID[userID] = token
	cp := *sess
	return &cp, nil
}

// Get resolves a token.
func (s *MemoryStore) Get(_ context.Context, token string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byToken[token]
	if !ok {
		return nil, ErrNotFound
	}
	if sess.Expired(time.Now().UTC()) {
		return nil, ErrExpired
	}
	cp := *sess
	return &cp, nil
}

// Delete removes a session by token.
func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byToken[token]; ok {
		if s.byUserID[sess.UserID] == token {
			delete(s.byUserID, sess.UserID)
		}
		delete(s.byToken, token)
	}
	return nil
}

// DeleteByUser removes all sessions for a user.
func (s *MemoryStore) DeleteByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token, ok := s.byUserID[userID]; ok {
		delete(s.byToken, token)
		delete(s.byUserID, userID)
	}
	return nil
}

// DeleteExpired removes all sessions past their expiry.
func (s *MemoryStore) DeleteExpired(_ context.Context) (int, error) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for token, sess := range s.byToken {
		if sess.Expired(now) {
			if s.byUserID[sess.UserID] == token {
				delete(s.byUserID, sess.UserID)
			}
			delete(s.byToken, token)
			deleted++
		}
	}
	return deleted, nil
}

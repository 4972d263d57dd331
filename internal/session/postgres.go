package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// PostgresStore persists sessions in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Create issues a session, replacing any prior sessions for the user in one
// transaction.
func (s *PostgresStore) Create(ctx context.Context, userID string, ttl time.Duration) (*Session, error) {
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("session: invalidate prior: %w", err)
	}

	var expiresAt any
	if !sess.ExpiresAt.IsZero() {
		expiresAt = sess.ExpiresAt
	}
	query := `INSERT INTO sessions (token, user_id, expires_at) VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, query, sess.Token, sess.UserID, expiresAt); err != nil {
		return nil, fmt.Errorf("session: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("session: commit: %w", err)
	}
	return sess, nil
}

// Get resolves a token.
func (s *PostgresStore) Get(ctx context.Context, token string) (*Session, error) {
	query := `SELECT token, user_id, expires_at FROM sessions WHERE token = $1`

	var sess Session
	var expiresAt *time.Time
	err := s.pool.QueryRow(ctx, query, token).Scan(&sess.Token, &sess.UserID, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: get: %w", err)
	}
	if expiresAt != nil {
		sess.ExpiresAt = *expiresAt
	}
	if sess.Expired(time.Now().UTC()) {
		return nil, ErrExpired
	}
	return &sess, nil
}

// Delete removes a session by token.
func (s *PostgresStore) Delete(ctx context.Context, token string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

// DeleteByUser removes all sessions for a user.
func (s *PostgresStore) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("session: delete by user: %w", err)
	}
	return nil
}

// DeleteExpired removes all sessions past their expiry.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	query := `DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at < NOW()`
	result, err := s.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("session: delete expired: %w", err)
	}
	return int(result.RowsAffected()), nil
}

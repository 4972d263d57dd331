package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	tokenKeyPrefix = "session:token:"
	userKeyPrefix  = "session:user:"
)

// Compile-time check that RedisStore implements Store.
var _ Store = (*RedisStore)(nil)

// RedisStore keeps sessions in Redis, relying on key TTLs for expiry.
// Tokens are stored under session:token:<token> -> userID and the
// single-active-session index under session:user:<userID> -> token.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed session store and verifies
// connectivity with a ping.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("session: ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Create issues a session and drops the user's prior session.
func (s *RedisStore) Create(ctx context.Context, userID string, ttl time.Duration) (*Session, error) {
	token, err := NewToken()
	if err != nil {
		return nil, err
	}

	// Invalidate the prior session for this user, if any.
	prev, err := s.client.Get(ctx, userKeyPrefix+userID).Result()
	if err == nil && prev != "" {
		_ = s.client.Del(ctx, tokenKeyPrefix+prev).Err()
	} else if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session: lookup prior: %w", err)
	}

	sess := &Session{
		Token:  token,
		UserID: userID,
	}
	if ttl > 0 {
		sess.ExpiresAt = time.Now().UTC().Add(ttl)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, tokenKeyPrefix+token, userID, ttl)
	pipe.Set(ctx, userKeyPrefix+userID, token, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("session: create: %w", err)
	}
	return sess, nil
}

// Get resolves a token. Redis TTL makes expired sessions indistinguishable
// from unknown ones, so both surface as ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	userID, err := s.client.Get(ctx, tokenKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: get: %w", err)
	}

	sess := &Session{Token: token, UserID: userID}
	if d, err := s.client.TTL(ctx, tokenKeyPrefix+token).Result(); err == nil && d > 0 {
		sess.ExpiresAt = time.Now().UTC().Add(d)
	}
	return sess, nil
}

// Delete removes a session by token.
func (s *RedisStore) Delete(ctx context.Context, token string) error {
	userID, err := s.client.Get(ctx, tokenKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("session: delete: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, tokenKeyPrefix+token)
	pipe.Del(ctx, userKeyPrefix+userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}

// DeleteByUser removes the user's session.
func (s *RedisStore) DeleteByUser(ctx context.Context, userID string) error {
	token, err := s.client.Get(ctx, userKeyPrefix+userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("session: delete by user: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, tokenKeyPrefix+token)
	pipe.Del(ctx, userKeyPrefix+userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: delete by user: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis evicts expired keys itself.
func (s *RedisStore) DeleteExpired(_ context.Context) (int, error) {
	return 0, nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

/**
 * @description
 * Redis-backed SessionStore. Each session is a redis hash so that clearing a
 * session is a single DEL and the whole session shares one TTL.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: redis client.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisSessionStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisSessionStore {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "portal"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisSessionStore{
		client: client,
		prefix: trimmedPrefix + ":session",
		ttl:    ttl,
	}
}

func (s *RedisSessionStore) key(sid string) string {
	return fmt.Sprintf("%s:%s", s.prefix, sid)
}

func (s *RedisSessionStore) Get(ctx context.Context, sid, key string, out any) error {
	raw, err := s.client.HGet(ctx, s.key(sid), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read session value: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return nil
}

func (s *RedisSessionStore) Set(ctx context.Context, sid, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode session value: %w", err)
	}

	sessionKey := s.key(sid)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, sessionKey, key, raw)
	if s.ttl > 0 {
		pipe.Expire(ctx, sessionKey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write session value: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sid, key string) error {
	if err := s.client.HDel(ctx, s.key(sid), key).Err(); err != nil {
		return fmt.Errorf("failed to delete session value: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Clear(ctx context.Context, sid string) error {
	if err := s.client.Del(ctx, s.key(sid)).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

package push

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"chainrelay/internal/platform/redis"
	"chainrelay/pkg/domain"
	"chainrelay/pkg/platform/sentinel"
)

const tokenKeyPrefix = "push:token:"

// RedisTokenStore persists push tokens in Redis. Tokens live until the
// device re-registers or unregisters; no TTL, a stale token just fails at
// the provider and is logged.
type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func (s *RedisTokenStore) Save(ctx context.Context, recipient domain.NotifyHash, token string) error {
	if err := s.client.Set(ctx, tokenKeyPrefix+string(recipient), token, 0).Err(); err != nil {
		return fmt.Errorf("save push token: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Find(ctx context.Context, recipient domain.NotifyHash) (string, error) {
	token, err := s.client.Get(ctx, tokenKeyPrefix+string(recipient)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("find push token: %w", err)
	}
	return token, nil
}

func (s *RedisTokenStore) Delete(ctx context.Context, recipient domain.NotifyHash) error {
	if err := s.client.Del(ctx, tokenKeyPrefix+string(recipient)).Err(); err != nil {
		return fmt.Errorf("delete push token: %w", err)
	}
	return nil
}

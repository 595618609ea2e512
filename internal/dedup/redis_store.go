package dedup

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the keys in a single Redis set.
type RedisStore struct {
	redis *redis.Client
	key   string
}

// NewRedisStore returns a store using the set at key.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if client == nil {
		panic("dedup: redis client required")
	}
	if key == "" {
		key = "smsgateway:sent"
	}
	return &RedisStore{redis: client, key: key}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) Load(ctx context.Context) (Set, error) {
	members, err := s.redis.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("dedup: redis smembers: %w", err)
	}
	return NewSet(members...), nil
}

func (s *RedisStore) Save(ctx context.Context, keys Set) error {
	if keys.Len() == 0 {
		return nil
	}
	members := make([]any, 0, keys.Len())
	for _, k := range keys.Keys() {
		members = append(members, k)
	}
	if err := s.redis.SAdd(ctx, s.key, members...).Err(); err != nil {
		return fmt.Errorf("dedup: redis sadd: %w", err)
	}
	return nil
}

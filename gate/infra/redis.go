package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"reading-gate/gate/domain"
)

// RedisStore implementa TokenStore, CounterStore e MarkStore sobre Redis.
//
// O TTL fica a cargo do próprio Redis; INCR e EXPIRE vão juntos em MULTI/EXEC
// para que o incremento-e-leitura seja atômico por chave.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

type RedisOption func(*RedisStore)

func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{rdb: rdb, prefix: "gate"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *RedisStore) Put(ctx context.Context, visitorID, secret string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.key(tokenKey(visitorID)), secret, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, visitorID string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.key(tokenKey(visitorID))).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	k := s.key(key)
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	if ttl > 0 {
		pipe.Expire(ctx, k, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}
	return incr.Val(), nil
}

func (s *RedisStore) Count(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.Get(ctx, s.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return n, nil
}

func (s *RedisStore) Mark(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.key(key), "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Reserve usa SET NX EX: só um chamador cria a chave.
func (s *RedisStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.key(key), "pending", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis set nx: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Has(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

var (
	_ domain.TokenStore   = (*RedisStore)(nil)
	_ domain.CounterStore = (*RedisStore)(nil)
	_ domain.MarkStore    = (*RedisStore)(nil)
)
